package api

import (
	"context"

	"github.com/pkg/errors"
)

// User as returned by the login endpoint
type User struct {
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	LastName string     `json:"lastName"`
	Email    string     `json:"email"`
	Token    string     `json:"token"`
}

// RegisterRequest is the registration form
type RegisterRequest struct {
	Name     string `json:"name"`
	LastName string `json:"lastName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message string `json:"message"`
	User    *User  `json:"user"`
}

// Register creates an account. It returns the backend's message, if any.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var resp authResponse
	if err := c.post(ctx, "", "/auth/register", req, &resp); err != nil {
		return "", errors.Wrap(err, "registration failed")
	}
	return resp.Message, nil
}

// Login exchanges credentials for a user carrying a bearer token
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	var resp authResponse
	if err := c.post(ctx, "", "/auth/login", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return nil, errors.Wrap(err, "login failed")
	}
	if resp.User == nil || resp.User.Token == "" {
		return nil, errors.New("login failed: response carried no token")
	}
	if resp.User.Email == "" {
		resp.User.Email = email
	}
	return resp.User, nil
}
