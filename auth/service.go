package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"

	"tradeassist/api"
	"tradeassist/logger"
)

// DefaultTTL is how long a stored token is trusted without a new login
const DefaultTTL = 30 * 24 * time.Hour

var (
	ErrMissingCredentials = errors.New("email and password are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrMissingName        = errors.New("first and last name are required")
)

// Backend issues tokens
type Backend interface {
	Login(ctx context.Context, email, password string) (*api.User, error)
	Register(ctx context.Context, req api.RegisterRequest) (string, error)
}

// Service runs the login, registration and logout flows
type Service struct {
	backend Backend
	store   *Store
	ttl     time.Duration
	now     func() time.Time
}

// NewService creates a service. ttl <= 0 uses DefaultTTL.
func NewService(backend Backend, store *Store, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{backend: backend, store: store, ttl: ttl, now: time.Now}
}

func validateEmail(email string) error {
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// Login authenticates and persists the session
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	session := Session{
		Token:     user.Token,
		Email:     user.Email,
		Name:      strings.TrimSpace(user.Name + " " + user.LastName),
		UserID:    user.ID.String(),
		ExpiresAt: s.now().Add(s.ttl).Unix(),
	}
	if err := s.store.Save(session); err != nil {
		// Still usable for this run.
		logger.Warnf("could not persist session: %v", err)
	}
	logger.Infof("logged in as %s", session.Email)
	return &session, nil
}

// Register creates the account. The user logs in afterwards.
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.LastName == "" {
		return "", ErrMissingName
	}
	if req.Email == "" || req.Password == "" {
		return "", ErrMissingCredentials
	}
	if err := validateEmail(req.Email); err != nil {
		return "", err
	}
	msg, err := s.backend.Register(ctx, req)
	if err != nil {
		return "", err
	}
	logger.Infof("registered %s", req.Email)
	return msg, nil
}

// Restore returns the stored session if it is still valid. Expired sessions
// are cleared.
func (s *Service) Restore() (*Session, error) {
	session, err := s.store.Load()
	if err != nil || session == nil {
		return nil, err
	}
	if !session.Valid(s.now()) {
		logger.Infof("stored session for %s expired", session.Email)
		return nil, s.store.Clear()
	}
	return session, nil
}

// Logout forgets the stored session
func (s *Service) Logout() error {
	return s.store.Clear()
}
