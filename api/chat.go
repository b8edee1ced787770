package api

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

type chatRequest struct {
	Input string `json:"input"`
}

type chatResponse struct {
	Response string `json:"response"`
}

// Chat sends one message to the assistant and returns its answer
func (c *Client) Chat(ctx context.Context, token, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", errors.New("message cannot be empty")
	}
	var resp chatResponse
	if err := c.post(ctx, token, "/chat", chatRequest{Input: input}, &resp); err != nil {
		return "", errors.Wrap(err, "chat request failed")
	}
	return resp.Response, nil
}
