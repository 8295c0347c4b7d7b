package chatapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

// ErrNoToken is returned when a login succeeds without issuing a token.
var ErrNoToken = errors.New("auth service issued no token")

// Login calls POST /api/auth/login and returns the issued token and profile.
func (c *Client) Login(ctx context.Context, req *domain.LoginRequest) (*domain.AuthData, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if resp.Status != http.StatusOK || resp.Data == nil || resp.Data.Token == "" {
		return nil, ErrNoToken
	}
	return resp.Data, nil
}

// Signup calls POST /api/auth/signup. It returns the service's confirmation message.
func (c *Client) Signup(ctx context.Context, req *domain.SignupRequest) (string, error) {
	var resp domain.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", req, &resp); err != nil {
		return "", fmt.Errorf("signup failed: %w", err)
	}
	return resp.Message, nil
}
