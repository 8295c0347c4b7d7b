// Package auth authenticates bearer tokens on incoming requests.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

const contextKey = "auth.user"

// Authenticator resolves a token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Middleware rejects requests without a valid bearer token and stores the user on the context.
// unauthorized is matched with errors.Is to tell rejected credentials from backend failures.
func Middleware(a Authenticator, unauthorized error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c.Request())
			if token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			user, err := a.Authenticate(c.Request().Context(), token)
			if errors.Is(err, unauthorized) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid or expired token"})
			}
			if err != nil {
				glog.Errorf("auth: %v", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "authentication failed"})
			}
			c.Set(contextKey, user)
			return next(c)
		}
	}
}

// User returns the authenticated user, or nil outside the middleware.
func User(c echo.Context) *domain.User {
	user, _ := c.Get(contextKey).(*domain.User)
	return user
}

// SetUser stores user on c the way Middleware does.
func SetUser(c echo.Context, user *domain.User) {
	c.Set(contextKey, user)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
