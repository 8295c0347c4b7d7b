package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

var errUnauthorized = errors.New("unauthorized")

type tokenTable map[string]*domain.User

func (t tokenTable) Authenticate(_ context.Context, token string) (*domain.User, error) {
	if token == "broken" {
		return nil, errors.New("database is locked")
	}
	if u, ok := t[token]; ok {
		return u, nil
	}
	return nil, errUnauthorized
}

func TestMiddleware(t *testing.T) {
	users := tokenTable{"tok": {ID: "1", Name: "Sarah Wilson"}}
	handler := Middleware(users, errUnauthorized)(func(c echo.Context) error {
		return c.String(http.StatusOK, User(c).ID)
	})

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer tok", http.StatusOK, "1"},
		{"case-insensitive scheme", "bearer tok", http.StatusOK, "1"},
		{"missing", "", http.StatusUnauthorized, "missing bearer token"},
		{"wrong scheme", "Basic tok", http.StatusUnauthorized, "missing bearer token"},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, "invalid or expired"},
		{"backend failure", "Bearer broken", http.StatusInternalServerError, "authentication failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/chat/users", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()

			require.NoError(t, handler(e.NewContext(req, rec)))
			assert.Equal(t, tt.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
		})
	}
}

func TestUserOutsideMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.Nil(t, User(c))

	SetUser(c, &domain.User{ID: "7"})
	assert.Equal(t, "7", User(c).ID)
}
