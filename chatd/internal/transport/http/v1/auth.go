package v1

import (
	"errors"
	"net/http"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
	"github.com/anshu-sharma0/chatmessage/internal/domain"
)

func authReply(c echo.Context, status int, message string, data *domain.AuthData) error {
	return c.JSON(status, domain.AuthResponse{Status: status, Message: message, Data: data})
}

// Login issues a token for valid credentials.
// POST /api/auth/login
func (h *Handler) Login(c echo.Context) error {
	var req domain.LoginRequest
	if err := c.Bind(&req); err != nil {
		return authReply(c, http.StatusBadRequest, "invalid request body", nil)
	}
	if req.Email == "" || req.Password == "" {
		return authReply(c, http.StatusBadRequest, "email and password are required", nil)
	}

	token, profile, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrUnauthorized):
		return authReply(c, http.StatusUnauthorized, "Invalid email or password", nil)
	case err != nil:
		glog.Errorf("login: %v", err)
		return authReply(c, http.StatusInternalServerError, "Login failed", nil)
	}
	return authReply(c, http.StatusOK, "Login successful", &domain.AuthData{Token: token, User: profile})
}

// Signup registers a new account.
// POST /api/auth/signup
func (h *Handler) Signup(c echo.Context) error {
	var req domain.SignupRequest
	if err := c.Bind(&req); err != nil {
		return authReply(c, http.StatusBadRequest, "invalid request body", nil)
	}

	profile, err := h.service.Signup(c.Request().Context(), req.Name, req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalid):
		return authReply(c, http.StatusBadRequest, "Name, a valid email and a password are required", nil)
	case errors.Is(err, service.ErrConflict):
		return authReply(c, http.StatusConflict, "An account with this email already exists", nil)
	case err != nil:
		glog.Errorf("signup: %v", err)
		return authReply(c, http.StatusInternalServerError, "Signup failed", nil)
	}
	return authReply(c, http.StatusCreated, "Account created successfully!", &domain.AuthData{User: profile})
}
