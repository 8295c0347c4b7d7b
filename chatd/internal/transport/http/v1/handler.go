// Package v1 provides the REST handlers of the chat service.
package v1

import (
	"errors"
	"net/http"

	"github.com/golang/glog"
	"github.com/labstack/echo/v4"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/auth"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
)

// Stats reports realtime gauges for the health endpoint.
type Stats interface {
	GetConnectionCount() int
	GetRoomCount() int
}

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
	stats   Stats
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, stats Stats) *Handler {
	return &Handler{
		service: svc,
		stats:   stats,
	}
}

// RegisterRoutes registers the REST routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	authGroup := e.Group("/api/auth")
	authGroup.POST("/login", h.Login)
	authGroup.POST("/signup", h.Signup)

	chat := e.Group("/api/chat", auth.Middleware(h.service, service.ErrUnauthorized))
	chat.GET("/users", h.ListUsers)
	chat.POST("/conversation", h.CreateConversation)
	chat.GET("/messages/:conversation_id", h.GetMessages)
	chat.POST("/message", h.SendMessage)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":      "healthy",
		"connections": h.stats.GetConnectionCount(),
		"rooms":       h.stats.GetRoomCount(),
	})
}

// chatError maps service errors onto the chat API's {"error": ...} shape.
func chatError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		glog.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, map[string]string{"error": "internal error"})
	}
	return c.JSON(status, map[string]string{"error": err.Error()})
}
