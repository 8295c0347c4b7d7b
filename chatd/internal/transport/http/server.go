// Package http provides the HTTP server of the chat service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/anshu-sharma0/chatmessage/chatd/internal/auth"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/hub"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/metrics"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/service"
	v1 "github.com/anshu-sharma0/chatmessage/chatd/internal/transport/http/v1"
	"github.com/anshu-sharma0/chatmessage/chatd/internal/ws"
)

// NewServer creates and configures the HTTP server: the REST API, the realtime
// endpoint, health and metrics.
func NewServer(svc *service.Service, h *hub.Hub, wsServer *ws.Server, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	v1.NewHandler(svc, h).RegisterRoutes(e)

	e.GET("/ws", wsServer.HandleWebSocket, auth.Middleware(svc, service.ErrUnauthorized))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	return e
}
