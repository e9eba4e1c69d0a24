// Package http provides the HTTP server implementation for the chat service.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/xiaot623/gochat/internal/service"
	v1 "github.com/xiaot623/gochat/internal/transport/http/v1"
	"github.com/xiaot623/gochat/internal/transport/ws"
)

// NewServer creates and configures the HTTP server.
// wsServer may be nil to disable the WebSocket endpoint.
func NewServer(svc *service.Service, wsServer *ws.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	api := e.Group("/api")
	v1Handler.RegisterRoutes(api)
	if wsServer != nil {
		api.GET("/chat/ws", wsServer.HandleWebSocket)
	}

	return e
}
