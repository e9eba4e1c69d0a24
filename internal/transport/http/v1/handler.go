// Package v1 provides the REST and streaming handlers of the chat API.
package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/service"
)

// Handler handles HTTP requests.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new handler.
func NewHandler(service *service.Service) *Handler {
	return &Handler{
		service: service,
	}
}

// RegisterRoutes registers routes on the /api group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/", h.Root)
	g.GET("/health", h.Health)
	g.GET("/models", h.ListModels)

	// Session API
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:session_id", h.GetSession)
	g.DELETE("/sessions/:session_id", h.DeleteSession)
	g.POST("/sessions/:session_id/cancel", h.CancelTurn)

	// Chat API
	g.POST("/chat/stream", h.StreamChat)
	g.POST("/chat", h.Chat)
}

// Root returns a liveness banner.
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "Chat API is running"})
}

// Health reports whether the upstream model runtime is reachable. It always answers 200.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Health(c.Request().Context()))
}

// ListModels lists the models served by the upstream runtime.
// GET /api/models
func (h *Handler) ListModels(c echo.Context) error {
	models, err := h.service.ListModels(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, models)
}

// respondError writes err as {"error": "..."} with the matching status code.
func respondError(c echo.Context, err error) error {
	return c.JSON(errorStatus(err), map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidModel),
		errors.Is(err, domain.ErrModelNotAvailable),
		errors.Is(err, domain.ErrSessionRequired),
		errors.Is(err, domain.ErrModelMismatch),
		errors.Is(err, domain.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, llm.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrUpstreamError):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrTurnCancelled),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
