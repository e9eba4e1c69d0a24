package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gochat/internal/domain"
)

// CreateSession creates a session for a model named by ?model= or a JSON body.
// POST /api/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	model := c.QueryParam("model")
	if model == "" {
		var req domain.CreateSessionRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}
		model = req.Model
	}

	session, err := h.service.CreateSession(c.Request().Context(), model)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, domain.CreateSessionResponse{
		SessionID: session.SessionID,
		Model:     session.Model,
		CreatedAt: session.CreatedAt,
	})
}

// ListSessions lists session summaries, most recently updated first.
// GET /api/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.service.ListSessions(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sessions)
}

// GetSession returns a session with its messages.
// GET /api/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.service.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// DeleteSession deletes a session.
// DELETE /api/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	if err := h.service.DeleteSession(c.Request().Context(), c.Param("session_id")); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Session deleted successfully"})
}

// CancelTurn cancels the turn currently streaming on a session.
// POST /api/sessions/:session_id/cancel
func (h *Handler) CancelTurn(c echo.Context) error {
	sessionID := c.Param("session_id")
	if _, err := h.service.GetSession(c.Request().Context(), sessionID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"cancelled": h.service.CancelTurn(sessionID)})
}
