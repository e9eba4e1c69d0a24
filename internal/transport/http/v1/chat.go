package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/service"
	"github.com/xiaot623/gochat/internal/wire"
)

// StreamChat runs a turn and streams its events as NDJSON.
// Errors found before the first event are returned as JSON with a 4xx status;
// later failures are reported in-band by the terminal event.
// POST /api/chat/stream
func (h *Handler) StreamChat(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	res := c.Response()
	enc := wire.NewEncoder(res)
	sink := service.EventSinkFunc(func(ev domain.StreamEvent) error {
		if !res.Committed {
			res.Header().Set(echo.HeaderContentType, wire.ContentType)
			res.Header().Set("Cache-Control", "no-cache")
			res.Header().Set("X-Accel-Buffering", "no")
			res.WriteHeader(http.StatusOK)
		}
		return enc.Encode(ev)
	})

	if _, err := h.service.StreamTurn(c.Request().Context(), req, sink); err != nil {
		if res.Committed {
			c.Logger().Warnf("stream ended with error: %v", err)
			return nil
		}
		return respondError(c, err)
	}
	return nil
}

// Chat runs a turn and returns the whole reply.
// POST /api/chat
func (h *Handler) Chat(c echo.Context) error {
	var req domain.TurnRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	resp, err := h.service.Chat(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	if resp.Error {
		return c.JSON(http.StatusBadGateway, map[string]string{"error": resp.Response})
	}
	return c.JSON(http.StatusOK, resp)
}
