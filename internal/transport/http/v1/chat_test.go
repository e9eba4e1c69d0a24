package v1

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/wire"
)

func streamRequest(t *testing.T, h *Handler, req domain.TurnRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/chat/stream", bytes.NewReader(body))
	httpReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	require.NoError(t, h.StreamChat(echo.New().NewContext(httpReq, rec)))
	return rec
}

func decodeEvents(t *testing.T, body io.Reader) []domain.StreamEvent {
	t.Helper()
	dec := wire.NewDecoder(body)
	var events []domain.StreamEvent
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestStreamChat(t *testing.T) {
	h := newTestHandler(t, &stubGenerator{fragments: []string{"He", "llo"}})
	id := createTestSession(t, h, "m1")

	rec := streamRequest(t, h, domain.TurnRequest{Message: "hi", Model: "m1", SessionID: id})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wire.ContentType, rec.Header().Get(echo.HeaderContentType))
	assert.True(t, rec.Flushed)
	assert.Equal(t, []domain.StreamEvent{
		{Content: "He", SessionID: id},
		{Content: "llo", SessionID: id},
		{Done: true, SessionID: id},
	}, decodeEvents(t, rec.Body))
}

func TestStreamChatUpstreamFailureIsInBand(t *testing.T) {
	h := newTestHandler(t, &stubGenerator{genErr: errors.New("connection refused")})
	id := createTestSession(t, h, "m1")

	rec := streamRequest(t, h, domain.TurnRequest{Message: "hi", SessionID: id})

	assert.Equal(t, http.StatusOK, rec.Code)
	events := decodeEvents(t, rec.Body)
	require.Len(t, events, 1)
	assert.True(t, events[0].Done)
	assert.Equal(t, domain.FailedTurnText, events[0].Error)
}

func TestStreamChatPreStreamErrors(t *testing.T) {
	h := newTestHandler(t, &stubGenerator{fragments: []string{"x"}})
	id := createTestSession(t, h, "m1")

	tests := []struct {
		name     string
		req      domain.TurnRequest
		wantCode int
	}{
		{"missing session", domain.TurnRequest{Message: "hi", Model: "m1"}, http.StatusBadRequest},
		{"unknown session", domain.TurnRequest{Message: "hi", SessionID: "missing"}, http.StatusNotFound},
		{"model mismatch", domain.TurnRequest{Message: "hi", Model: "other", SessionID: id}, http.StatusBadRequest},
		{"empty message", domain.TurnRequest{SessionID: id}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := streamRequest(t, h, tt.req)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.True(t, strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON))
			assert.NotEmpty(t, errorBody(t, rec))
		})
	}
}

func TestStreamChatInvalidBody(t *testing.T) {
	h := newTestHandler(t, &stubGenerator{})
	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader("{"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	require.NoError(t, h.StreamChat(echo.New().NewContext(req, rec)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
