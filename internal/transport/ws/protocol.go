package ws

import "github.com/xiaot623/gochat/internal/domain"

// Message types from client to server
const (
	TypeTurn   = "turn"
	TypeCancel = "cancel"
)

// Message types from server to client. Stream events are sent as bare
// domain.StreamEvent objects without a type field.
const (
	TypeError = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage      = "invalid_message"
	ErrorCodeInvalidRequest      = "invalid_request"
	ErrorCodeSessionNotFound     = "session_not_found"
	ErrorCodeTurnInProgress      = "turn_in_progress"
	ErrorCodeNoActiveTurn        = "no_active_turn"
	ErrorCodeUpstreamUnavailable = "upstream_unavailable"
	ErrorCodeCancelled           = "cancelled"
	ErrorCodeInternal            = "internal_error"
)

// BaseMessage contains the field common to all client messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// TurnMessage starts a turn on the connection.
type TurnMessage struct {
	BaseMessage
	domain.TurnRequest
}

// ErrorMessage reports a failure that happened before a turn started streaming.
type ErrorMessage struct {
	Type      string `json:"type"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}
