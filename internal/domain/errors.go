package domain

import "errors"

var (
	// ErrInvalidModel is returned when a session is requested without a usable model id.
	ErrInvalidModel = errors.New("model is required")
	// ErrModelNotAvailable is returned when the upstream runtime does not serve the model.
	ErrModelNotAvailable = errors.New("model not available")
	// ErrSessionNotFound is returned for operations against an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionRequired is returned when a turn names no session and implicit creation is off.
	ErrSessionRequired = errors.New("session_id is required")
	// ErrModelMismatch is returned when a turn names a model other than the session's.
	ErrModelMismatch = errors.New("model mismatch with session")
	// ErrEmptyMessage is returned when a turn carries no user text.
	ErrEmptyMessage = errors.New("message is required")
)

// ErrTurnCancelled is returned by non-streaming turns that were cancelled before completing.
var ErrTurnCancelled = errors.New("turn cancelled")
