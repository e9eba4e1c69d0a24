package domain

// FailedTurnText is the user-facing content stored for a turn that failed upstream.
const FailedTurnText = "Sorry, the model failed to produce a reply. Please try again."

// StreamEvent is one record on the turn stream.
type StreamEvent struct {
	Content   string `json:"content,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Terminal reports whether the event ends the turn.
func (e StreamEvent) Terminal() bool {
	return e.Done
}
