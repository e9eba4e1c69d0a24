package domain

import "time"

// Message is one utterance in a session.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

// Session is one conversation bound to a single model.
type Session struct {
	SessionID   string    `json:"session_id"`
	Model       string    `json:"model"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Messages    []Message `json:"messages"`
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return &out
}

// Summary returns the list view of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		SessionID:    s.SessionID,
		Model:        s.Model,
		CreatedAt:    s.CreatedAt,
		LastUpdated:  s.LastUpdated,
		MessageCount: len(s.Messages),
	}
}

// SessionSummary is the list representation of a session.
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	Model        string    `json:"model"`
	CreatedAt    time.Time `json:"created_at"`
	LastUpdated  time.Time `json:"last_updated"`
	MessageCount int       `json:"message_count"`
}
