package domain

import "time"

// TurnRequest is the input to one orchestrated chat turn.
type TurnRequest struct {
	Message      string `json:"message"`
	Model        string `json:"model"`
	SessionID    string `json:"session_id,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// CreateSessionRequest is the optional JSON body of a session creation call.
type CreateSessionRequest struct {
	Model string `json:"model"`
}

// CreateSessionResponse is returned after a session is created.
type CreateSessionResponse struct {
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatResponse is the result of a non-streaming turn.
type ChatResponse struct {
	Response  string    `json:"response"`
	SessionID string    `json:"session_id"`
	Model     string    `json:"model"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

// TurnResult describes how a turn ended.
type TurnResult struct {
	SessionID string
	Model     string
	State     TurnState
	Message   Message
}
