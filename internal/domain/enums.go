// Package domain defines the core domain models for the chat server.
package domain

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// TurnState is the lifecycle state of a single chat turn.
type TurnState string

const (
	TurnStateIdle         TurnState = "IDLE"
	TurnStateUserAppended TurnState = "USER_APPENDED"
	TurnStateStreaming    TurnState = "STREAMING"
	TurnStateCompleted    TurnState = "COMPLETED"
	TurnStateFailed       TurnState = "FAILED"
	TurnStateCancelled    TurnState = "CANCELLED"
)

// Terminal reports whether no further transitions are possible from s.
func (s TurnState) Terminal() bool {
	switch s {
	case TurnStateCompleted, TurnStateFailed, TurnStateCancelled:
		return true
	}
	return false
}
