// Package repository defines the session store interface and its implementations.
package repository

import (
	"context"
	"fmt"
	"sort"

	"github.com/xiaot623/gochat/internal/domain"
)

// Store holds sessions and serializes turns per session.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, model string) (*domain.Session, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Message operations
	AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error

	// WithLock runs fn inside the session's exclusive critical section.
	// The section is released on every exit path of fn, including panics.
	// Unrelated sessions are never blocked.
	WithLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error

	// Lifecycle
	Close() error
}

// New opens the store named by driver.
func New(driver, dsn string) (Store, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}

// sortSummaries orders summaries most recently updated first.
// Ties fall back to creation time and then id so a snapshot is stable.
func sortSummaries(out []domain.SessionSummary) {
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
			return out[i].LastUpdated.After(out[j].LastUpdated)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
}
