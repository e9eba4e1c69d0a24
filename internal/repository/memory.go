package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/gochat/internal/domain"
)

// MemoryStore implements Store in process memory.
// State starts empty and is discarded when the process stops.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	locks    *lockTable
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		locks:    newLockTable(),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateSession(ctx context.Context, model string) (*domain.Session, error) {
	if model == "" {
		return nil, domain.ErrInvalidModel
	}
	now := s.now()
	session := &domain.Session{
		SessionID:   uuid.New().String(),
		Model:       model,
		CreatedAt:   now,
		LastUpdated: now,
		Messages:    []domain.Message{},
	}

	s.mu.Lock()
	s.sessions[session.SessionID] = session
	s.mu.Unlock()

	return session.Clone(), nil
}

func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *MemoryStore) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	out := make([]domain.SessionSummary, 0, len(s.sessions))
	for _, session := range s.sessions {
		out = append(out, session.Summary())
	}
	s.mu.RUnlock()

	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

func (s *MemoryStore) AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	session.Messages = append(session.Messages, msg)
	session.LastUpdated = s.now()
	return nil
}

func (s *MemoryStore) WithLock(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	return withSessionLock(ctx, s.locks, sessionID, s.exists, fn)
}

func (s *MemoryStore) exists(ctx context.Context, sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[sessionID]
	return ok, nil
}

// Close is a no-op; in-memory state is simply dropped.
func (s *MemoryStore) Close() error {
	return nil
}
