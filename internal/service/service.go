// Package service implements the chat turn orchestration and session operations.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/config"
	"github.com/xiaot623/gochat/internal/policy"
	"github.com/xiaot623/gochat/internal/repository"
)

type Service struct {
	store        repository.Store
	generator    llm.Generator
	config       *config.Config
	policyEngine *policy.Engine
	logger       *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightTurn
}

// inflightTurn is the cancel handle of the turn currently holding a session's lock.
type inflightTurn struct {
	cancel context.CancelFunc
}

// New creates a Service. policyEngine may be nil, in which case a model is
// admitted whenever the upstream lists it.
func New(store repository.Store, generator llm.Generator, cfg *config.Config, policyEngine *policy.Engine, logger *slog.Logger) *Service {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:        store,
		generator:    generator,
		config:       cfg,
		policyEngine: policyEngine,
		logger:       logger,
		inflight:     make(map[string]*inflightTurn),
	}
}

// trackTurn registers cancel as the in-flight turn of sessionID.
// The returned func unregisters it.
func (s *Service) trackTurn(sessionID string, cancel context.CancelFunc) func() {
	turn := &inflightTurn{cancel: cancel}

	s.mu.Lock()
	s.inflight[sessionID] = turn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.inflight[sessionID] == turn {
			delete(s.inflight, sessionID)
		}
	}
}

// CancelTurn cancels the in-flight turn of a session.
// It reports whether a turn was running.
func (s *Service) CancelTurn(sessionID string) bool {
	s.mu.Lock()
	turn, ok := s.inflight[sessionID]
	s.mu.Unlock()

	if !ok {
		return false
	}
	turn.cancel()
	s.logger.Info("turn cancelled by request", "session_id", sessionID)
	return true
}
