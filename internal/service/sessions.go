package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/domain"
	"github.com/xiaot623/gochat/internal/policy"
)

// CreateSession creates a session bound to model after checking that the
// upstream serves it and the session policy admits it.
func (s *Service) CreateSession(ctx context.Context, model string) (*domain.Session, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, domain.ErrInvalidModel
	}

	models, err := s.generator.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	allowed, reason, err := s.admit(ctx, model, llm.ModelNames(models))
	if err != nil {
		return nil, err
	}
	if !allowed {
		s.logger.Warn("session rejected", "model", model, "reason", reason)
		return nil, fmt.Errorf("%w: %s", domain.ErrModelNotAvailable, model)
	}

	session, err := s.store.CreateSession(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.logger.Info("session created", "session_id", session.SessionID, "model", model)
	return session, nil
}

func (s *Service) admit(ctx context.Context, model string, available []string) (bool, string, error) {
	if s.policyEngine == nil {
		return slices.Contains(available, model), "", nil
	}
	decision, err := s.policyEngine.Evaluate(ctx, policy.SessionInput{Model: model, Available: available})
	if err != nil {
		return false, "", fmt.Errorf("policy evaluation failed: %w", err)
	}
	return decision.Allow, decision.Reason, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *Service) ListSessions(ctx context.Context) ([]domain.SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession removes a session. An in-flight turn is not interrupted;
// its result is discarded when it tries to persist.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	s.logger.Info("session deleted", "session_id", sessionID)
	return nil
}
