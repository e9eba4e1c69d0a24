package service

import (
	"context"

	"github.com/xiaot623/gochat/internal/domain"
)

// Chat runs a turn without streaming and returns the whole reply.
// A failed turn is returned as a response with Error set.
func (s *Service) Chat(ctx context.Context, req domain.TurnRequest) (*domain.ChatResponse, error) {
	result, err := s.StreamTurn(ctx, req, EventSinkFunc(func(domain.StreamEvent) error { return nil }))
	if err != nil {
		return nil, err
	}
	if result.State == domain.TurnStateCancelled {
		return nil, domain.ErrTurnCancelled
	}

	return &domain.ChatResponse{
		Response:  result.Message.Content,
		SessionID: result.SessionID,
		Model:     result.Model,
		Timestamp: result.Message.Timestamp,
		Error:     result.State == domain.TurnStateFailed,
	}, nil
}
