package service

import (
	"context"
	"fmt"

	"github.com/xiaot623/gochat/internal/adapter/llm"
	"github.com/xiaot623/gochat/internal/domain"
)

func (s *Service) ListModels(ctx context.Context) ([]llm.Model, error) {
	models, err := s.generator.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return models, nil
}

// Health probes the upstream runtime by listing its models.
func (s *Service) Health(ctx context.Context) domain.HealthStatus {
	if _, err := s.generator.ListModels(ctx); err != nil {
		s.logger.Warn("upstream health check failed", "error", err)
		return domain.HealthStatus{
			Status:   domain.HealthUnhealthy,
			Upstream: domain.UpstreamDisconnected,
			Error:    err.Error(),
		}
	}
	return domain.HealthStatus{Status: domain.HealthHealthy, Upstream: domain.UpstreamConnected}
}
