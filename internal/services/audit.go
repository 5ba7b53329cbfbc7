// Package services holds the persistence-backed services used by the MCP
// servers: the tool call audit log and the sealed session cache.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"broker_mcp/internal/models"
	"broker_mcp/internal/repository"
	"broker_mcp/internal/tools"
)

// DefaultAuditRetention bounds how long tool calls are kept.
const DefaultAuditRetention = 30 * 24 * time.Hour

// AuditService records every handled tool call.
type AuditService struct {
	repo   *repository.ToolCallRepository
	logger zerolog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo *repository.ToolCallRepository) *AuditService {
	return &AuditService{
		repo:   repo,
		logger: log.With().Str("component", "audit").Logger(),
	}
}

var _ tools.Recorder = (*AuditService)(nil)

// RecordCall stores call. Arguments are expected to be sanitized already.
func (s *AuditService) RecordCall(_ context.Context, call tools.Call) error {
	entry := &models.ToolCall{
		Tool:       call.Tool,
		Broker:     call.Broker,
		Success:    call.Success,
		Error:      call.Error,
		DurationMS: call.Duration.Milliseconds(),
	}
	if call.Arguments != nil {
		if data, err := json.Marshal(call.Arguments); err == nil {
			entry.Arguments = string(data)
		}
	}

	if _, err := s.repo.Create(entry); err != nil {
		s.logger.Error().Err(err).Str("tool", call.Tool).Msg("Failed to write audit log")
		return err
	}
	return nil
}

// Recent returns the newest calls for broker.
func (s *AuditService) Recent(broker string, limit int) ([]*models.ToolCall, error) {
	page, err := s.repo.ListByBroker(broker, repository.NewPagination(limit, 0))
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Prune removes calls older than retention.
func (s *AuditService) Prune(retention time.Duration) {
	n, err := s.repo.DeleteOlderThan(retention)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Pruning audit log failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Pruned audit log")
	}
}
