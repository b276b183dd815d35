package repository

import (
	"context"
	"time"

	"TradeCore/internal/domain/models"
)

// AuditSink is the append-only log of fusion decisions and order outcomes.
// There is no mutation API; history is queryable for reporting and replay.
type AuditSink interface {
	AppendDecision(ctx context.Context, r *models.FusionResult) error
	AppendOutcome(ctx context.Context, o *models.OrderOutcome) error
	Decisions(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.FusionResult, error)
	Outcomes(ctx context.Context, symbol string, from, to time.Time, limit int) ([]models.OrderOutcome, error)
	Health(ctx context.Context) error
	Close() error
}
