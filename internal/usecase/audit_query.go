package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

// AuditQueryUseCase serves read access to the decision and outcome trail.
type AuditQueryUseCase struct {
	sink domrepo.AuditSink
}

func NewAuditQueryUseCase(sink domrepo.AuditSink) *AuditQueryUseCase {
	return &AuditQueryUseCase{sink: sink}
}

type AuditQueryParams struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
	// Final filters decisions; State filters outcomes. Empty means all.
	Final string
	State string
}

type DecisionsResult struct {
	Symbol    string                `json:"symbol"`
	From      time.Time             `json:"from"`
	To        time.Time             `json:"to"`
	Count     int                   `json:"count"`
	Decisions []models.FusionResult `json:"decisions"`
}

type OutcomesResult struct {
	Symbol   string                `json:"symbol"`
	From     time.Time             `json:"from"`
	To       time.Time             `json:"to"`
	Count    int                   `json:"count"`
	Outcomes []models.OrderOutcome `json:"outcomes"`
}

func (uc *AuditQueryUseCase) normalize(p *AuditQueryParams) error {
	if p.Symbol == "" {
		return fmt.Errorf("symbol required")
	}
	if p.To.IsZero() {
		p.To = time.Now().UTC()
	}
	if p.From.IsZero() {
		p.From = p.To.Add(-24 * time.Hour)
	}
	if p.From.After(p.To) {
		return fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}
	return nil
}

func (uc *AuditQueryUseCase) Decisions(ctx context.Context, p AuditQueryParams) (*DecisionsResult, error) {
	if err := uc.normalize(&p); err != nil {
		return nil, err
	}
	rows, err := uc.sink.Decisions(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	if p.Final != "" {
		filtered := rows[:0]
		for _, r := range rows {
			if string(r.Final) == p.Final {
				filtered = append(filtered, r)
			}
		}
		rows = filtered
	}
	return &DecisionsResult{Symbol: p.Symbol, From: p.From, To: p.To, Count: len(rows), Decisions: rows}, nil
}

func (uc *AuditQueryUseCase) Outcomes(ctx context.Context, p AuditQueryParams) (*OutcomesResult, error) {
	if err := uc.normalize(&p); err != nil {
		return nil, err
	}
	rows, err := uc.sink.Outcomes(ctx, p.Symbol, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	if p.State != "" {
		filtered := rows[:0]
		for _, o := range rows {
			if string(o.State) == p.State {
				filtered = append(filtered, o)
			}
		}
		rows = filtered
	}
	return &OutcomesResult{Symbol: p.Symbol, From: p.From, To: p.To, Count: len(rows), Outcomes: rows}, nil
}

// Health proxies the sink's health check for the liveness endpoint.
func (uc *AuditQueryUseCase) Health(ctx context.Context) error {
	return uc.sink.Health(ctx)
}
