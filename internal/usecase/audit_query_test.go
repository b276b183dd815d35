package usecase

import (
	"context"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
)

// memorySink is an in-memory AuditSink for query tests.
type memorySink struct {
	decisions []models.FusionResult
	outcomes  []models.OrderOutcome
}

func (m *memorySink) AppendDecision(_ context.Context, r *models.FusionResult) error {
	m.decisions = append(m.decisions, *r)
	return nil
}

func (m *memorySink) AppendOutcome(_ context.Context, o *models.OrderOutcome) error {
	m.outcomes = append(m.outcomes, *o)
	return nil
}

func (m *memorySink) Decisions(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.FusionResult, error) {
	out := make([]models.FusionResult, 0)
	for _, r := range m.decisions {
		if r.Symbol != symbol || r.Timestamp.Before(from) || r.Timestamp.After(to) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memorySink) Outcomes(_ context.Context, symbol string, from, to time.Time, limit int) ([]models.OrderOutcome, error) {
	out := make([]models.OrderOutcome, 0)
	for _, o := range m.outcomes {
		if o.Symbol != symbol || o.Timestamp.Before(from) || o.Timestamp.After(to) {
			continue
		}
		out = append(out, o)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memorySink) Health(context.Context) error { return nil }
func (m *memorySink) Close() error                 { return nil }

func TestAuditQueryRequiresSymbol(t *testing.T) {
	uc := NewAuditQueryUseCase(&memorySink{})
	if _, err := uc.Decisions(context.Background(), AuditQueryParams{}); err == nil {
		t.Fatal("expected error for missing symbol")
	}
}

func TestAuditQueryRejectsInvertedRange(t *testing.T) {
	uc := NewAuditQueryUseCase(&memorySink{})
	now := time.Now().UTC()
	_, err := uc.Decisions(context.Background(), AuditQueryParams{
		Symbol: "EURUSD",
		From:   now,
		To:     now.Add(-time.Hour),
	})
	if err == nil {
		t.Fatal("expected error for from > to")
	}
}

func TestAuditQueryFiltersByFinal(t *testing.T) {
	now := time.Now().UTC()
	sink := &memorySink{decisions: []models.FusionResult{
		{Symbol: "EURUSD", Timestamp: now.Add(-time.Minute), Final: models.SignalLong},
		{Symbol: "EURUSD", Timestamp: now.Add(-2 * time.Minute), Final: models.SignalNoSignal},
		{Symbol: "EURUSD", Timestamp: now.Add(-3 * time.Minute), Final: models.SignalLong},
	}}
	uc := NewAuditQueryUseCase(sink)

	res, err := uc.Decisions(context.Background(), AuditQueryParams{Symbol: "EURUSD", Final: "LONG"})
	if err != nil {
		t.Fatalf("decisions: %v", err)
	}
	if res.Count != 2 {
		t.Fatalf("expected 2 LONG decisions, got %d", res.Count)
	}
	for _, r := range res.Decisions {
		if r.Final != models.SignalLong {
			t.Fatalf("filter leaked %s", r.Final)
		}
	}
}

func TestAuditQueryFiltersByState(t *testing.T) {
	now := time.Now().UTC()
	sink := &memorySink{outcomes: []models.OrderOutcome{
		{Symbol: "EURUSD", RequestID: "a", Timestamp: now.Add(-time.Minute), State: models.OutcomeConfirmed},
		{Symbol: "EURUSD", RequestID: "b", Timestamp: now.Add(-2 * time.Minute), State: models.OutcomeUnknown},
	}}
	uc := NewAuditQueryUseCase(sink)

	res, err := uc.Outcomes(context.Background(), AuditQueryParams{Symbol: "EURUSD", State: "UNKNOWN"})
	if err != nil {
		t.Fatalf("outcomes: %v", err)
	}
	if res.Count != 1 || res.Outcomes[0].RequestID != "b" {
		t.Fatalf("expected only the UNKNOWN outcome, got %+v", res.Outcomes)
	}
}

func TestAuditQueryDefaultWindow(t *testing.T) {
	now := time.Now().UTC()
	sink := &memorySink{decisions: []models.FusionResult{
		{Symbol: "EURUSD", Timestamp: now.Add(-48 * time.Hour), Final: models.SignalLong},
		{Symbol: "EURUSD", Timestamp: now.Add(-time.Hour), Final: models.SignalShort},
	}}
	uc := NewAuditQueryUseCase(sink)

	res, err := uc.Decisions(context.Background(), AuditQueryParams{Symbol: "EURUSD"})
	if err != nil {
		t.Fatalf("decisions: %v", err)
	}
	// Default window is the trailing 24h; the 48h-old row is out of range.
	if res.Count != 1 || res.Decisions[0].Final != models.SignalShort {
		t.Fatalf("expected only the recent decision, got %+v", res.Decisions)
	}
}
