package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

type stubScorer struct {
	pLong  float64
	pShort float64
}

func (s stubScorer) Score(_ context.Context, _, tf string, _ map[string]float64) (models.TimeframeSignal, error) {
	return models.TimeframeSignal{Timeframe: tf, Timestamp: time.Now().UTC(), PLong: s.pLong, PShort: s.pShort}, nil
}

type stubAccounts struct {
	equity  float64
	spec    models.SymbolTradeSpec
	specErr error
}

func (a stubAccounts) Equity(context.Context) (float64, error) { return a.equity, nil }

func (a stubAccounts) TradeSpec(_ context.Context, symbol string) (*models.SymbolTradeSpec, error) {
	if a.specErr != nil {
		return nil, a.specErr
	}
	spec := a.spec
	spec.Symbol = symbol
	return &spec, nil
}

type captureAudit struct {
	mu        sync.Mutex
	decisions []models.FusionResult
	outcomes  []models.OrderOutcome
	outcomeCh chan models.OrderOutcome
}

func newCaptureAudit() *captureAudit {
	return &captureAudit{outcomeCh: make(chan models.OrderOutcome, 16)}
}

func (a *captureAudit) AppendDecision(_ context.Context, r *models.FusionResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decisions = append(a.decisions, *r)
	return nil
}

func (a *captureAudit) AppendOutcome(_ context.Context, o *models.OrderOutcome) error {
	a.mu.Lock()
	a.outcomes = append(a.outcomes, *o)
	a.mu.Unlock()
	a.outcomeCh <- *o
	return nil
}

func (a *captureAudit) Decisions(context.Context, string, time.Time, time.Time, int) ([]models.FusionResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.FusionResult, len(a.decisions))
	copy(out, a.decisions)
	return out, nil
}

func (a *captureAudit) Outcomes(context.Context, string, time.Time, time.Time, int) ([]models.OrderOutcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.OrderOutcome, len(a.outcomes))
	copy(out, a.outcomes)
	return out, nil
}

func (a *captureAudit) Health(context.Context) error { return nil }
func (a *captureAudit) Close() error                 { return nil }

type captureQueue struct {
	mu   sync.Mutex
	msgs []string
	ch   chan string
}

func newCaptureQueue() *captureQueue { return &captureQueue{ch: make(chan string, 16)} }

func (q *captureQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.mu.Lock()
	q.msgs = append(q.msgs, msgType)
	q.mu.Unlock()
	q.ch <- msgType
	return nil
}

func engineCfg() EngineConfig {
	return EngineConfig{
		Symbols:          []string{"EURUSD"},
		BaseTimeframe:    "5m",
		HigherTimeframes: []domrepo.Timeframe{"1h", "1d"},
		HistorySize:      64,
		MinBars:          2,
		OrdersPerMinute:  10,
		Fusion:           fusionCfg(),
		Sizer:            SizerConfig{PayoffRatio: 2.0, RiskFraction: 0.02},
		BarBuffer:        1024,
	}
}

func feedBars(e *TradeEngine, n int) {
	start := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		px := 1.10 + float64(i%7)*0.0001
		e.OnBar(&models.Bar{
			Symbol:    "EURUSD",
			Timestamp: start.Add(time.Duration(i) * 5 * time.Minute),
			Open:      px,
			High:      px + 0.0002,
			Low:       px - 0.0002,
			Close:     px + 0.0001,
			Volume:    100,
		})
	}
}

func startEngine(t *testing.T, tr *fakeTransport, audit *captureAudit, q *captureQueue) *TradeEngine {
	t.Helper()
	gw, err := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	fus, err := NewSignalFusionEngine(fusionCfg())
	if err != nil {
		t.Fatalf("new fusion: %v", err)
	}
	accounts := stubAccounts{equity: 100000, spec: testSpec()}
	eng, err := NewTradeEngine(engineCfg(), stubScorer{pLong: 0.9, pShort: 0.1}, fus, gw, accounts, audit, q, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(eng.Stop)
	return eng
}

func TestEngineFullCycleConfirmedOrder(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{resp: &domrepo.BrokerResponse{Status: "CONFIRMED", Ticket: "T-1"}},
	}}
	audit := newCaptureAudit()
	q := newCaptureQueue()
	eng := startEngine(t, tr, audit, q)

	// Two daily bars need 2*288 base bars; the entry timeframe completes on
	// the same bar, triggering the decision cycle with full trend history.
	feedBars(eng, 576)

	select {
	case out := <-audit.outcomeCh:
		if out.State != models.OutcomeConfirmed {
			t.Fatalf("outcome = %s, want CONFIRMED", out.State)
		}
		if out.Ticket != "T-1" {
			t.Fatalf("ticket = %q, want T-1", out.Ticket)
		}
		if out.Symbol != "EURUSD" {
			t.Fatalf("symbol = %q", out.Symbol)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no order outcome observed")
	}

	decisions, _ := audit.Decisions(context.Background(), "EURUSD", time.Time{}, time.Time{}, 0)
	if len(decisions) == 0 {
		t.Fatal("no decisions audited")
	}
	last := decisions[len(decisions)-1]
	if last.Final != models.SignalLong {
		t.Fatalf("final decision = %s, want LONG", last.Final)
	}
}

func TestEngineEnqueuesReconciliationOnUnknown(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: domrepo.ErrResponseTimeout},
	}}
	audit := newCaptureAudit()
	q := newCaptureQueue()
	eng := startEngine(t, tr, audit, q)

	feedBars(eng, 576)

	select {
	case out := <-audit.outcomeCh:
		if out.State != models.OutcomeUnknown {
			t.Fatalf("outcome = %s, want UNKNOWN", out.State)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no order outcome observed")
	}

	select {
	case msgType := <-q.ch:
		if msgType != ReconcileMessageType {
			t.Fatalf("queued message type = %q, want %q", msgType, ReconcileMessageType)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("unknown outcome was not enqueued for reconciliation")
	}
}

func TestEngineSkipsSymbolWithoutTradeSpec(t *testing.T) {
	gw, _ := NewExecutionGateway(&fakeTransport{}, gatewayCfg(), nil, nil)
	fus, _ := NewSignalFusionEngine(fusionCfg())
	accounts := stubAccounts{equity: 100000, specErr: errors.New("symbol not found")}
	eng, err := NewTradeEngine(engineCfg(), stubScorer{pLong: 0.9, pShort: 0.1}, fus, gw, accounts, newCaptureAudit(), nil, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := eng.Start(context.Background()); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error when no worker starts, got %v", err)
	}
}

func TestEngineRequiresCollaborators(t *testing.T) {
	if _, err := NewTradeEngine(engineCfg(), nil, nil, nil, nil, nil, nil, nil, nil); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("nil collaborators accepted: %v", err)
	}
}

func TestEngineRejectsFusionTierOutsideAggregationChain(t *testing.T) {
	gw, _ := NewExecutionGateway(&fakeTransport{}, gatewayCfg(), nil, nil)
	fus, _ := NewSignalFusionEngine(fusionCfg())
	accounts := stubAccounts{equity: 100000, spec: testSpec()}

	// Entry 15m is never produced by 5m+[1h,1d]; the engine would wait
	// forever for it to complete, so construction must fail.
	cfg := engineCfg()
	cfg.Fusion.EntryTimeframe = "15m"
	_, err := NewTradeEngine(cfg, stubScorer{pLong: 0.9, pShort: 0.1}, fus, gw, accounts, newCaptureAudit(), nil, nil, nil)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("entry tier outside chain accepted: %v", err)
	}

	cfg = engineCfg()
	cfg.Fusion.TrendTimeframe = "4h"
	_, err = NewTradeEngine(cfg, stubScorer{pLong: 0.9, pShort: 0.1}, fus, gw, accounts, newCaptureAudit(), nil, nil, nil)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("trend tier outside chain accepted: %v", err)
	}

	// The base timeframe itself is part of the chain.
	cfg = engineCfg()
	cfg.Fusion.ExecutionTimeframe = string(cfg.BaseTimeframe)
	if _, err := NewTradeEngine(cfg, stubScorer{pLong: 0.9, pShort: 0.1}, fus, gw, accounts, newCaptureAudit(), nil, nil, nil); err != nil {
		t.Fatalf("base timeframe rejected as execution tier: %v", err)
	}
}
