package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	domsvc "TradeCore/internal/domain/service"
	"TradeCore/internal/service/ratelimit"
	"TradeCore/internal/services/features"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// ReconcileMessageType is the queue message type for unresolved order
// outcomes.
const ReconcileMessageType = "order_reconcile"

// ReconcilePayload is the queue payload enqueued for every UNKNOWN outcome.
type ReconcilePayload struct {
	RequestID string    `json:"request_id"`
	Symbol    string    `json:"symbol"`
	FirstSeen time.Time `json:"first_seen"`
}

// EngineConfig wires the per-symbol pipeline parameters.
type EngineConfig struct {
	Symbols          []string
	BaseTimeframe    domrepo.Timeframe
	HigherTimeframes []domrepo.Timeframe
	HistorySize      int
	// MinBars is how many bars a timeframe needs before it is scored.
	MinBars int
	// OrdersPerMinute caps order submissions per symbol.
	OrdersPerMinute float64
	Fusion          FusionConfig
	Sizer           SizerConfig
	// BarBuffer is the per-symbol inbound bar channel capacity.
	BarBuffer int
}

// TradeEngine runs one decision loop per symbol: base bars in, order
// outcomes out. Symbols never share mutable state, so a slow broker call on
// one symbol cannot stall another.
type TradeEngine struct {
	cfg      EngineConfig
	scorer   domsvc.Scorer
	fusion   *SignalFusionEngine
	gateway  *ExecutionGateway
	accounts domrepo.AccountSource
	audit    domrepo.AuditSink
	queue    queue.QueueService
	limiter  *ratelimit.Limiter
	metrics  domrepo.Metrics
	l        *logger.Logger

	mu      sync.RWMutex
	workers map[string]*symbolWorker
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

type symbolWorker struct {
	symbol string
	agg    *BarAggregator
	sizer  *PositionSizer
	in     chan *models.Bar
}

func NewTradeEngine(
	cfg EngineConfig,
	scorer domsvc.Scorer,
	fusion *SignalFusionEngine,
	gateway *ExecutionGateway,
	accounts domrepo.AccountSource,
	audit domrepo.AuditSink,
	q queue.QueueService,
	metrics domrepo.Metrics,
	l *logger.Logger,
) (*TradeEngine, error) {
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("%w: at least one symbol is required", models.ErrConfiguration)
	}
	if scorer == nil || fusion == nil || gateway == nil || accounts == nil || audit == nil {
		return nil, fmt.Errorf("%w: engine is missing a collaborator", models.ErrConfiguration)
	}
	// Every fusion tier must be a timeframe the aggregation chain actually
	// produces; a tier outside the chain would silently never complete and
	// the engine would never decide.
	produced := map[string]bool{string(cfg.BaseTimeframe): true}
	for _, tf := range cfg.HigherTimeframes {
		produced[string(tf)] = true
	}
	for _, tf := range []string{cfg.Fusion.TrendTimeframe, cfg.Fusion.EntryTimeframe, cfg.Fusion.ExecutionTimeframe} {
		if tf != "" && !produced[tf] {
			return nil, fmt.Errorf("%w: fusion timeframe %s is not produced by the aggregation chain %v+%v",
				models.ErrConfiguration, tf, cfg.BaseTimeframe, cfg.HigherTimeframes)
		}
	}
	if cfg.MinBars <= 1 {
		cfg.MinBars = 30
	}
	if cfg.BarBuffer <= 0 {
		cfg.BarBuffer = 256
	}
	if cfg.OrdersPerMinute <= 0 {
		cfg.OrdersPerMinute = 2
	}
	return &TradeEngine{
		cfg:      cfg,
		scorer:   scorer,
		fusion:   fusion,
		gateway:  gateway,
		accounts: accounts,
		audit:    audit,
		queue:    q,
		limiter:  ratelimit.New(),
		metrics:  metrics,
		l:        l,
		workers:  make(map[string]*symbolWorker),
	}, nil
}

// Start builds one worker per symbol and launches its loop. Symbols whose
// broker spec cannot be fetched are skipped with an error log rather than
// failing the whole engine.
func (e *TradeEngine) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	started := 0
	for _, symbol := range e.cfg.Symbols {
		w, err := e.buildWorker(ctx, symbol)
		if err != nil {
			if e.l != nil {
				e.l.Error("skipping symbol", logger.String("symbol", symbol), logger.Error(err))
			}
			if e.metrics != nil {
				e.metrics.RecordError("worker_init")
			}
			continue
		}
		e.mu.Lock()
		e.workers[symbol] = w
		e.mu.Unlock()

		e.wg.Add(1)
		go func(w *symbolWorker) {
			defer e.wg.Done()
			e.run(ctx, w)
		}(w)
		started++
	}
	if started == 0 {
		return fmt.Errorf("%w: no symbol workers could be started", models.ErrConfiguration)
	}
	if e.l != nil {
		e.l.Info("trade engine started", logger.Int("symbols", started))
	}
	return nil
}

func (e *TradeEngine) buildWorker(ctx context.Context, symbol string) (*symbolWorker, error) {
	spec, err := e.accounts.TradeSpec(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("trade spec: %w", err)
	}
	sizer, err := NewPositionSizer(e.cfg.Sizer, *spec)
	if err != nil {
		return nil, err
	}
	agg, err := NewBarAggregator(e.cfg.BaseTimeframe, e.cfg.HigherTimeframes, e.cfg.HistorySize)
	if err != nil {
		return nil, err
	}
	return &symbolWorker{
		symbol: symbol,
		agg:    agg,
		sizer:  sizer,
		in:     make(chan *models.Bar, e.cfg.BarBuffer),
	}, nil
}

// OnBar routes a base bar to its symbol's worker. Bars for unknown symbols
// or full buffers are dropped and counted, never blocked on.
func (e *TradeEngine) OnBar(bar *models.Bar) {
	if bar == nil {
		return
	}
	e.mu.RLock()
	w, ok := e.workers[bar.Symbol]
	e.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case w.in <- bar:
	default:
		if e.metrics != nil {
			e.metrics.RecordError("bar_dropped")
		}
	}
}

// Process adapts OnBar to the pipeline's downstream interface. Routing never
// fails; invalid bars are rejected earlier and full buffers are counted.
func (e *TradeEngine) Process(_ context.Context, b *models.Bar) error {
	e.OnBar(b)
	return nil
}

func (e *TradeEngine) run(ctx context.Context, w *symbolWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar := <-w.in:
			completed, err := w.agg.OnBar(bar)
			if err != nil {
				if e.metrics != nil {
					e.metrics.RecordError("bar_rejected")
				}
				if e.l != nil {
					e.l.Warn("bar rejected", logger.String("symbol", w.symbol), logger.Error(err))
				}
				continue
			}
			if e.metrics != nil {
				e.metrics.RecordLastPrice(w.symbol, bar.Close)
			}
			if e.shouldDecide(completed) {
				e.decide(ctx, w)
			}
		}
	}
}

// shouldDecide gates the decision cycle on completion of the entry
// timeframe: trend bars complete less often and are re-read from history,
// execution bars alone never trigger an order.
func (e *TradeEngine) shouldDecide(completed []CompletedBar) bool {
	for _, c := range completed {
		if string(c.Timeframe) == e.cfg.Fusion.EntryTimeframe {
			return true
		}
	}
	return false
}

// decide runs one full cycle: score each tier, fuse, size, submit, audit.
func (e *TradeEngine) decide(ctx context.Context, w *symbolWorker) {
	start := time.Now()

	signals := e.scoreTiers(ctx, w)
	if len(signals) == 0 {
		return
	}

	result := e.fusion.Update(w.symbol, signals)
	if e.metrics != nil {
		e.metrics.RecordDecision(w.symbol, string(result.Final))
	}
	if err := e.audit.AppendDecision(ctx, result); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("audit_decision")
		}
		if e.l != nil {
			e.l.Error("audit decision append failed", logger.String("symbol", w.symbol), logger.Error(err))
		}
	}

	if result.Final != models.SignalLong && result.Final != models.SignalShort {
		return
	}
	e.execute(ctx, w, result)

	if e.metrics != nil {
		e.metrics.RecordLatency("decision_cycle", time.Since(start).Seconds())
	}
}

func (e *TradeEngine) scoreTiers(ctx context.Context, w *symbolWorker) []models.TimeframeSignal {
	tiers := []string{
		e.cfg.Fusion.TrendTimeframe,
		e.cfg.Fusion.EntryTimeframe,
		e.cfg.Fusion.ExecutionTimeframe,
	}
	signals := make([]models.TimeframeSignal, 0, len(tiers))
	for _, tf := range tiers {
		if tf == "" {
			continue
		}
		bars := w.agg.History(domrepo.Timeframe(tf), e.cfg.MinBars)
		if len(bars) < e.cfg.MinBars {
			// A tier without enough history abstains; fusion treats the
			// absence as reduced confidence, not as an error.
			continue
		}
		sig, err := e.scorer.Score(ctx, w.symbol, tf, features.FromBars(tf, bars))
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordError("inference")
			}
			if e.l != nil {
				e.l.Warn("scoring failed, tier abstains",
					logger.String("symbol", w.symbol),
					logger.String("timeframe", tf),
					logger.Error(err))
			}
			continue
		}
		signals = append(signals, sig)
	}
	return signals
}

func (e *TradeEngine) execute(ctx context.Context, w *symbolWorker, result *models.FusionResult) {
	if !e.limiter.Allow("orders:"+w.symbol, e.cfg.OrdersPerMinute, e.cfg.OrdersPerMinute/60.0) {
		if e.metrics != nil {
			e.metrics.RecordError("order_rate_limited")
		}
		return
	}

	equity, err := e.accounts.Equity(ctx)
	if err != nil {
		if e.l != nil {
			e.l.Error("equity fetch failed, skipping order", logger.String("symbol", w.symbol), logger.Error(err))
		}
		return
	}

	lots := w.sizer.Size(result.Confidence, equity)
	if lots == 0 {
		return
	}
	if ok, reason := w.sizer.Validate(lots); !ok {
		// The sizer should never emit an illegal size; if it does, refuse
		// to trade rather than let the broker decide.
		if e.l != nil {
			e.l.Error("sized lots failed final validation",
				logger.String("symbol", w.symbol),
				logger.String("reason", reason))
		}
		if e.metrics != nil {
			e.metrics.RecordError("lot_validation")
		}
		return
	}

	side := models.SideBuy
	if result.Final == models.SignalShort {
		side = models.SideSell
	}
	req := &models.OrderRequest{
		RequestID: uuid.NewString(),
		Symbol:    w.symbol,
		Side:      side,
		Lots:      lots,
		CreatedAt: time.Now().UTC(),
	}

	outcome, err := e.gateway.SubmitOrder(ctx, req)
	if err != nil {
		// Abandoned before any send; nothing reached the broker.
		if e.l != nil {
			e.l.Warn("order abandoned before send", logger.String("symbol", w.symbol), logger.Error(err))
		}
		return
	}

	if err := e.audit.AppendOutcome(ctx, outcome); err != nil {
		if e.metrics != nil {
			e.metrics.RecordError("audit_outcome")
		}
		if e.l != nil {
			e.l.Error("audit outcome append failed", logger.String("request_id", outcome.RequestID), logger.Error(err))
		}
	}

	if outcome.State == models.OutcomeUnknown && e.queue != nil {
		payload := ReconcilePayload{RequestID: outcome.RequestID, Symbol: outcome.Symbol, FirstSeen: time.Now().UTC()}
		if err := e.queue.PublishMessage(ctx, ReconcileMessageType, payload); err != nil {
			if e.l != nil {
				e.l.Error("failed to enqueue reconciliation",
					logger.String("request_id", outcome.RequestID),
					logger.Error(err))
			}
		}
	}
}

// Worker reports whether a worker exists for the symbol.
func (e *TradeEngine) Worker(symbol string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.workers[symbol]
	return ok
}

// Stop cancels all workers and waits for them to drain.
func (e *TradeEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	e.mu.Lock()
	for symbol := range e.workers {
		e.limiter.Forget("orders:" + symbol)
	}
	e.mu.Unlock()
}
