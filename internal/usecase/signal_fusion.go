package usecase

import (
	"fmt"
	"sync"
	"time"

	"TradeCore/internal/domain/models"
)

// FusionConfig holds the tunable fusion parameters. Thresholds and weights
// are configuration, not structure.
type FusionConfig struct {
	TrendTimeframe     string
	EntryTimeframe     string
	ExecutionTimeframe string // optional; may be empty

	TrendThreshold float64
	EntryThreshold float64
	ExecThreshold  float64

	TrendWeight float64
	EntryWeight float64
	ExecWeight  float64

	HistorySize int
}

// SignalFusionEngine combines per-timeframe signals into one decision per
// cycle under a strict hierarchy: the trend tier confirms, the entry tier
// triggers, and the execution tier may refine timing but never reverse
// direction. Every result is appended to a bounded in-memory history in
// addition to the external audit sink.
type SignalFusionEngine struct {
	cfg FusionConfig

	mu      sync.Mutex
	history []models.FusionResult
}

// NewSignalFusionEngine validates the hierarchy parameters. The entry
// threshold must be strictly higher than the trend threshold: entries require
// more confidence than trend confirmation.
func NewSignalFusionEngine(cfg FusionConfig) (*SignalFusionEngine, error) {
	if cfg.TrendTimeframe == "" || cfg.EntryTimeframe == "" {
		return nil, fmt.Errorf("%w: trend and entry timeframes are required", models.ErrConfiguration)
	}
	if cfg.TrendTimeframe == cfg.EntryTimeframe {
		return nil, fmt.Errorf("%w: trend and entry timeframes must differ", models.ErrConfiguration)
	}
	for _, th := range []float64{cfg.TrendThreshold, cfg.EntryThreshold, cfg.ExecThreshold} {
		if th < 0 || th >= 1 {
			return nil, fmt.Errorf("%w: threshold %v outside [0,1)", models.ErrConfiguration, th)
		}
	}
	if cfg.EntryThreshold <= cfg.TrendThreshold {
		return nil, fmt.Errorf("%w: entry threshold %v must exceed trend threshold %v",
			models.ErrConfiguration, cfg.EntryThreshold, cfg.TrendThreshold)
	}
	for _, w := range []float64{cfg.TrendWeight, cfg.EntryWeight, cfg.ExecWeight} {
		if w < 0 || w > 1 {
			return nil, fmt.Errorf("%w: weight %v outside [0,1]", models.ErrConfiguration, w)
		}
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 1024
	}
	return &SignalFusionEngine{cfg: cfg}, nil
}

// Update fuses one cycle's signals into a FusionResult. Each call is
// independent; signals for timeframes outside the configured hierarchy are
// ignored.
func (e *SignalFusionEngine) Update(symbol string, signals []models.TimeframeSignal) *models.FusionResult {
	byTF := make(map[string]models.TimeframeSignal, len(signals))
	for _, s := range signals {
		byTF[s.Timeframe] = s
	}

	res := &models.FusionResult{
		Symbol:       symbol,
		Timestamp:    time.Now().UTC(),
		Contributing: signals,
	}

	trend, trendOK := byTF[e.cfg.TrendTimeframe]
	entry, entryOK := byTF[e.cfg.EntryTimeframe]

	trendDir := models.DirectionNone
	if trendOK {
		trendDir = trend.Direction(e.cfg.TrendThreshold)
	}
	entryDir := models.DirectionNone
	if entryOK {
		entryDir = entry.Direction(e.cfg.EntryThreshold)
	}

	switch {
	case trendDir == models.DirectionNone:
		res.Final = models.SignalNoSignal
		res.Reasoning = "awaiting trend confirmation"
	case entryDir == models.DirectionNone:
		res.Final = models.SignalNoSignal
		res.Reasoning = "awaiting entry confirmation"
	case trendDir != entryDir:
		// Hard veto: conflicting tiers are never merged or averaged.
		res.Final = models.SignalNoTrade
		res.Reasoning = fmt.Sprintf("conflicting signals (trend=%s entry=%s), trading halted for this cycle", trendDir, entryDir)
	default:
		res.Final = models.FinalSignal(trendDir)
		res.Reasoning = fmt.Sprintf("trend and entry agree on %s", trendDir)
		if e.cfg.ExecutionTimeframe != "" {
			if exec, ok := byTF[e.cfg.ExecutionTimeframe]; ok {
				if d := exec.Direction(e.cfg.ExecThreshold); d != models.DirectionNone && d != trendDir {
					// Execution tier may refine timing, never flip direction.
					res.Reasoning += fmt.Sprintf("; execution tier disagrees (%s) but cannot reverse", d)
				}
			}
		}
		res.Confidence = e.confidence(byTF)
	}

	e.append(res)
	return res
}

// confidence is a weighted sum of per-tier strengths. Absent tiers contribute
// zero and their weight is not redistributed, so missing input can only lower
// confidence, never inflate it.
func (e *SignalFusionEngine) confidence(byTF map[string]models.TimeframeSignal) float64 {
	c := 0.0
	if s, ok := byTF[e.cfg.TrendTimeframe]; ok {
		c += e.cfg.TrendWeight * s.Strength()
	}
	if s, ok := byTF[e.cfg.EntryTimeframe]; ok {
		c += e.cfg.EntryWeight * s.Strength()
	}
	if e.cfg.ExecutionTimeframe != "" {
		if s, ok := byTF[e.cfg.ExecutionTimeframe]; ok {
			c += e.cfg.ExecWeight * s.Strength()
		}
	}
	if c > 1 {
		c = 1
	}
	return c
}

func (e *SignalFusionEngine) append(r *models.FusionResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, *r)
	if len(e.history) > e.cfg.HistorySize {
		e.history = e.history[len(e.history)-e.cfg.HistorySize:]
	}
}

// History returns a copy of the retained fusion results, oldest first.
func (e *SignalFusionEngine) History() []models.FusionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.FusionResult, len(e.history))
	copy(out, e.history)
	return out
}
