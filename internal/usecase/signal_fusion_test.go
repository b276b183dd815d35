package usecase

import (
	"errors"
	"math"
	"testing"

	"TradeCore/internal/domain/models"
)

func fusionCfg() FusionConfig {
	return FusionConfig{
		TrendTimeframe:     "1d",
		EntryTimeframe:     "1h",
		ExecutionTimeframe: "5m",
		TrendThreshold:     0.55,
		EntryThreshold:     0.65,
		ExecThreshold:      0.60,
		TrendWeight:        0.50,
		EntryWeight:        0.35,
		ExecWeight:         0.15,
		HistorySize:        16,
	}
}

func sig(tf string, pLong, pShort float64) models.TimeframeSignal {
	return models.TimeframeSignal{Timeframe: tf, PLong: pLong, PShort: pShort}
}

func TestFusionConfigValidation(t *testing.T) {
	cfg := fusionCfg()
	cfg.EntryThreshold = cfg.TrendThreshold // must be strictly higher
	if _, err := NewSignalFusionEngine(cfg); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	cfg = fusionCfg()
	cfg.TrendTimeframe = ""
	if _, err := NewSignalFusionEngine(cfg); err == nil {
		t.Fatal("missing trend timeframe accepted")
	}
}

func TestConflictVeto(t *testing.T) {
	e, err := NewSignalFusionEngine(fusionCfg())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.9, 0.0),
		sig("1h", 0.0, 0.9),
	})
	if res.Final != models.SignalNoTrade {
		t.Fatalf("final = %s, want NO_TRADE on trend/entry conflict", res.Final)
	}
}

func TestNoSignalWhenTrendAbstains(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.5, 0.5), // below trend threshold
		sig("1h", 0.9, 0.0),
	})
	if res.Final != models.SignalNoSignal {
		t.Fatalf("final = %s, want NO_SIGNAL", res.Final)
	}
	if res.Reasoning != "awaiting trend confirmation" {
		t.Fatalf("reasoning = %q", res.Reasoning)
	}
}

func TestNoSignalWhenEntryAbstains(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.8, 0.0),
		sig("1h", 0.60, 0.0), // clears trend threshold but not entry's
	})
	if res.Final != models.SignalNoSignal {
		t.Fatalf("final = %s, want NO_SIGNAL", res.Final)
	}
}

func TestAgreementEmitsDirection(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.8, 0.1),
		sig("1h", 0.7, 0.1),
		sig("5m", 0.7, 0.0),
	})
	if res.Final != models.SignalLong {
		t.Fatalf("final = %s, want LONG", res.Final)
	}
	want := 0.50*0.7 + 0.35*0.6 + 0.15*0.7
	if math.Abs(res.Confidence-want) > 1e-9 {
		t.Fatalf("confidence = %v, want %v", res.Confidence, want)
	}
}

func TestExecutionTierCannotReverse(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.8, 0.1),
		sig("1h", 0.8, 0.1),
		sig("5m", 0.0, 0.9), // actively disagrees
	})
	if res.Final != models.SignalLong {
		t.Fatalf("final = %s, execution tier must not reverse trend/entry", res.Final)
	}
}

func TestMissingExecutionTierLowersConfidenceOnly(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	with := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.8, 0.1),
		sig("1h", 0.8, 0.1),
		sig("5m", 0.9, 0.1),
	})
	without := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.8, 0.1),
		sig("1h", 0.8, 0.1),
	})
	if without.Final != models.SignalLong {
		t.Fatalf("final = %s, want LONG without execution tier", without.Final)
	}
	if without.Confidence >= with.Confidence {
		t.Fatalf("missing tier must lower confidence: with=%v without=%v", with.Confidence, without.Confidence)
	}
}

func TestShortSideFusion(t *testing.T) {
	e, _ := NewSignalFusionEngine(fusionCfg())
	res := e.Update("EURUSD", []models.TimeframeSignal{
		sig("1d", 0.1, 0.8),
		sig("1h", 0.1, 0.7),
	})
	if res.Final != models.SignalShort {
		t.Fatalf("final = %s, want SHORT", res.Final)
	}
}

func TestHistoryIsAppendOnlyAndBounded(t *testing.T) {
	cfg := fusionCfg()
	cfg.HistorySize = 4
	e, _ := NewSignalFusionEngine(cfg)
	for i := 0; i < 10; i++ {
		e.Update("EURUSD", []models.TimeframeSignal{sig("1d", 0.8, 0.1), sig("1h", 0.8, 0.1)})
	}
	h := e.History()
	if len(h) != 4 {
		t.Fatalf("history len = %d, want 4", len(h))
	}
	for _, r := range h {
		if len(r.Contributing) != 2 {
			t.Fatalf("result missing contributing signals: %+v", r)
		}
	}
}
