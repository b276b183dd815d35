package usecase

import (
	"errors"
	"math"
	"testing"

	"TradeCore/internal/domain/models"
)

func testSpec() models.SymbolTradeSpec {
	return models.SymbolTradeSpec{
		Symbol:       "EURUSD",
		ContractSize: 100000,
		VolumeMin:    0.01,
		VolumeMax:    100.0,
		VolumeStep:   0.01,
		PriceTick:    0.00001,
	}
}

func newSizer(t *testing.T) *PositionSizer {
	t.Helper()
	s, err := NewPositionSizer(SizerConfig{PayoffRatio: 2.0, RiskFraction: 0.02}, testSpec())
	if err != nil {
		t.Fatalf("new sizer: %v", err)
	}
	return s
}

func TestSizerConfigValidation(t *testing.T) {
	if _, err := NewPositionSizer(SizerConfig{PayoffRatio: 1.0, RiskFraction: 0.02}, testSpec()); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("payoff_ratio 1.0 accepted: %v", err)
	}
	if _, err := NewPositionSizer(SizerConfig{PayoffRatio: 2.0, RiskFraction: 0}, testSpec()); err == nil {
		t.Fatal("zero risk fraction accepted")
	}
	spec := testSpec()
	spec.VolumeStep = 0
	if _, err := NewPositionSizer(SizerConfig{PayoffRatio: 2.0, RiskFraction: 0.02}, spec); err == nil {
		t.Fatal("zero volume_step accepted")
	}
}

func TestKellyFractionClampedAtZero(t *testing.T) {
	s := newSizer(t)
	if f := s.KellyFraction(0.3); f != 0 {
		t.Fatalf("kelly(0.3) = %v, want 0 (clamped)", f)
	}
	// f* = (0.8*2 - 1) / (2 - 1) = 0.6
	if f := s.KellyFraction(0.8); math.Abs(f-0.6) > 1e-12 {
		t.Fatalf("kelly(0.8) = %v, want 0.6", f)
	}
}

func TestNormalizeFloorsToStep(t *testing.T) {
	s := newSizer(t)
	if got := s.Normalize(0.11312); got != 0.11 {
		t.Fatalf("normalize(0.11312) = %v, want 0.11", got)
	}
}

func TestNormalizeClampsAboveMax(t *testing.T) {
	s := newSizer(t)
	if got := s.Normalize(150.0); got != 100.0 {
		t.Fatalf("normalize(150.0) = %v, want 100.0", got)
	}
}

func TestNormalizeBelowMinIsDoNotTrade(t *testing.T) {
	s := newSizer(t)
	if got := s.Normalize(0.004); got != 0.0 {
		t.Fatalf("normalize(0.004) = %v, want 0.0", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	s := newSizer(t)
	for _, raw := range []float64{0.11312, 0.07, 1.0, 3.3333, 99.999, 150.0} {
		once := s.Normalize(raw)
		twice := s.Normalize(once)
		if once != twice {
			t.Fatalf("normalize not idempotent at %v: %v != %v", raw, once, twice)
		}
	}
}

func TestValidateAfterNormalizeRoundTrips(t *testing.T) {
	s := newSizer(t)
	// Includes raws that normalize to the zero do-not-trade sentinel; the
	// round trip must hold for those too.
	for _, raw := range []float64{0, 0.004, 0.011, 0.11312, 0.5, 7.77, 42.424242, 100.0, 1234.5} {
		lots := s.Normalize(raw)
		if ok, reason := s.Validate(lots); !ok {
			t.Fatalf("validate(normalize(%v)=%v) failed: %s", raw, lots, reason)
		}
	}
}

func TestValidateAcceptsZeroSentinel(t *testing.T) {
	s := newSizer(t)
	if ok, reason := s.Validate(0); !ok {
		t.Fatalf("validate(0) = false (%s), zero is the do-not-trade sentinel", reason)
	}
}

func TestNormalizeStableAtLargeLotCounts(t *testing.T) {
	spec := testSpec()
	spec.VolumeMax = 1e9
	s, err := NewPositionSizer(SizerConfig{PayoffRatio: 2.0, RiskFraction: 0.02}, spec)
	if err != nil {
		t.Fatalf("new sizer: %v", err)
	}
	// At ~1e8 steps, float64 ulp of the ratio exceeds a step-scaled epsilon;
	// an aligned value must still not floor one step down.
	if got := s.Normalize(1_000_000.00); got != 1_000_000.00 {
		t.Fatalf("normalize(1e6) = %v, want 1e6", got)
	}
	if ok, reason := s.Validate(s.Normalize(999_999.99)); !ok {
		t.Fatalf("large-count round trip failed: %s", reason)
	}
}

func TestValidateRejectsMisaligned(t *testing.T) {
	s := newSizer(t)
	if ok, _ := s.Validate(0.115); ok {
		t.Fatal("misaligned lots accepted")
	}
	if ok, _ := s.Validate(0.005); ok {
		t.Fatal("below-min lots accepted")
	}
	if ok, _ := s.Validate(100.01); ok {
		t.Fatal("above-max lots accepted")
	}
}

func TestSizeUsesEquityAndRiskCap(t *testing.T) {
	s := newSizer(t)
	// kelly(0.8)=0.6, equity 100000, risk 0.02 -> 1200 units -> 0.012 lots -> floored 0.01
	if got := s.Size(0.8, 100000); got != 0.01 {
		t.Fatalf("size = %v, want 0.01", got)
	}
	if got := s.Size(0.8, 0); got != 0 {
		t.Fatalf("size with zero equity = %v, want 0", got)
	}
	if got := s.Size(0.2, 100000); got != 0 {
		t.Fatalf("size with low confidence = %v, want 0", got)
	}
}
