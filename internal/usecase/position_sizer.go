package usecase

import (
	"fmt"
	"math"

	"TradeCore/internal/domain/models"
)

// SizerConfig holds the abstract-sizing parameters.
type SizerConfig struct {
	// PayoffRatio is the assumed win/loss payoff used by the Kelly fraction.
	PayoffRatio float64
	// RiskFraction caps the share of equity committed per trade.
	RiskFraction float64
}

// PositionSizer converts fused confidence into a broker-legal lot size in two
// independent steps: a Kelly-style abstract quantity, then normalization
// against the symbol's broker constraints.
type PositionSizer struct {
	cfg  SizerConfig
	spec models.SymbolTradeSpec
}

// NewPositionSizer validates both the sizing parameters and the broker spec
// before any sizing happens.
func NewPositionSizer(cfg SizerConfig, spec models.SymbolTradeSpec) (*PositionSizer, error) {
	if cfg.PayoffRatio <= 1 {
		return nil, fmt.Errorf("%w: payoff_ratio must be > 1, got %v", models.ErrConfiguration, cfg.PayoffRatio)
	}
	if cfg.RiskFraction <= 0 || cfg.RiskFraction > 1 {
		return nil, fmt.Errorf("%w: risk_fraction %v outside (0,1]", models.ErrConfiguration, cfg.RiskFraction)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &PositionSizer{cfg: cfg, spec: spec}, nil
}

// KellyFraction computes the clamped Kelly fraction for the given confidence:
// f* = (p*b - 1) / (b - 1), floored at zero.
func (s *PositionSizer) KellyFraction(confidence float64) float64 {
	f := (confidence*s.cfg.PayoffRatio - 1) / (s.cfg.PayoffRatio - 1)
	if f < 0 {
		return 0
	}
	return f
}

// Size maps fused confidence and account equity to a normalized lot size.
// A zero result means do-not-trade.
func (s *PositionSizer) Size(confidence, equity float64) float64 {
	if equity <= 0 {
		return 0
	}
	units := s.KellyFraction(confidence) * equity * s.cfg.RiskFraction
	return s.Normalize(units / s.spec.ContractSize)
}

// Normalize converts a raw lot quantity into a broker-legal one: floor to the
// nearest volume step (never round up), clamp into [min, max], and re-round
// to the step's decimal precision to cancel floating-point drift. Values
// below the minimum normalize to zero.
func (s *PositionSizer) Normalize(lots float64) float64 {
	if lots <= 0 || math.IsNaN(lots) || math.IsInf(lots, 0) {
		return 0
	}
	// The epsilon keeps an already-aligned value from flooring one step down
	// due to binary representation (0.11/0.01 = 10.999...). It is relative to
	// the step-count ratio so it stays above float64 ulp at large lot counts.
	ratio := lots / s.spec.VolumeStep
	steps := math.Floor(ratio + math.Abs(ratio)*1e-9 + 1e-9)
	normalized := steps * s.spec.VolumeStep
	normalized = roundToStepPrecision(normalized, s.spec.VolumeStep)

	if normalized < s.spec.VolumeMin {
		return 0
	}
	if normalized > s.spec.VolumeMax {
		return s.spec.VolumeMax
	}
	return normalized
}

// Validate is the last gate before an order is constructed: it independently
// rechecks min/max bounds and step alignment with a tolerance proportional to
// the step.
func (s *PositionSizer) Validate(lots float64) (bool, string) {
	if math.IsNaN(lots) || math.IsInf(lots, 0) {
		return false, "lots is not a finite number"
	}
	// Zero is the do-not-trade sentinel Normalize emits for sub-minimum
	// quantities; it is always a legal outcome.
	if lots == 0 {
		return true, "ok"
	}
	if lots < s.spec.VolumeMin {
		return false, fmt.Sprintf("lots %v below volume_min %v", lots, s.spec.VolumeMin)
	}
	if lots > s.spec.VolumeMax {
		return false, fmt.Sprintf("lots %v above volume_max %v", lots, s.spec.VolumeMax)
	}
	// Ratio-relative tolerance: division noise grows with the step count,
	// while genuine misalignment is at least a half step.
	steps := lots / s.spec.VolumeStep
	tol := math.Abs(steps)*1e-12 + 1e-9
	if math.Abs(steps-math.Round(steps)) > tol {
		return false, fmt.Sprintf("lots %v not aligned to volume_step %v", lots, s.spec.VolumeStep)
	}
	return true, "ok"
}

// Spec returns the broker constraints this sizer was built with.
func (s *PositionSizer) Spec() models.SymbolTradeSpec { return s.spec }

// roundToStepPrecision rounds v to the decimal precision implied by step
// (step=0.01 -> 2 places).
func roundToStepPrecision(v, step float64) float64 {
	places := 0
	for step < 1 && places < 10 {
		step *= 10
		places++
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
