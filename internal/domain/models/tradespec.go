package models

import "fmt"

// SymbolTradeSpec holds the broker-declared volume constraints for one
// instrument. Loaded once per trading session and read-only afterwards, so it
// may be shared by reference across per-symbol workers.
type SymbolTradeSpec struct {
	Symbol       string  `json:"symbol"`
	ContractSize float64 `json:"contract_size"`
	VolumeMin    float64 `json:"volume_min"`
	VolumeMax    float64 `json:"volume_max"`
	VolumeStep   float64 `json:"volume_step"`
	PriceTick    float64 `json:"price_tick"`
}

// Validate enforces the broker-spec invariants at load time.
func (s SymbolTradeSpec) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("%w: trade spec symbol empty", ErrConfiguration)
	}
	if s.ContractSize <= 0 {
		return fmt.Errorf("%w: contract_size must be > 0, got %v", ErrConfiguration, s.ContractSize)
	}
	if s.VolumeStep <= 0 {
		return fmt.Errorf("%w: volume_step must be > 0, got %v", ErrConfiguration, s.VolumeStep)
	}
	if s.VolumeMin > s.VolumeMax {
		return fmt.Errorf("%w: volume_min %v above volume_max %v", ErrConfiguration, s.VolumeMin, s.VolumeMax)
	}
	return nil
}
