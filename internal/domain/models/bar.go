package models

import (
	"fmt"
	"math"
	"time"
)

// Bar represents one OHLCV record for a fixed period. Bars are immutable once
// emitted; consumers must not mutate them.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate checks the OHLC invariant (low <= open,close <= high), finiteness,
// and non-negative volume. Malformed bars are rejected at ingestion; the
// aggregator never attempts repair.
func (b *Bar) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: bar is nil", ErrDataQuality)
	}
	if b.Timestamp.IsZero() {
		return fmt.Errorf("%w: bar timestamp is zero", ErrDataQuality)
	}
	for _, v := range []float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bar field", ErrDataQuality)
		}
	}
	if b.Volume < 0 {
		return fmt.Errorf("%w: negative volume %v", ErrDataQuality, b.Volume)
	}
	if b.High < b.Low {
		return fmt.Errorf("%w: high %v below low %v", ErrDataQuality, b.High, b.Low)
	}
	if b.Open < b.Low || b.Open > b.High {
		return fmt.Errorf("%w: open %v outside [%v, %v]", ErrDataQuality, b.Open, b.Low, b.High)
	}
	if b.Close < b.Low || b.Close > b.High {
		return fmt.Errorf("%w: close %v outside [%v, %v]", ErrDataQuality, b.Close, b.Low, b.High)
	}
	return nil
}
