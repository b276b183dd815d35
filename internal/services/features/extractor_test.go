package features

import (
	"math"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
)

func seriesBars(closes []float64) []models.Bar {
	base := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	out := make([]models.Bar, 0, len(closes))
	for i, c := range closes {
		out = append(out, models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    100,
		})
	}
	return out
}

func TestLogReturns(t *testing.T) {
	bars := seriesBars([]float64{100, 110, 99})
	rets := LogReturns(bars)
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("wrong first return: %v", rets[0])
	}
	if rets[1] >= 0 {
		t.Fatalf("expected negative return, got %v", rets[1])
	}
	if LogReturns(bars[:1]) != nil {
		t.Fatal("single bar should produce no returns")
	}
}

func TestRealizedVolatilityZeroOnShortWindow(t *testing.T) {
	rets := []float64{0.01, -0.02}
	if v := RealizedVolatility(rets, 5, BarsPerYear("1h")); v != 0 {
		t.Fatalf("expected 0 for unfilled window, got %v", v)
	}
	if v := RealizedVolatility(rets, 1, BarsPerYear("1h")); v != 0 {
		t.Fatalf("window of 1 has no variance, got %v", v)
	}
}

func TestRealizedVolatilityConstantSeriesIsZero(t *testing.T) {
	rets := make([]float64, 30)
	if v := RealizedVolatility(rets, 20, BarsPerYear("1d")); v != 0 {
		t.Fatalf("constant series must have zero volatility, got %v", v)
	}
}

func TestFromBarsFeatureContract(t *testing.T) {
	bars := seriesBars([]float64{100, 101, 102, 103, 104})
	f := FromBars("1h", bars)

	if f["close"] != 104 {
		t.Fatalf("close = %v", f["close"])
	}
	if f["range"] != 2 {
		t.Fatalf("range = %v", f["range"])
	}
	if f["momentum"] <= 0 {
		t.Fatalf("rising series must have positive momentum, got %v", f["momentum"])
	}
	if f["ret_1"] <= 0 {
		t.Fatalf("last return should be positive, got %v", f["ret_1"])
	}
	// all bars carry identical volume
	if math.Abs(f["rel_volume"]-1) > 1e-9 {
		t.Fatalf("rel_volume = %v, want 1", f["rel_volume"])
	}
}

func TestFromBarsEmptyInput(t *testing.T) {
	f := FromBars("1h", nil)
	if len(f) != 0 {
		t.Fatalf("expected empty feature map, got %v", f)
	}
}
