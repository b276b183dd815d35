package features

import (
	"math"

	"TradeCore/internal/domain/models"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}) over the closes of the given
// bars. Returns a slice of length len(bars)-1, or nil on insufficient data.
func LogReturns(bars []models.Bar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// RealizedVolatility computes the sample volatility of the trailing window of
// log returns, annualized with barsPerYear. Returns 0 when the window cannot
// be filled.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// BarsPerYear approximates how many bars of the given timeframe fit in a
// year, for annualization.
func BarsPerYear(tf string) float64 {
	switch tf {
	case "1m":
		return 365 * 24 * 60
	case "5m":
		return 365 * 24 * 12
	case "15m":
		return 365 * 24 * 4
	case "1h":
		return 365 * 24
	case "4h":
		return 365 * 6
	case "1d":
		return 365
	default:
		return 365 * 24
	}
}

// FromBars builds the flat feature map handed to the model scorer: trailing
// momentum, realized volatility, candle geometry of the latest bar, and
// relative volume. Keys are stable; the scorer treats them as a contract.
func FromBars(tf string, bars []models.Bar) map[string]float64 {
	f := make(map[string]float64, 8)
	if len(bars) == 0 {
		return f
	}
	last := bars[len(bars)-1]
	rets := LogReturns(bars)

	f["close"] = last.Close
	f["range"] = last.High - last.Low
	if last.Open > 0 {
		f["body"] = (last.Close - last.Open) / last.Open
	}
	if n := len(rets); n > 0 {
		f["ret_1"] = rets[n-1]
		sum := 0.0
		for _, r := range rets {
			sum += r
		}
		f["momentum"] = sum
	}
	if vol := RealizedVolatility(rets, min(len(rets), 20), BarsPerYear(tf)); vol > 0 {
		f["volatility"] = vol
	}
	if n := len(bars); n > 1 {
		avg := 0.0
		for _, b := range bars[:n-1] {
			avg += b.Volume
		}
		avg /= float64(n - 1)
		if avg > 0 {
			f["rel_volume"] = last.Volume / avg
		}
	}
	return f
}
