package usecase

import (
	"errors"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

func mkBar(i int, open, high, low, close, vol float64) *models.Bar {
	base := time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)
	return &models.Bar{
		Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    vol,
	}
}

func TestAggregatorRejectsFractionalMultiple(t *testing.T) {
	// 1d over 1h is fine; 1h over 1d is not.
	if _, err := NewBarAggregator(domrepo.TF1h, []domrepo.Timeframe{domrepo.TF5m}, 16); err == nil {
		t.Fatal("expected configuration error for shrinking tier")
	}
	if _, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h, domrepo.TF1d}, 16); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
}

func TestAggregatorRejectsUnknownTimeframe(t *testing.T) {
	_, err := NewBarAggregator(domrepo.Timeframe("7m"), []domrepo.Timeframe{domrepo.TF1h}, 16)
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestTwelveBarsMakeOneHourly(t *testing.T) {
	agg, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h}, 16)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	var hourly []CompletedBar
	for i := 0; i < 12; i++ {
		out, err := agg.OnBar(mkBar(i, 100+float64(i), 101+float64(i), 99+float64(i), 100.5+float64(i), 10))
		if err != nil {
			t.Fatalf("on bar %d: %v", i, err)
		}
		hourly = append(hourly, out...)
	}

	if len(hourly) != 1 {
		t.Fatalf("completed = %d, want exactly 1 hourly bar", len(hourly))
	}
	h := hourly[0].Bar
	if h.Open != 100 {
		t.Fatalf("open = %v, want first bar's open 100", h.Open)
	}
	if h.Close != 111.5 {
		t.Fatalf("close = %v, want last bar's close 111.5", h.Close)
	}
	if h.High != 112 || h.Low != 99 {
		t.Fatalf("high/low = %v/%v, want 112/99", h.High, h.Low)
	}
	if h.Volume != 120 {
		t.Fatalf("volume = %v, want summed 120", h.Volume)
	}
	if h.Low > h.Open || h.Open > h.High || h.Low > h.Close || h.Close > h.High {
		t.Fatalf("OHLC invariant violated: %+v", h)
	}
}

func TestSeventyTwoBarsMakeSixHourliesZeroDailies(t *testing.T) {
	agg, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h, domrepo.TF1d}, 32)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	hourlies, dailies := 0, 0
	for i := 0; i < 72; i++ {
		out, err := agg.OnBar(mkBar(i, 100, 101, 99, 100, 1))
		if err != nil {
			t.Fatalf("on bar %d: %v", i, err)
		}
		for _, c := range out {
			switch c.Timeframe {
			case domrepo.TF1h:
				hourlies++
			case domrepo.TF1d:
				dailies++
			}
		}
	}
	if hourlies != 6 {
		t.Fatalf("hourlies = %d, want 6", hourlies)
	}
	if dailies != 0 {
		t.Fatalf("dailies = %d, want 0 (72 < 288 base bars per day)", dailies)
	}
	if got := agg.Accepted(domrepo.TF1h); got != 6 {
		t.Fatalf("accepted hourly count = %d, want 6", got)
	}
}

func TestCascadeIntoDailyTier(t *testing.T) {
	agg, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h, domrepo.TF1d}, 32)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	dailies := 0
	for i := 0; i < 288; i++ {
		out, err := agg.OnBar(mkBar(i, 100, 101, 99, 100, 1))
		if err != nil {
			t.Fatalf("on bar %d: %v", i, err)
		}
		for _, c := range out {
			if c.Timeframe == domrepo.TF1d {
				dailies++
				if c.Bar.Volume != 288 {
					t.Fatalf("daily volume = %v, want 288", c.Bar.Volume)
				}
			}
		}
	}
	if dailies != 1 {
		t.Fatalf("dailies = %d, want 1", dailies)
	}
}

func TestMalformedBarRejectedWithoutStateChange(t *testing.T) {
	agg, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h}, 16)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	for i := 0; i < 11; i++ {
		if _, err := agg.OnBar(mkBar(i, 100, 101, 99, 100, 1)); err != nil {
			t.Fatalf("on bar %d: %v", i, err)
		}
	}

	bad := mkBar(11, 100, 98, 99, 100, 1) // high < low
	if _, err := agg.OnBar(bad); !errors.Is(err, models.ErrDataQuality) {
		t.Fatalf("expected data quality error, got %v", err)
	}

	// The window must be unaffected: the next good bar completes the hour.
	out, err := agg.OnBar(mkBar(11, 100, 101, 99, 100, 1))
	if err != nil {
		t.Fatalf("good bar after bad: %v", err)
	}
	if len(out) != 1 || out[0].Timeframe != domrepo.TF1h {
		t.Fatalf("expected one hourly completion, got %v", out)
	}
}

func TestHistoryIsBoundedRing(t *testing.T) {
	agg, err := NewBarAggregator(domrepo.TF5m, []domrepo.Timeframe{domrepo.TF1h}, 4)
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	for i := 0; i < 12*10; i++ {
		if _, err := agg.OnBar(mkBar(i, float64(i), float64(i)+1, float64(i)-1, float64(i), 1)); err != nil {
			t.Fatalf("on bar %d: %v", i, err)
		}
	}
	his := agg.History(domrepo.TF1h, 100)
	if len(his) != 4 {
		t.Fatalf("history len = %d, want capped at 4", len(his))
	}
	if agg.Accepted(domrepo.TF1h) != 10 {
		t.Fatalf("accepted = %d, want 10", agg.Accepted(domrepo.TF1h))
	}
	// newest entries retained, oldest evicted
	if his[len(his)-1].Open != float64(12*9) {
		t.Fatalf("latest hourly open = %v, want %v", his[len(his)-1].Open, float64(12*9))
	}
}
