package usecase

import (
	"fmt"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

// CompletedBar is a newly synthesized parent bar for one timeframe.
type CompletedBar struct {
	Timeframe domrepo.Timeframe
	Bar       models.Bar
}

// aggTier derives one parent period from its child period by an integer
// multiple. The sliding window never exceeds `multiple` entries.
type aggTier struct {
	child    domrepo.Timeframe
	parent   domrepo.Timeframe
	multiple int
	window   []models.Bar
	history  *barRing
}

// BarAggregator incrementally derives higher-period bars from a base bar
// stream across a validated chain of tiers. Not safe for concurrent use; each
// symbol worker owns its own aggregator.
type BarAggregator struct {
	base    domrepo.Timeframe
	baseHis *barRing
	tiers   []*aggTier
}

// NewBarAggregator builds the tier chain base -> parents[0] -> parents[1]...
// Each step requires parent period = multiple x child period for an integer
// multiple >= 2; anything else is a configuration error raised before any
// data flows.
func NewBarAggregator(base domrepo.Timeframe, parents []domrepo.Timeframe, historySize int) (*BarAggregator, error) {
	if base.Duration() <= 0 {
		return nil, fmt.Errorf("%w: unknown base timeframe %q", models.ErrConfiguration, base)
	}
	if historySize <= 0 {
		historySize = 64
	}

	a := &BarAggregator{base: base, baseHis: newBarRing(historySize)}
	child := base
	for _, parent := range parents {
		cd, pd := child.Duration(), parent.Duration()
		if pd <= 0 {
			return nil, fmt.Errorf("%w: unknown timeframe %q", models.ErrConfiguration, parent)
		}
		if pd%cd != 0 {
			return nil, fmt.Errorf("%w: %s is not an integer multiple of %s", models.ErrConfiguration, parent, child)
		}
		multiple := int(pd / cd)
		if multiple < 2 {
			return nil, fmt.Errorf("%w: tier multiple must be >= 2, got %d (%s over %s)", models.ErrConfiguration, multiple, parent, child)
		}
		a.tiers = append(a.tiers, &aggTier{
			child:    child,
			parent:   parent,
			multiple: multiple,
			window:   make([]models.Bar, 0, multiple),
			history:  newBarRing(historySize),
		})
		child = parent
	}
	return a, nil
}

// OnBar ingests one base-period bar and returns the parent bars completed by
// it across all tiers, ordered lowest tier first. Malformed bars are rejected
// without touching aggregator state.
func (a *BarAggregator) OnBar(b *models.Bar) ([]CompletedBar, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	a.baseHis.Push(*b)

	var completed []CompletedBar
	cur := *b
	for _, t := range a.tiers {
		t.window = append(t.window, cur)
		if len(t.window) < t.multiple {
			break
		}
		parent := synthesize(t.window)
		t.window = t.window[:0]
		t.history.Push(parent)
		completed = append(completed, CompletedBar{Timeframe: t.parent, Bar: parent})
		cur = parent // cascade into the next tier
	}
	return completed, nil
}

// History returns up to n most recent completed bars for tf, oldest-first.
// The base timeframe returns ingested bars.
func (a *BarAggregator) History(tf domrepo.Timeframe, n int) []models.Bar {
	if tf == a.base {
		return a.baseHis.Last(n)
	}
	for _, t := range a.tiers {
		if t.parent == tf {
			return t.history.Last(n)
		}
	}
	return nil
}

// Accepted returns the count of bars ever completed for tf.
func (a *BarAggregator) Accepted(tf domrepo.Timeframe) uint64 {
	if tf == a.base {
		return a.baseHis.Accepted()
	}
	for _, t := range a.tiers {
		if t.parent == tf {
			return t.history.Accepted()
		}
	}
	return 0
}

// Timeframes returns the configured parent timeframes, lowest first.
func (a *BarAggregator) Timeframes() []domrepo.Timeframe {
	out := make([]domrepo.Timeframe, 0, len(a.tiers)+1)
	out = append(out, a.base)
	for _, t := range a.tiers {
		out = append(out, t.parent)
	}
	return out
}

// synthesize reduces a full child window into one parent bar:
// open = first open, close = last close, high = max, low = min, volume = sum.
// The parent timestamp is the window's opening timestamp.
func synthesize(window []models.Bar) models.Bar {
	out := models.Bar{
		Symbol:    window[0].Symbol,
		Timestamp: window[0].Timestamp,
		Open:      window[0].Open,
		High:      window[0].High,
		Low:       window[0].Low,
		Close:     window[len(window)-1].Close,
	}
	for _, b := range window {
		if b.High > out.High {
			out.High = b.High
		}
		if b.Low < out.Low {
			out.Low = b.Low
		}
		out.Volume += b.Volume
	}
	return out
}
