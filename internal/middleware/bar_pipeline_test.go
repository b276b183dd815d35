package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
)

type recordingProc struct {
	mu   sync.Mutex
	bars []models.Bar
	err  error
}

func (r *recordingProc) Process(_ context.Context, b *models.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.bars = append(r.bars, *b)
	return nil
}

func (r *recordingProc) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bars)
}

func validBar(sym string, ts time.Time) *models.Bar {
	return &models.Bar{
		Symbol:    sym,
		Timestamp: ts,
		Open:      1.10,
		High:      1.11,
		Low:       1.09,
		Close:     1.105,
		Volume:    10,
	}
}

func TestPipelineForwardsValidBars(t *testing.T) {
	proc := &recordingProc{}
	p := NewBarPipeline(proc, nil)
	now := time.Now().UTC()

	if err := p.Process(context.Background(), validBar("EURUSD", now)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded %d bars, want 1", proc.count())
	}
}

func TestPipelineRejectsMalformedBar(t *testing.T) {
	proc := &recordingProc{}
	p := NewBarPipeline(proc, nil)

	b := validBar("EURUSD", time.Now().UTC())
	b.High = b.Low - 1
	if err := p.Process(context.Background(), b); !errors.Is(err, models.ErrDataQuality) {
		t.Fatalf("expected data quality error, got %v", err)
	}
	if proc.count() != 0 {
		t.Fatal("malformed bar reached downstream")
	}
}

func TestPipelineDropsOutOfOrderBars(t *testing.T) {
	proc := &recordingProc{}
	p := NewBarPipeline(proc, nil)
	now := time.Now().UTC()

	if err := p.Process(context.Background(), validBar("EURUSD", now)); err != nil {
		t.Fatalf("process: %v", err)
	}
	// Same timestamp and an older one must both be dropped without error.
	if err := p.Process(context.Background(), validBar("EURUSD", now)); err != nil {
		t.Fatalf("duplicate bar errored: %v", err)
	}
	if err := p.Process(context.Background(), validBar("EURUSD", now.Add(-time.Minute))); err != nil {
		t.Fatalf("stale bar errored: %v", err)
	}
	if proc.count() != 1 {
		t.Fatalf("forwarded %d bars, want 1", proc.count())
	}

	// A different symbol keeps its own clock.
	if err := p.Process(context.Background(), validBar("GBPUSD", now.Add(-time.Hour))); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if proc.count() != 2 {
		t.Fatalf("forwarded %d bars, want 2", proc.count())
	}
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	proc := &recordingProc{err: errors.New("backend down")}
	p := NewBarPipeline(proc, nil, WithBufferSize(4))
	now := time.Now().UTC()

	if err := p.Process(context.Background(), validBar("EURUSD", now)); err == nil {
		t.Fatal("expected downstream error")
	}

	// Recover the downstream and let the flusher drain the buffer.
	proc.mu.Lock()
	proc.err = nil
	proc.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(3 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered bar was never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
