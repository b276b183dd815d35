package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	mid "TradeCore/internal/middleware"
)

// scriptedStream fails its first read session the way the real client does:
// one error on errCh, then both channels close. Later sessions deliver a bar
// and stay open until ctx is cancelled.
type scriptedStream struct {
	reconnects int32
	readCalls  int32
}

func (s *scriptedStream) Connect(context.Context) error   { return nil }
func (s *scriptedStream) Subscribe(context.Context) error { return nil }
func (s *scriptedStream) Close() error                    { return nil }
func (s *scriptedStream) IsConnected() bool               { return true }

func (s *scriptedStream) Reconnect(context.Context) error {
	atomic.AddInt32(&s.reconnects, 1)
	return nil
}

func (s *scriptedStream) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	n := atomic.AddInt32(&s.readCalls, 1)
	bars := make(chan *models.Bar, 8)
	errs := make(chan error, 1)

	if n == 1 {
		errs <- fmt.Errorf("stream torn down")
		close(bars)
		close(errs)
		return bars, errs
	}

	bars <- &models.Bar{
		Symbol:    "EURUSD",
		Timestamp: time.Now().UTC(),
		Open:      1.0,
		High:      2.0,
		Low:       0.5,
		Close:     1.5,
		Volume:    10,
	}
	go func() {
		<-ctx.Done()
		close(bars)
		close(errs)
	}()
	return bars, errs
}

type countingProc struct {
	n int32
}

func (p *countingProc) Process(context.Context, *models.Bar) error {
	atomic.AddInt32(&p.n, 1)
	return nil
}

func TestCollectorResumesAfterStreamFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{}
	proc := &countingProc{}
	pipe := mid.NewBarPipeline(proc, nil)
	c := NewBarCollector(stream, nil, nil, pipe)

	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && atomic.LoadInt32(&proc.n) == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	if atomic.LoadInt32(&proc.n) == 0 {
		t.Fatal("no bar reached the pipeline after the stream failure")
	}
	if got := atomic.LoadInt32(&stream.reconnects); got == 0 {
		t.Fatal("stream was never reconnected")
	}
	if got := atomic.LoadInt32(&stream.readCalls); got < 2 {
		t.Fatalf("Read invoked %d times, want a fresh session after reconnect", got)
	}

	cancel()
	_ = c.Shutdown(context.Background())
}
