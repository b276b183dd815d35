package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
)

// BarProc is the downstream consumer of validated bars.
type BarProc interface {
	Process(ctx context.Context, b *models.Bar) error
}

// BarPipeline sits between the market stream and the trade engine. It
// validates bars, enforces per-symbol timestamp monotonicity, and buffers
// when the downstream momentarily fails.
type BarPipeline struct {
	proc    BarProc
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan *models.Bar
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// lastTS is the per-symbol timestamp of the last accepted bar.
	lastTS map[string]time.Time
}

type PipelineOption func(*BarPipeline)

// WithBufferSize sets the temporary buffer size used when downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *BarPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewBarPipeline(proc BarProc, metrics domrepo.Metrics, opts ...PipelineOption) *BarPipeline {
	p := &BarPipeline{
		proc:    proc,
		metrics: metrics,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
		lastTS:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Bar, p.bufSize)
	return p
}

// Start launches background flushing of buffered bars.
func (p *BarPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case b := <-p.bufCh:
				if b == nil {
					continue
				}
				if err := p.proc.Process(ctx, b); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.recordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- b:
					default:
						p.recordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *BarPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards one bar, buffering it if the downstream
// fails. Out-of-order bars are dropped: the aggregation chain assumes a
// monotonic base stream and replaying the past would corrupt open windows.
func (p *BarPipeline) Process(ctx context.Context, b *models.Bar) error {
	start := time.Now()
	if err := b.Validate(); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if b.Symbol == "" {
		p.recordError("pipeline_validate")
		return fmt.Errorf("%w: bar has no symbol", models.ErrDataQuality)
	}
	if !p.accept(b) {
		p.recordError("pipeline_out_of_order")
		return nil
	}

	if err := p.proc.Process(ctx, b); err != nil {
		p.recordError("pipeline_process")
		select {
		case p.bufCh <- b:
		default:
			p.recordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	}
	return nil
}

func (p *BarPipeline) accept(b *models.Bar) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastTS[b.Symbol]
	if ok && !b.Timestamp.After(last) {
		return false
	}
	p.lastTS[b.Symbol] = b.Timestamp
	return true
}

func (p *BarPipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}
