package usecase

import (
	"context"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	mid "TradeCore/internal/middleware"
)

// BarCollector reads base bars from the market stream and feeds them through
// the validation pipeline into the trade engine.
type BarCollector struct {
	stream  domrepo.MarketStream
	engine  *TradeEngine
	metrics domrepo.Metrics
	pipe    *mid.BarPipeline
}

func NewBarCollector(stream domrepo.MarketStream, engine *TradeEngine, metrics domrepo.Metrics, pipe *mid.BarPipeline) *BarCollector {
	return &BarCollector{stream: stream, engine: engine, metrics: metrics, pipe: pipe}
}

// IsConnected reports whether the market stream link is up.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	barCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, barCh, errCh)
	return nil
}

// consume pumps bars into the pipeline until ctx is cancelled. The stream's
// read loop closes both channels when it dies; a closed channel is a terminal
// signal, so its case is disabled (nil channel) and once both are gone the
// stream is re-established and Read re-invoked for fresh channels.
func (c *BarCollector) consume(ctx context.Context, barCh <-chan *models.Bar, errCh <-chan error) {
	for {
		if barCh == nil && errCh == nil {
			if !c.reestablish(ctx) {
				return
			}
			barCh, errCh = c.stream.Read(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil && c.metrics != nil {
				c.metrics.RecordError("stream")
			}
		case b, ok := <-barCh:
			if !ok {
				barCh = nil
				continue
			}
			if b == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, b)
			} else {
				c.engine.OnBar(b)
			}
		}
	}
}

// reestablish retries Reconnect until it succeeds or ctx is cancelled.
func (c *BarCollector) reestablish(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if err := c.stream.Reconnect(ctx); err == nil {
			return true
		}
		if c.metrics != nil {
			c.metrics.RecordError("stream_reconnect")
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(time.Second):
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
