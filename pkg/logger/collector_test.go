package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]ErrorSummary
	topics  []string
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]ErrorSummary))
	return nil
}

func (p *capturePublisher) wait(t *testing.T) []ErrorSummary {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		if len(p.batches) > 0 {
			batch := p.batches[0]
			p.mu.Unlock()
			return batch
		}
		p.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no batch published")
	return nil
}

func TestCollectorDeduplicatesRepeats(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "errors",
		Publisher:      pub,
	})
	defer c.Close()

	for i := 0; i < 5; i++ {
		c.AddLog("error", "broker send failed", map[string]interface{}{"symbol": "EURUSD"}, "gateway.go:42")
	}
	c.AddLog("error", "equity fetch failed", nil, "client.go:80")

	c.mutex.Lock()
	c.flushLocked()
	c.mutex.Unlock()

	batch := pub.wait(t)
	if len(batch) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(batch))
	}
	for _, s := range batch {
		if s.Message == "broker send failed" && s.Count != 5 {
			t.Fatalf("expected count 5, got %d", s.Count)
		}
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 3,
		Topic:          "errors",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")
	c.AddLog("error", "c", nil, "x.go:3")

	batch := pub.wait(t)
	if len(batch) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(batch))
	}

	c.mutex.Lock()
	remaining := len(c.entries)
	c.mutex.Unlock()
	if remaining != 0 {
		t.Fatalf("expected empty map after flush, got %d entries", remaining)
	}
}
