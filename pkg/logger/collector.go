package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// Publisher ships an aggregated batch somewhere durable (queue, Kafka topic).
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

// CollectionConfig tunes error-log aggregation. A noisy reconnect loop can
// emit the same error thousands of times a minute; the collector collapses
// identical entries and ships counted summaries instead.
type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval
	CountThreshold int           // max distinct entries before an early flush
	Topic          string        // destination topic for summaries
	Publisher      Publisher
}

// ErrorSummary is one deduplicated log line with its occurrence count.
type ErrorSummary struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector deduplicates error logs between flushes.
type LogCollector struct {
	config  *CollectionConfig
	entries map[uint64]*ErrorSummary
	mutex   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	ctx, cancel := context.WithCancel(context.Background())

	c := &LogCollector{
		config:  config,
		entries: make(map[uint64]*ErrorSummary),
		ctx:     ctx,
		cancel:  cancel,
	}

	c.wg.Add(1)
	go c.flushLoop()

	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := dedupeKey(level, message, fields, caller)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if entry, exists := c.entries[key]; exists {
		entry.Count++
		entry.LastSeen = now
	} else {
		c.entries[key] = &ErrorSummary{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}

	if len(c.entries) >= c.config.CountThreshold {
		c.flushLocked()
	}
}

// dedupeKey hashes level+message+fields+caller so repeats of the same line
// collapse into one summary.
func dedupeKey(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(level))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(message))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(caller))
	_, _ = h.Write([]byte{0})
	if len(fields) > 0 {
		raw, _ := json.Marshal(fields)
		_, _ = h.Write(raw)
	}
	return h.Sum64()
}

func (c *LogCollector) flushLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
		case <-c.ctx.Done():
			// Final flush before shutdown
			c.mutex.Lock()
			c.flushLocked()
			c.mutex.Unlock()
			return
		}
	}
}

// flushLocked publishes the current batch and resets the map. Caller holds
// the mutex.
func (c *LogCollector) flushLocked() {
	if len(c.entries) == 0 {
		return
	}

	batch := make([]ErrorSummary, 0, len(c.entries))
	for _, entry := range c.entries {
		batch = append(batch, *entry)
	}
	c.entries = make(map[uint64]*ErrorSummary)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := c.config.Publisher.PublishMessage(ctx, c.config.Topic, batch); err != nil {
			fmt.Printf("log collector: publish failed: %v\n", err)
		}
	}()
}

func (c *LogCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
