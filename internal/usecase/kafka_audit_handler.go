package usecase

import (
	"context"
	"encoding/json"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	pkgkafka "TradeCore/pkg/kafka"
)

// KafkaDecisionsHandler replays audited decisions from Kafka into the
// durable audit store. Used by the replay consumer when the live path runs
// with the kafka backend.
type KafkaDecisionsHandler struct {
	topic   string
	sink    domrepo.AuditSink
	metrics domrepo.Metrics
}

func NewKafkaDecisionsHandler(topic string, sink domrepo.AuditSink, metrics domrepo.Metrics) *KafkaDecisionsHandler {
	return &KafkaDecisionsHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaDecisionsHandler) Topic() string { return h.topic }

func (h *KafkaDecisionsHandler) Handle(ctx context.Context, b []byte) error {
	var r models.FusionResult
	if err := json.Unmarshal(b, &r); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("replay_unmarshal")
		}
		return err
	}
	if h.metrics != nil {
		h.metrics.RecordLatency("replay_decision_lag_seconds", time.Since(r.Timestamp).Seconds())
	}
	start := time.Now()
	err := h.sink.AppendDecision(ctx, &r)
	if h.metrics != nil {
		h.metrics.RecordLatency("replay_decision_insert_seconds", time.Since(start).Seconds())
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("replay_store")
		}
		return err
	}
	return nil
}

// KafkaOutcomesHandler replays order outcomes from Kafka into the durable
// audit store.
type KafkaOutcomesHandler struct {
	topic   string
	sink    domrepo.AuditSink
	metrics domrepo.Metrics
}

func NewKafkaOutcomesHandler(topic string, sink domrepo.AuditSink, metrics domrepo.Metrics) *KafkaOutcomesHandler {
	return &KafkaOutcomesHandler{topic: topic, sink: sink, metrics: metrics}
}

func (h *KafkaOutcomesHandler) Topic() string { return h.topic }

func (h *KafkaOutcomesHandler) Handle(ctx context.Context, b []byte) error {
	var o models.OrderOutcome
	if err := json.Unmarshal(b, &o); err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("replay_unmarshal")
		}
		return err
	}
	start := time.Now()
	err := h.sink.AppendOutcome(ctx, &o)
	if h.metrics != nil {
		h.metrics.RecordLatency("replay_outcome_insert_seconds", time.Since(start).Seconds())
	}
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordError("replay_store")
		}
		return err
	}
	return nil
}

var (
	_ pkgkafka.MessageHandler = (*KafkaDecisionsHandler)(nil)
	_ pkgkafka.MessageHandler = (*KafkaOutcomesHandler)(nil)
)
