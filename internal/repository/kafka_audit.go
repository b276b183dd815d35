package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	pkgkafka "TradeCore/pkg/kafka"
)

// ErrQueryUnsupported is returned by streaming-only audit backends.
var ErrQueryUnsupported = errors.New("audit queries are not supported on this backend")

// KafkaAudit implements the append side of AuditSink by publishing every
// decision and outcome to Kafka topics, keyed by symbol so per-symbol order
// is preserved within a partition. Queries are served by the ClickHouse
// backend (or a downstream consumer), not here.
type KafkaAudit struct {
	producer       *pkgkafka.Producer
	decisionsTopic string
	outcomesTopic  string
}

func NewKafkaAudit(producer *pkgkafka.Producer, decisionsTopic, outcomesTopic string) *KafkaAudit {
	return &KafkaAudit{producer: producer, decisionsTopic: decisionsTopic, outcomesTopic: outcomesTopic}
}

func (k *KafkaAudit) AppendDecision(ctx context.Context, r *models.FusionResult) error {
	if r == nil {
		return fmt.Errorf("decision is nil")
	}
	return k.producer.Publish(ctx, k.decisionsTopic, []byte(r.Symbol), r)
}

func (k *KafkaAudit) AppendOutcome(ctx context.Context, o *models.OrderOutcome) error {
	if o == nil {
		return fmt.Errorf("outcome is nil")
	}
	return k.producer.Publish(ctx, k.outcomesTopic, []byte(o.Symbol), o)
}

func (k *KafkaAudit) Decisions(context.Context, string, time.Time, time.Time, int) ([]models.FusionResult, error) {
	return nil, ErrQueryUnsupported
}

func (k *KafkaAudit) Outcomes(context.Context, string, time.Time, time.Time, int) ([]models.OrderOutcome, error) {
	return nil, ErrQueryUnsupported
}

func (k *KafkaAudit) Health(context.Context) error { return nil }

func (k *KafkaAudit) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

var _ domrepo.AuditSink = (*KafkaAudit)(nil)
