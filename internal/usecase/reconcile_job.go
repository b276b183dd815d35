package usecase

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/queue"
)

// ReconcileJob resolves UNKNOWN order outcomes from the queue by asking the
// broker what actually happened. The status query is idempotent, so the
// queue's retry machinery may re-run it freely; the original order is never
// resubmitted here.
type ReconcileJob struct {
	gateway *ExecutionGateway
	audit   AuditAppender
	l       *logger.Logger
}

// AuditAppender is the write-side slice of the audit sink the job needs.
type AuditAppender interface {
	AppendOutcome(ctx context.Context, o *models.OrderOutcome) error
}

func NewReconcileJob(gateway *ExecutionGateway, audit AuditAppender, l *logger.Logger) *ReconcileJob {
	return &ReconcileJob{gateway: gateway, audit: audit, l: l}
}

func (j *ReconcileJob) Name() string { return "order_reconcile_job" }

func (j *ReconcileJob) Type() string { return ReconcileMessageType }

// Handle queries the broker for the request's final state and appends the
// resolved outcome. Returning an error leaves the message in the queue for
// another attempt.
func (j *ReconcileJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ReconcilePayload](payload)
	if err != nil {
		return fmt.Errorf("reconcile payload: %w", err)
	}

	resp, err := j.gateway.OrderStatus(ctx, p.RequestID)
	if err != nil {
		return fmt.Errorf("reconcile %s: %w", p.RequestID, err)
	}

	out := &models.OrderOutcome{
		RequestID: p.RequestID,
		Symbol:    p.Symbol,
		Timestamp: time.Now().UTC(),
	}
	switch resp.Status {
	case "CONFIRMED":
		out.State = models.OutcomeConfirmed
		out.Ticket = resp.Ticket
	case "REJECTED", "ERROR":
		out.State = models.OutcomeRejected
		out.Reason = resp.Reason
	default:
		// The broker itself does not know yet; try again later.
		return fmt.Errorf("%w: broker reports %q for %s", models.ErrAmbiguousOutcome, resp.Status, p.RequestID)
	}

	if err := j.audit.AppendOutcome(ctx, out); err != nil {
		return fmt.Errorf("append reconciled outcome: %w", err)
	}
	if j.l != nil {
		j.l.Info("reconciled order outcome",
			logger.String("request_id", p.RequestID),
			logger.String("state", string(out.State)))
	}
	return nil
}
