package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/retry"
)

// GatewayConfig holds the per-operation resilience parameters. Queries and
// order submission deliberately use different policies: repeating a query is
// free, repeating an order is not.
type GatewayConfig struct {
	// QueryPolicy governs idempotent queries and control messages.
	QueryPolicy retry.Policy
	// OrderSendRetries bounds resends when the request provably never
	// reached the peer.
	OrderSendRetries int
	// OrderRetryWait is the constant sleep between such resends.
	OrderRetryWait time.Duration
}

// ExecutionGateway owns the request/reply wire protocol to the broker peer.
// Its central safety property: a response-leg timeout on an order call is
// never retried — the order may have executed, so the gateway reports
// UNKNOWN and makes zero further calls for that request_id.
type ExecutionGateway struct {
	transport domrepo.BrokerTransport
	cfg       GatewayConfig
	l         *logger.Logger
	metrics   domrepo.Metrics
}

// NewExecutionGateway validates the resilience configuration up front;
// absence of a usable policy is a configuration error, not a silent
// downgrade.
func NewExecutionGateway(transport domrepo.BrokerTransport, cfg GatewayConfig, l *logger.Logger, metrics domrepo.Metrics) (*ExecutionGateway, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: broker transport is required", models.ErrConfiguration)
	}
	if err := cfg.QueryPolicy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: query policy: %v", models.ErrConfiguration, err)
	}
	if cfg.OrderSendRetries < 0 {
		return nil, fmt.Errorf("%w: order send retries must be >= 0", models.ErrConfiguration)
	}
	if cfg.OrderRetryWait <= 0 {
		cfg.OrderRetryWait = 250 * time.Millisecond
	}
	return &ExecutionGateway{transport: transport, cfg: cfg, l: l, metrics: metrics}, nil
}

// Ping checks link liveness under the query policy.
func (g *ExecutionGateway) Ping(ctx context.Context) error {
	return retry.Do(ctx, g.cfg.QueryPolicy, "broker_ping", g.l, func(ctx context.Context) error {
		_, err := g.transport.Call(ctx, &domrepo.BrokerRequest{Action: "ping"})
		return classifyQueryErr(err)
	})
}

// OrderStatus queries the broker's view of a previously submitted request.
// Safe to repeat; used by reconciliation to resolve UNKNOWN outcomes.
func (g *ExecutionGateway) OrderStatus(ctx context.Context, requestID string) (*domrepo.BrokerResponse, error) {
	var resp *domrepo.BrokerResponse
	err := retry.Do(ctx, g.cfg.QueryPolicy, "order_status", g.l, func(ctx context.Context) error {
		r, err := g.transport.Call(ctx, &domrepo.BrokerRequest{Action: "status", RequestID: requestID})
		if err != nil {
			g.recordRetryable("order_status")
			return classifyQueryErr(err)
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("order status %s: %w", requestID, err)
	}
	return resp, nil
}

// SubmitOrder dispatches one order request and always resolves it to a
// tri-state outcome once a send has been attempted. The returned error is
// non-nil only when the cycle was abandoned before any request left the
// process.
func (g *ExecutionGateway) SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderOutcome, error) {
	if req == nil || req.RequestID == "" {
		return nil, fmt.Errorf("%w: order request needs a request_id", models.ErrConfiguration)
	}
	if err := ctx.Err(); err != nil {
		// Abandonment is only available before the request leaves.
		return nil, err
	}

	wire := &domrepo.BrokerRequest{
		Action:    "order",
		RequestID: req.RequestID,
		Symbol:    req.Symbol,
		Side:      string(req.Side),
		Lots:      req.Lots,
	}

	attempts := 0
	for {
		attempts++
		resp, err := g.transport.Call(ctx, wire)
		if err == nil {
			return g.outcomeFromResponse(req, resp, attempts), nil
		}

		switch {
		case errors.Is(err, domrepo.ErrRequestNotSent):
			// Provably never reached the peer; resending with the same
			// request_id is safe, bounded by config.
			if attempts <= g.cfg.OrderSendRetries {
				g.recordRetryable("order_send")
				if g.l != nil {
					g.l.Warn("order send failed before reaching peer, retrying",
						logger.String("request_id", req.RequestID),
						logger.Int("attempt", attempts),
						logger.Error(err))
				}
				select {
				case <-ctx.Done():
					return g.unknown(req, attempts, fmt.Errorf("cancelled between send retries: %w", ctx.Err())), nil
				case <-time.After(g.cfg.OrderRetryWait):
				}
				continue
			}
			return g.rejected(req, attempts, fmt.Sprintf("send failed after %d attempts: %s", attempts, logger.Redact(err.Error()))), nil

		case errors.Is(err, domrepo.ErrResponseTimeout):
			// The request was sent; the broker may have acted. UNKNOWN,
			// immediately, with zero further network calls.
			return g.unknown(req, attempts, fmt.Errorf("%w: %v", models.ErrAmbiguousOutcome, err)), nil

		default:
			// Unclassified transport failure after a send attempt: the
			// outcome cannot be proven either way.
			return g.unknown(req, attempts, fmt.Errorf("%w: %v", models.ErrAmbiguousOutcome, err)), nil
		}
	}
}

func (g *ExecutionGateway) outcomeFromResponse(req *models.OrderRequest, resp *domrepo.BrokerResponse, attempts int) *models.OrderOutcome {
	out := &models.OrderOutcome{
		RequestID: req.RequestID,
		Symbol:    req.Symbol,
		Attempts:  attempts,
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
		out.State = models.OutcomeUnknown
		out.Reason = fmt.Sprintf("unrecognized broker status %q", resp.Status)
	}
	if g.metrics != nil {
		g.metrics.RecordOrderOutcome(req.Symbol, string(out.State))
	}
	return out
}

func (g *ExecutionGateway) unknown(req *models.OrderRequest, attempts int, cause error) *models.OrderOutcome {
	// UNKNOWN must be loud: it requires external reconciliation.
	if g.l != nil {
		g.l.Error("order outcome unknown, reconciliation required",
			logger.String("request_id", req.RequestID),
			logger.String("symbol", req.Symbol),
			logger.Int("attempts", attempts),
			logger.Error(cause))
	}
	if g.metrics != nil {
		g.metrics.RecordOrderOutcome(req.Symbol, string(models.OutcomeUnknown))
	}
	return &models.OrderOutcome{
		RequestID: req.RequestID,
		Symbol:    req.Symbol,
		State:     models.OutcomeUnknown,
		Reason:    logger.Redact(cause.Error()),
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
	}
}

func (g *ExecutionGateway) rejected(req *models.OrderRequest, attempts int, reason string) *models.OrderOutcome {
	if g.metrics != nil {
		g.metrics.RecordOrderOutcome(req.Symbol, string(models.OutcomeRejected))
	}
	return &models.OrderOutcome{
		RequestID: req.RequestID,
		Symbol:    req.Symbol,
		State:     models.OutcomeRejected,
		Reason:    reason,
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
	}
}

func (g *ExecutionGateway) recordRetryable(op string) {
	if g.metrics != nil {
		g.metrics.RecordRetry(op)
	}
}

// classifyQueryErr makes transport-level failures on idempotent calls
// retryable for the generic retry layer; everything else passes through.
func classifyQueryErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domrepo.ErrRequestNotSent) || errors.Is(err, domrepo.ErrResponseTimeout) {
		return retry.MarkRetryable(err)
	}
	return err
}

// Close releases the underlying transport.
func (g *ExecutionGateway) Close() error {
	return g.transport.Close()
}
