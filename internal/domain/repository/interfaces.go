package repository

import (
	"context"
	"errors"

	"TradeCore/internal/domain/models"
)

// Transport classification sentinels. ErrRequestNotSent proves the request
// never left this process or never reached the peer, so resending is safe.
// ErrResponseTimeout means the request was sent and the reply leg timed out:
// the outcome is unknown and resending is NOT safe.
var (
	ErrRequestNotSent  = errors.New("broker request not sent")
	ErrResponseTimeout = errors.New("broker response timed out")
)

// MarketStream pushes base-period bars from the upstream price source.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Bar, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// BrokerTransport exchanges one request for one response with the broker-side
// process. The receive deadline is per-call and distinct from the logical
// retry budget owned by the gateway.
type BrokerTransport interface {
	Call(ctx context.Context, req *BrokerRequest) (*BrokerResponse, error)
	Close() error
}

// BrokerRequest is the wire schema sent to the broker peer.
type BrokerRequest struct {
	Action    string  `json:"action"` // "order", "status", "ping"
	RequestID string  `json:"request_id"`
	Symbol    string  `json:"symbol,omitempty"`
	Side      string  `json:"side,omitempty"`
	Lots      float64 `json:"lots,omitempty"`
}

// BrokerResponse is the wire schema received from the broker peer.
type BrokerResponse struct {
	Status string `json:"status"` // "CONFIRMED", "REJECTED", "ERROR"
	Ticket string `json:"ticket,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AccountSource supplies equity and per-symbol trade specs, read-only from the
// core's perspective.
type AccountSource interface {
	Equity(ctx context.Context) (float64, error)
	TradeSpec(ctx context.Context, symbol string) (*models.SymbolTradeSpec, error)
}

// Metrics records operational metrics for the pipeline.
type Metrics interface {
	RecordDecision(symbol string, final string)
	RecordOrderOutcome(symbol string, state string)
	RecordRetry(op string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
