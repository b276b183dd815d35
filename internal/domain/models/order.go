package models

import "time"

// OrderSide is the broker-facing direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderRequest is a single logical order. RequestID is the caller-generated
// idempotency key: it stays stable across retries so the broker side can
// deduplicate repeated submissions.
type OrderRequest struct {
	RequestID string    `json:"request_id"`
	Symbol    string    `json:"symbol"`
	Side      OrderSide `json:"side"`
	Lots      float64   `json:"lots"`
	CreatedAt time.Time `json:"created_at"`
}

// OutcomeState is the tri-state execution result. UNKNOWN is a first-class
// state: it means the gateway cannot prove whether the broker acted, and it
// must never be treated as a plain failure by upstream callers.
type OutcomeState string

const (
	OutcomeConfirmed OutcomeState = "CONFIRMED"
	OutcomeRejected  OutcomeState = "REJECTED"
	OutcomeUnknown   OutcomeState = "UNKNOWN"
)

// OrderOutcome reports how an order request ended.
type OrderOutcome struct {
	RequestID string       `json:"request_id"`
	Symbol    string       `json:"symbol"`
	State     OutcomeState `json:"state"`
	Ticket    string       `json:"ticket,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Attempts  int          `json:"attempts"`
	Timestamp time.Time    `json:"timestamp"`
}
