package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"TradeCore/internal/domain/models"
	domrepo "TradeCore/internal/domain/repository"
	"TradeCore/pkg/retry"
)

// fakeTransport scripts one response (or error) per call, in order.
type fakeTransport struct {
	mu      sync.Mutex
	calls   []*domrepo.BrokerRequest
	replies []fakeReply
	closed  bool
}

type fakeReply struct {
	resp *domrepo.BrokerResponse
	err  error
}

func (f *fakeTransport) Call(_ context.Context, req *domrepo.BrokerRequest) (*domrepo.BrokerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *req
	f.calls = append(f.calls, &cp)
	if len(f.replies) == 0 {
		return nil, fmt.Errorf("unscripted call %d", len(f.calls))
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r.resp, r.err
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func gatewayCfg() GatewayConfig {
	return GatewayConfig{
		QueryPolicy: retry.Policy{
			Timeout:            time.Second,
			MaxRetries:         2,
			InitialWait:        time.Millisecond,
			MaxWait:            5 * time.Millisecond,
			ExponentialBackoff: true,
		},
		OrderSendRetries: 2,
		OrderRetryWait:   time.Millisecond,
	}
}

func orderReq() *models.OrderRequest {
	return &models.OrderRequest{
		RequestID: "req-001",
		Symbol:    "EURUSD",
		Side:      models.SideBuy,
		Lots:      0.11,
		CreatedAt: time.Now().UTC(),
	}
}

func TestGatewayRequiresTransportAndValidPolicy(t *testing.T) {
	if _, err := NewExecutionGateway(nil, gatewayCfg(), nil, nil); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("nil transport accepted: %v", err)
	}
	cfg := gatewayCfg()
	cfg.QueryPolicy.MaxRetries = -1
	if _, err := NewExecutionGateway(&fakeTransport{}, cfg, nil, nil); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("invalid query policy accepted: %v", err)
	}
}

func TestSubmitOrderConfirmed(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{resp: &domrepo.BrokerResponse{Status: "CONFIRMED", Ticket: "T-42"}},
	}}
	g, err := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != models.OutcomeConfirmed || out.Ticket != "T-42" {
		t.Fatalf("outcome = %+v, want CONFIRMED ticket T-42", out)
	}
	if out.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", out.Attempts)
	}
}

func TestSubmitOrderRejectedKeepsBrokerReason(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{resp: &domrepo.BrokerResponse{Status: "REJECTED", Reason: "not enough margin"}},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != models.OutcomeRejected {
		t.Fatalf("state = %s, want REJECTED", out.State)
	}
	if out.Reason != "not enough margin" {
		t.Fatalf("reason = %q, must carry broker reason verbatim", out.Reason)
	}
}

func TestResponseTimeoutIsUnknownAndNeverResent(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: domrepo.ErrResponseTimeout},
		// Anything after this would indicate an illegal resend.
		{resp: &domrepo.BrokerResponse{Status: "CONFIRMED", Ticket: "phantom"}},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != models.OutcomeUnknown {
		t.Fatalf("state = %s, want UNKNOWN on response timeout", out.State)
	}
	if n := tr.callCount(); n != 1 {
		t.Fatalf("transport called %d times after response timeout, want exactly 1", n)
	}
}

func TestSendFailureRetriesWithSameRequestID(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: fmt.Errorf("dial: %w", domrepo.ErrRequestNotSent)},
		{err: fmt.Errorf("dial: %w", domrepo.ErrRequestNotSent)},
		{resp: &domrepo.BrokerResponse{Status: "CONFIRMED", Ticket: "T-7"}},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != models.OutcomeConfirmed {
		t.Fatalf("state = %s, want CONFIRMED after send retries", out.State)
	}
	if out.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", out.Attempts)
	}
	for i, c := range tr.calls {
		if c.RequestID != "req-001" {
			t.Fatalf("call %d used request_id %q, idempotency key must be stable", i, c.RequestID)
		}
	}
}

func TestSendFailureExhaustionIsRejected(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: domrepo.ErrRequestNotSent},
		{err: domrepo.ErrRequestNotSent},
		{err: domrepo.ErrRequestNotSent},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Never sent, so the order definitively did not happen.
	if out.State != models.OutcomeRejected {
		t.Fatalf("state = %s, want REJECTED when the request never left", out.State)
	}
	if n := tr.callCount(); n != 3 {
		t.Fatalf("transport called %d times, want 3 (1 + 2 retries)", n)
	}
}

func TestUnclassifiedPostSendErrorIsUnknown(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: errors.New("websocket: close 1006 (abnormal closure)")},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	out, err := g.SubmitOrder(context.Background(), orderReq())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if out.State != models.OutcomeUnknown {
		t.Fatalf("state = %s, unprovable outcomes must be UNKNOWN", out.State)
	}
	if n := tr.callCount(); n != 1 {
		t.Fatalf("transport called %d times, want 1", n)
	}
}

func TestCancelledBeforeSendIsAbandoned(t *testing.T) {
	tr := &fakeTransport{}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := g.SubmitOrder(ctx, orderReq())
	if err == nil || out != nil {
		t.Fatalf("expected abandonment error, got out=%+v err=%v", out, err)
	}
	if n := tr.callCount(); n != 0 {
		t.Fatalf("transport called %d times before send, want 0", n)
	}
}

func TestOrderStatusRetriesTransportFailures(t *testing.T) {
	tr := &fakeTransport{replies: []fakeReply{
		{err: domrepo.ErrRequestNotSent},
		{resp: &domrepo.BrokerResponse{Status: "CONFIRMED", Ticket: "T-9"}},
	}}
	g, _ := NewExecutionGateway(tr, gatewayCfg(), nil, nil)
	resp, err := g.OrderStatus(context.Background(), "req-001")
	if err != nil {
		t.Fatalf("order status: %v", err)
	}
	if resp.Ticket != "T-9" {
		t.Fatalf("ticket = %q, want T-9", resp.Ticket)
	}
	if n := tr.callCount(); n != 2 {
		t.Fatalf("transport called %d times, want 2", n)
	}
}
