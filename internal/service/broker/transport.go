package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	drepo "TradeCore/internal/domain/repository"
	"TradeCore/pkg/logger"
)

// wireResponse is the broker frame; RequestID correlates it to the request.
type wireResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Ticket    string `json:"ticket,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// WSTransport is a strict request/reply WebSocket transport to the broker
// bridge. Calls are serialized; the protocol has no pipelining.
//
// Error classification is the contract here: a failure before the frame is
// written surfaces as ErrRequestNotSent, a receive deadline expiry after a
// successful write surfaces as ErrResponseTimeout. The caller decides what
// each means for retries.
type WSTransport struct {
	url         string
	authToken   string
	recvTimeout time.Duration
	l           *logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSTransport(url, authToken string, recvTimeout time.Duration, l *logger.Logger) *WSTransport {
	if recvTimeout <= 0 {
		recvTimeout = 10 * time.Second
	}
	return &WSTransport{url: url, authToken: authToken, recvTimeout: recvTimeout, l: l}
}

// Call sends one request and waits for its correlated response within the
// receive deadline.
func (t *WSTransport) Call(ctx context.Context, req *drepo.BrokerRequest) (*drepo.BrokerResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.ensureConn(ctx); err != nil {
		return nil, fmt.Errorf("%w: dial: %v", drepo.ErrRequestNotSent, err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal: %v", drepo.ErrRequestNotSent, err)
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// A write error means the frame did not go out; drop the link so the
		// next call redials.
		t.dropConn()
		return nil, fmt.Errorf("%w: write: %v", drepo.ErrRequestNotSent, err)
	}

	deadline := time.Now().Add(t.recvTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetReadDeadline(deadline)

	for {
		_, frame, err := t.conn.ReadMessage()
		if err != nil {
			t.dropConn()
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, fmt.Errorf("%w: after %s", drepo.ErrResponseTimeout, t.recvTimeout)
			}
			// Link died after the write; the request may or may not have
			// been acted on. Deliberately NOT ErrRequestNotSent.
			return nil, fmt.Errorf("broker read: %w", err)
		}
		var resp wireResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			// Skip unparseable frames (heartbeats etc) until the deadline.
			continue
		}
		if req.RequestID != "" && resp.RequestID != req.RequestID {
			// Stale response from an earlier timed-out call.
			if t.l != nil {
				t.l.Warn("discarding uncorrelated broker frame",
					logger.String("got", resp.RequestID),
					logger.String("want", req.RequestID))
			}
			continue
		}
		return &drepo.BrokerResponse{Status: resp.Status, Ticket: resp.Ticket, Reason: resp.Reason}, nil
	}
}

func (t *WSTransport) ensureConn(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	header := map[string][]string{}
	if t.authToken != "" {
		header["Authorization"] = []string{"Bearer " + t.authToken}
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, header)
	if err != nil {
		return err
	}
	t.conn = conn
	if t.l != nil {
		t.l.Info("broker transport connected")
	}
	return nil
}

func (t *WSTransport) dropConn() {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
}

// Close shuts the link down.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

var _ drepo.BrokerTransport = (*WSTransport)(nil)
