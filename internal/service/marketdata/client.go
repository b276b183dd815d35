package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"TradeCore/internal/domain/models"
	drepo "TradeCore/internal/domain/repository"
	"TradeCore/pkg/logger"
)

// Client implements a MarketStream over a WebSocket bar feed.
type Client struct {
	apiKey         string
	websocketURL   string
	symbols        []string
	timeframe      string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

func New(apiKey, websocketURL string, symbols []string, timeframe string, reconnectDelay, pingInterval time.Duration, l *logger.Logger) drepo.MarketStream {
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		symbols:        symbols,
		timeframe:      timeframe,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?token=%s", c.websocketURL, c.apiKey)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("marketdata connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	if c.l != nil {
		c.l.Info("marketdata: connected")
	}
	return nil
}

// Subscribe subscribes to the configured symbols at the base timeframe.
func (c *Client) Subscribe(ctx context.Context) error {
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !ok {
		return fmt.Errorf("marketdata not connected")
	}
	for _, s := range c.symbols {
		msg := map[string]string{"type": "subscribe", "symbol": s, "timeframe": c.timeframe}
		if err := conn.WriteJSON(msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
		if c.l != nil {
			c.l.Info("marketdata: subscribed", logger.String("symbol", s))
		}
	}
	return nil
}

type wireBar struct {
	S string  `json:"s"`
	T int64   `json:"t"` // ms epoch of bar open
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type wireMessage struct {
	Type string    `json:"type"`
	Data []wireBar `json:"data"`
}

// Read streams bar events and errors. Backpressure drops the bar rather than
// blocking the read loop; downstream counts the gap. Both channels close when
// the read loop dies; the caller is expected to Reconnect and call Read again
// for fresh channels. The ping loop shares the read loop's lifetime so
// repeated Read calls do not accumulate tickers.
func (c *Client) Read(ctx context.Context) (<-chan *models.Bar, <-chan error) {
	bars := make(chan *models.Bar, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(bars)
		defer close(errs)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				c.mu.Lock()
				conn := c.conn
				c.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("marketdata conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("marketdata read: %w", err)
					return
				}
				var m wireMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-bar frames
					continue
				}
				if m.Type != "bar" {
					continue
				}
				for _, d := range m.Data {
					bar := &models.Bar{
						Symbol:    d.S,
						Timestamp: time.UnixMilli(d.T).UTC(),
						Open:      d.O,
						High:      d.H,
						Low:       d.L,
						Close:     d.C,
						Volume:    d.V,
					}
					select {
					case bars <- bar:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return bars, errs
}

// Reconnect closes and re-establishes the connection and subscriptions.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates link status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
