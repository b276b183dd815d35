package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	drepo "TradeCore/internal/domain/repository"
	"TradeCore/pkg/cache"
	xhttp "TradeCore/pkg/http"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/retry"
)

// Client implements AccountSource against the broker bridge's REST API.
// Trade specs change rarely and are cached aggressively; equity is cached
// only briefly so sizing tracks the account.
type Client struct {
	baseURL   string
	authToken string
	http      *xhttp.Client
	cache     cache.Service
	policy    retry.Policy
	specTTL   time.Duration
	equityTTL time.Duration
	l         *logger.Logger
}

type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
	SpecTTL   time.Duration
	EquityTTL time.Duration
}

func New(cfg Config, cacheSvc cache.Service, l *logger.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: account base url is required", models.ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.SpecTTL <= 0 {
		cfg.SpecTTL = time.Hour
	}
	if cfg.EquityTTL <= 0 {
		cfg.EquityTTL = 5 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		authToken: cfg.AuthToken,
		http:      xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout)),
		cache:     cacheSvc,
		policy: retry.Policy{
			Timeout:            15 * time.Second,
			MaxRetries:         3,
			InitialWait:        200 * time.Millisecond,
			MaxWait:            2 * time.Second,
			ExponentialBackoff: true,
		},
		specTTL:   cfg.SpecTTL,
		equityTTL: cfg.EquityTTL,
		l:         l,
	}, nil
}

type equityResp struct {
	Equity float64 `json:"equity"`
}

// Equity returns current account equity.
func (c *Client) Equity(ctx context.Context) (float64, error) {
	key := cache.GenerateKey("account", "equity")
	if c.cache != nil {
		var cached float64
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	var er equityResp
	if err := c.getJSON(ctx, "/account/equity", &er); err != nil {
		return 0, fmt.Errorf("fetch equity: %w", err)
	}
	if er.Equity < 0 {
		return 0, fmt.Errorf("%w: negative equity %v", models.ErrDataQuality, er.Equity)
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, er.Equity, c.equityTTL); err != nil && c.l != nil {
			c.l.Warn("equity cache set failed", logger.Error(err))
		}
	}
	return er.Equity, nil
}

// TradeSpec returns the broker constraints for one symbol. The spec is
// validated before use; a broker that reports a nonsensical spec must not
// silently produce unsized orders.
func (c *Client) TradeSpec(ctx context.Context, symbol string) (*models.SymbolTradeSpec, error) {
	key := cache.GenerateKey("account:spec", symbol)
	if c.cache != nil {
		var cached models.SymbolTradeSpec
		if err := c.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) && c.l != nil {
			c.l.Warn("spec cache read failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}

	var spec models.SymbolTradeSpec
	if err := c.getJSON(ctx, "/account/spec/"+symbol, &spec); err != nil {
		return nil, fmt.Errorf("fetch trade spec %s: %w", symbol, err)
	}
	spec.Symbol = symbol
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, spec, c.specTTL); err != nil && c.l != nil {
			c.l.Warn("spec cache set failed", logger.String("symbol", symbol), logger.Error(err))
		}
	}
	return &spec, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest interface{}) error {
	headers := map[string]string{}
	if c.authToken != "" {
		headers["Authorization"] = "Bearer " + c.authToken
	}
	return retry.Do(ctx, c.policy, "account_get", c.l, func(ctx context.Context) error {
		err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodGet,
			URL:     c.baseURL + path,
			Headers: headers,
		}, dest)
		if err != nil {
			return retry.MarkRetryable(err)
		}
		return nil
	})
}

var _ drepo.AccountSource = (*Client)(nil)
