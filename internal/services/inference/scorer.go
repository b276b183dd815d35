package inference

import (
	"context"
	"fmt"
	"time"

	"TradeCore/internal/domain/models"
	domsvc "TradeCore/internal/domain/service"
	xhttp "TradeCore/pkg/http"
	"TradeCore/pkg/logger"
	"TradeCore/pkg/retry"
)

// HTTPScorer calls the external model-inference service over HTTP. The model
// is a black box: the scorer only enforces the probability contract on what
// comes back.
type HTTPScorer struct {
	baseURL string
	client  *xhttp.Client
	policy  retry.Policy
	l       *logger.Logger
}

type Option func(*HTTPScorer)

// WithRetryPolicy overrides the default query retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *HTTPScorer) { s.policy = p }
}

func NewHTTPScorer(baseURL string, timeout time.Duration, l *logger.Logger, opts ...Option) (*HTTPScorer, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: inference base url is required", models.ErrConfiguration)
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	s := &HTTPScorer{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		policy: retry.Policy{
			Timeout:            10 * time.Second,
			MaxRetries:         2,
			InitialWait:        100 * time.Millisecond,
			MaxWait:            time.Second,
			ExponentialBackoff: true,
		},
		l: l,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, fmt.Errorf("%w: inference retry policy: %v", models.ErrConfiguration, err)
	}
	return s, nil
}

type scoreReq struct {
	Symbol    string             `json:"symbol"`
	Timeframe string             `json:"timeframe"`
	Features  map[string]float64 `json:"features"`
}

type scoreResp struct {
	PLong  float64 `json:"p_long"`
	PShort float64 `json:"p_short"`
}

// Score posts the feature vector and returns the per-timeframe signal.
// Scoring is idempotent, so transient transport failures are retried under
// the query policy.
func (s *HTTPScorer) Score(ctx context.Context, symbol, timeframe string, features map[string]float64) (models.TimeframeSignal, error) {
	var sr scoreResp
	err := retry.Do(ctx, s.policy, "inference_score", s.l, func(ctx context.Context) error {
		return s.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     s.baseURL + "/score",
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    scoreReq{Symbol: symbol, Timeframe: timeframe, Features: features},
		}, &sr)
	})
	if err != nil {
		return models.TimeframeSignal{}, fmt.Errorf("score %s/%s: %w", symbol, timeframe, err)
	}

	if sr.PLong < 0 || sr.PLong > 1 || sr.PShort < 0 || sr.PShort > 1 {
		return models.TimeframeSignal{}, fmt.Errorf("%w: scorer returned p_long=%v p_short=%v outside [0,1]",
			models.ErrDataQuality, sr.PLong, sr.PShort)
	}

	return models.TimeframeSignal{
		Timeframe: timeframe,
		Timestamp: time.Now().UTC(),
		PLong:     sr.PLong,
		PShort:    sr.PShort,
	}, nil
}

var _ domsvc.Scorer = (*HTTPScorer)(nil)
