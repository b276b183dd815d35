package service

import (
	"context"

	"TradeCore/internal/domain/models"
)

// Scorer is the model-inference collaborator. It is an opaque black box; the
// only contract is 0 <= p <= 1 on both probabilities.
type Scorer interface {
	Score(ctx context.Context, symbol, timeframe string, features map[string]float64) (models.TimeframeSignal, error)
}
