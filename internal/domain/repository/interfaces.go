package repository

import (
	"context"
	"time"

	"Volatile/internal/domain/models"
)

// PriceSource delivers the aligned daily history of a set of symbols,
// including per-symbol currency, exchange rates and taxonomy.
type PriceSource interface {
	Download(ctx context.Context, symbols []string) (*models.MarketData, error)
}

// SeriesSource fetches raw, unaligned per-symbol histories.
type SeriesSource interface {
	Series(ctx context.Context, symbols []string) ([]models.Series, error)
	// ExchangeRates returns the daily close of converting each currency
	// into target over the dates of the run.
	ExchangeRates(ctx context.Context, currencies []string, target string) (map[string]models.Series, error)
}

// PredictionStore persists the outcome of a run.
type PredictionStore interface {
	Init(ctx context.Context) error
	StoreRun(ctx context.Context, est *models.Estimation) error
	Close() error
}

// PredictionPublisher fans out the predictions of a run.
type PredictionPublisher interface {
	PublishRun(ctx context.Context, est *models.Estimation) error
	Close() error
}

type Metrics interface {
	ObserveStage(stage string, d time.Duration, loss float64)
	RecordError(kind string)
	RecordRating(rating string)
	RecordScore(symbol string, score float64)
	ObserveRun(d time.Duration)
	RecordLatency(op string, d time.Duration)
}
