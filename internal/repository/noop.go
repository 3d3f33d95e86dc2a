package repository

import (
	"context"

	"Volatile/internal/domain/models"
)

// NopPredictionStore discards runs. Used when ClickHouse is disabled.
type NopPredictionStore struct{}

func (NopPredictionStore) Init(context.Context) error                         { return nil }
func (NopPredictionStore) StoreRun(context.Context, *models.Estimation) error { return nil }
func (NopPredictionStore) Close() error                                       { return nil }

// NopPredictionPublisher discards runs. Used when Kafka is disabled.
type NopPredictionPublisher struct{}

func (NopPredictionPublisher) PublishRun(context.Context, *models.Estimation) error { return nil }
func (NopPredictionPublisher) Close() error                                         { return nil }
