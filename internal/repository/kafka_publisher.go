package repository

import (
	"context"
	"fmt"
	"time"

	"Volatile/internal/domain/models"
	pkgkafka "Volatile/pkg/kafka"
)

type batchPublisher interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// PredictionEvent is the message published per stock and run.
type PredictionEvent struct {
	RunID           string        `json:"run_id"`
	RunAt           time.Time     `json:"run_at"`
	RankMode        string        `json:"rank_mode"`
	DefaultCurrency string        `json:"default_currency"`
	Rank            int           `json:"rank"`
	Symbol          string        `json:"symbol"`
	Sector          string        `json:"sector"`
	Industry        string        `json:"industry"`
	Currency        string        `json:"currency"`
	LastPrice       float64       `json:"last_price"`
	Score           float64       `json:"score"`
	Rate            models.Rating `json:"rate"`
	Growth          float64       `json:"growth"`
	PredPrice       float64       `json:"pred_price"`
	PredStd         float64       `json:"pred_std"`
}

// KafkaPredictionPublisher sends every stock prediction keyed by symbol.
type KafkaPredictionPublisher struct {
	producer batchPublisher
	topic    string
}

func NewKafkaPredictionPublisher(producer batchPublisher, topic string) *KafkaPredictionPublisher {
	return &KafkaPredictionPublisher{producer: producer, topic: topic}
}

func (p *KafkaPredictionPublisher) PublishRun(ctx context.Context, est *models.Estimation) error {
	msgs := make([]pkgkafka.Message, 0, len(est.Stocks))
	for _, s := range est.Stocks {
		msgs = append(msgs, pkgkafka.Message{
			Key: []byte(s.Symbol),
			Value: PredictionEvent{
				RunID:           est.RunID,
				RunAt:           est.RunAt,
				RankMode:        est.RankMode,
				DefaultCurrency: est.DefaultCurrency,
				Rank:            s.Rank,
				Symbol:          s.Symbol,
				Sector:          s.Sector,
				Industry:        s.Industry,
				Currency:        s.Currency,
				LastPrice:       s.LastPrice,
				Score:           s.Score,
				Rate:            s.Rate,
				Growth:          s.Growth,
				PredPrice:       s.PredPrice,
				PredStd:         s.PredStd,
			},
		})
	}
	if err := p.producer.PublishBatch(ctx, p.topic, msgs); err != nil {
		return fmt.Errorf("publish run %s: %w", est.RunID, err)
	}
	return nil
}

func (p *KafkaPredictionPublisher) Close() error {
	return p.producer.Close()
}
