package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Volatile/internal/domain/models"
	applogger "Volatile/pkg/logger"
)

const predictionColumns = "run_id, run_at, rank_mode, rank, symbol, sector, industry, currency, last_price, score, rate, growth, pred_price, pred_std"

const numPredictionColumns = 14

// CHPredictionStore writes one row per stock and run.
type CHPredictionStore struct {
	db        *sql.DB
	tables    Tables
	chunkSize int
	l         *applogger.Logger
}

func NewCHPredictionStore(db *sql.DB, tables Tables, l *applogger.Logger) *CHPredictionStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHPredictionStore{db: db, tables: tables, chunkSize: 2000, l: l}
}

// Init creates the bars, profiles and predictions tables if missing.
func (s *CHPredictionStore) Init(ctx context.Context) error {
	for _, stmt := range s.tables.Schema() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *CHPredictionStore) StoreRun(ctx context.Context, est *models.Estimation) error {
	start := time.Now()
	rows := predictionRows(est)
	for lo := 0; lo < len(rows); lo += s.chunkSize {
		hi := lo + s.chunkSize
		if hi > len(rows) {
			hi = len(rows)
		}
		q, args := insertQuery(s.tables.qualified(s.tables.Predictions), rows[lo:hi])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert predictions: %w", err)
		}
	}
	s.l.Info("Predictions stored",
		applogger.String("run_id", est.RunID),
		applogger.Int("rows", len(rows)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// Close is a no-op; the connection pool belongs to the ClickHouse client.
func (s *CHPredictionStore) Close() error { return nil }

func predictionRows(est *models.Estimation) [][]interface{} {
	rows := make([][]interface{}, 0, len(est.Stocks))
	for _, p := range est.Stocks {
		rows = append(rows, []interface{}{
			est.RunID,
			est.RunAt,
			est.RankMode,
			uint32(p.Rank),
			p.Symbol,
			p.Sector,
			p.Industry,
			p.Currency,
			p.LastPrice,
			p.Score,
			string(p.Rate),
			p.Growth,
			p.PredPrice,
			p.PredStd,
		})
	}
	return rows
}

func insertQuery(table string, rows [][]interface{}) (string, []interface{}) {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", numPredictionColumns), ", ") + ")"
	values := make([]string, len(rows))
	args := make([]interface{}, 0, len(rows)*numPredictionColumns)
	for i, r := range rows {
		values[i] = placeholder
		args = append(args, r...)
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", table, predictionColumns, strings.Join(values, ","))
	return q, args
}
