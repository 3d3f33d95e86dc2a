package server

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/internal/services/trend"
	"Volatile/internal/usecase"
	"Volatile/pkg/config"
	applogger "Volatile/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	data *models.MarketData
	err  error
}

func (s staticSource) Download(context.Context, []string) (*models.MarketData, error) {
	return s.data, s.err
}

type capturePublisher struct{ topics []string }

func (c *capturePublisher) PublishMessage(_ context.Context, topic string, _ interface{}) error {
	c.topics = append(c.topics, topic)
	return nil
}

func smallMarket() *models.MarketData {
	const days = 20
	d := &models.MarketData{
		Tickers:         []string{"AAA", "BBB", "CCC"},
		Currencies:      []string{"USD", "USD", "USD"},
		DefaultCurrency: "USD",
		Sectors:         map[string]string{"AAA": "Technology", "BBB": "Technology", "CCC": "Energy"},
		Industries:      map[string]string{"AAA": "Software", "BBB": "Software", "CCC": "Oil & Gas"},
		Price:           make([][]float64, 3),
		Volume:          make([][]float64, 3),
	}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for j := 0; j < days; j++ {
		d.Dates = append(d.Dates, start.AddDate(0, 0, j))
		wiggle := 1 + 0.01*float64(j%3-1)
		for i, base := range []float64{10, 20, 30} {
			d.Price[i] = append(d.Price[i], base*wiggle*(1+0.002*float64(i*j)))
			d.Volume[i] = append(d.Volume[i], 100)
		}
	}
	return d
}

func newTestApp(t *testing.T, src staticSource, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	est, err := usecase.NewEstimator(src, usecase.EstimatorConfig{
		Order:      2,
		Horizon:    3,
		NumSteps:   200,
		Solver:     &trend.LBFGS{Store: 10},
		Thresholds: trend.DefaultThresholds(),
		RankMode:   trend.RankByRate,
	})
	require.NoError(t, err)
	return New(cfg, est, usecase.NewEstimationHolder(), opts...)
}

func TestRunWritesReports(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Output.TablePath = filepath.Join(dir, "predictions.csv")
	cfg.Output.LossesPath = filepath.Join(dir, "losses.csv")
	cfg.Output.XLSXPath = filepath.Join(dir, "predictions.xlsx")

	var stdout bytes.Buffer
	pub := &capturePublisher{}
	l := applogger.Nop()
	digest := applogger.NewDigest("run", 2)
	l.AttachDigest(digest)
	l.Warn("Dropping symbol with too few prices", applogger.String("symbol", "ZZZ"))

	app := newTestApp(t, staticSource{data: smallMarket()}, cfg,
		WithLogger(l), WithStdout(&stdout), WithDigest(digest, pub, "volatile.diagnostics"))
	require.NoError(t, app.Run(context.Background(), []string{"AAA", "BBB", "CCC"}))

	assert.Contains(t, stdout.String(), "SYMBOL")
	assert.Equal(t, 3, strings.Count(stdout.String(), " USD "))
	for _, p := range []string{cfg.Output.TablePath, cfg.Output.LossesPath, cfg.Output.XLSXPath} {
		info, err := os.Stat(p)
		require.NoError(t, err, p)
		assert.Positive(t, info.Size(), p)
	}
	assert.Equal(t, []string{"volatile.diagnostics"}, pub.topics)

	est, ok := app.holder.Get()
	require.True(t, ok)
	assert.Len(t, est.Stocks, 3)
}

func TestRunReturnsEstimationError(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	boom := errors.New("offline")

	app := newTestApp(t, staticSource{err: boom}, cfg, WithStdout(&bytes.Buffer{}))
	err = app.Run(context.Background(), []string{"AAA"})
	assert.ErrorIs(t, err, boom)
	_, ok := app.holder.Get()
	assert.False(t, ok)
}
