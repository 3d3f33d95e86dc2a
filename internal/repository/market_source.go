package repository

import (
	"context"
	"fmt"
	"time"

	"Volatile/internal/domain/models"
	domrepo "Volatile/internal/domain/repository"
	"Volatile/internal/services/currency"
	"Volatile/internal/services/features"
	applogger "Volatile/pkg/logger"
)

// MarketDataSource turns raw series into aligned market data: dates are
// unified, sparse symbols dropped and exchange rates into the most frequent
// currency attached.
type MarketDataSource struct {
	src         domrepo.SeriesSource
	minCoverage float64
	metrics     domrepo.Metrics
	l           *applogger.Logger
}

func NewMarketDataSource(src domrepo.SeriesSource, minCoverage float64, m domrepo.Metrics, l *applogger.Logger) *MarketDataSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &MarketDataSource{src: src, minCoverage: minCoverage, metrics: m, l: l}
}

func (s *MarketDataSource) Download(ctx context.Context, symbols []string) (*models.MarketData, error) {
	start := time.Now()
	raw, err := s.src.Series(ctx, symbols)
	if err != nil {
		s.recordError("download")
		return nil, fmt.Errorf("download series: %w", err)
	}
	if missing := len(symbols) - len(raw); missing > 0 {
		s.recordError("download")
		s.l.Warn("Some symbols could not be downloaded", applogger.Int("missing", missing))
	}

	aligned, dropped, err := features.Align(raw, s.minCoverage)
	for _, d := range dropped {
		s.l.Warn("Dropping symbol with too few prices",
			applogger.String("symbol", d.Symbol),
			applogger.Float64("coverage", d.Coverage),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("align series: %w", err)
	}

	data := &models.MarketData{
		Dates:      aligned.Dates,
		Price:      aligned.Close,
		Volume:     aligned.Volume,
		Sectors:    make(map[string]string, len(aligned.Series)),
		Industries: make(map[string]string, len(aligned.Series)),
	}
	for _, sr := range aligned.Series {
		data.Tickers = append(data.Tickers, sr.Symbol)
		data.Currencies = append(data.Currencies, sr.Currency)
		data.Sectors[sr.Symbol] = sr.Sector
		data.Industries[sr.Symbol] = sr.Industry
	}
	data.DefaultCurrency = currency.Default(data.Currencies)

	rates, err := s.src.ExchangeRates(ctx, distinct(data.Currencies), data.DefaultCurrency)
	if err != nil {
		s.recordError("exchange_rate")
		return nil, fmt.Errorf("download exchange rates: %w", err)
	}
	data.ExchangeRates = make(map[string][]float64, len(rates))
	for cur, sr := range rates {
		if cur == data.DefaultCurrency {
			continue
		}
		r, err := features.AlignTo(sr, data.Dates)
		if err != nil {
			return nil, fmt.Errorf("align exchange rate %s: %w", cur, err)
		}
		data.ExchangeRates[cur] = r
	}
	for _, cur := range distinct(data.Currencies) {
		if _, ok := data.ExchangeRates[cur]; !ok && cur != data.DefaultCurrency {
			return nil, fmt.Errorf("missing exchange rate %s", currency.PairSymbol(cur, data.DefaultCurrency))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordLatency("download", time.Since(start))
	}
	s.l.Info("Market data ready",
		applogger.Int("stocks", data.NumStocks()),
		applogger.Int("days", data.NumDays()),
		applogger.String("default_currency", data.DefaultCurrency),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return data, nil
}

func (s *MarketDataSource) recordError(kind string) {
	if s.metrics != nil {
		s.metrics.RecordError(kind)
	}
}

func distinct(xs []string) []string {
	seen := make(map[string]bool, len(xs))
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	return out
}
