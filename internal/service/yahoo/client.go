package yahoo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/internal/service/ratelimit"
	"Volatile/internal/services/currency"
	"Volatile/pkg/cache"
	applogger "Volatile/pkg/logger"

	yfmodels "github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
	"golang.org/x/sync/errgroup"
)

// ErrNoSeries is returned when no requested symbol could be downloaded.
var ErrNoSeries = errors.New("no symbol could be downloaded")

const limiterKey = "yahoo"

// Source fetches daily bars and the quote summary of one ticker.
type Source interface {
	History(symbol string, params yfmodels.HistoryParams) ([]yfmodels.Bar, error)
	Info(symbol string) (*yfmodels.Info, error)
}

// tickerSource opens a go-yfinance ticker per call; the library keeps the
// cookie and crumb handshake.
type tickerSource struct{}

func (tickerSource) History(symbol string, params yfmodels.HistoryParams) ([]yfmodels.Bar, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("create ticker: %w", err)
	}
	defer t.Close()
	return t.History(params)
}

func (tickerSource) Info(symbol string) (*yfmodels.Info, error) {
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("create ticker: %w", err)
	}
	defer t.Close()
	return t.Info()
}

// Profile is the part of the quote summary the hierarchy needs.
type Profile struct {
	Sector   string
	Industry string
	Currency string
}

// Option configures Client.
type Option func(*Client)

// Client downloads daily bars and profiles from Yahoo Finance.
type Client struct {
	src         Source
	period      string
	interval    string
	timeout     time.Duration
	limiter     *ratelimit.Limiter
	cache       cache.Service
	cacheTTL    time.Duration
	retries     int
	backoff     time.Duration
	concurrency int
	l           *applogger.Logger
}

// WithSource replaces the go-yfinance ticker source.
func WithSource(s Source) Option { return func(y *Client) { y.src = s } }

// WithRange sets the history period and bar interval, e.g. "1y" and "1d".
func WithRange(period, interval string) Option {
	return func(y *Client) {
		y.period = period
		y.interval = interval
	}
}

// WithTimeout bounds every single attempt.
func WithTimeout(d time.Duration) Option { return func(y *Client) { y.timeout = d } }

func WithLimiter(l *ratelimit.Limiter) Option { return func(y *Client) { y.limiter = l } }

// WithCache stores decoded responses in c for ttl.
func WithCache(c cache.Service, ttl time.Duration) Option {
	return func(y *Client) {
		y.cache = c
		y.cacheTTL = ttl
	}
}

// WithRetries sets how many times a failed attempt is retried, waiting
// backoff times the attempt number in between.
func WithRetries(n int, backoff time.Duration) Option {
	return func(y *Client) {
		y.retries = n
		y.backoff = backoff
	}
}

func WithConcurrency(n int) Option { return func(y *Client) { y.concurrency = n } }

func WithLogger(l *applogger.Logger) Option { return func(y *Client) { y.l = l } }

func New(opts ...Option) *Client {
	y := &Client{
		src:         tickerSource{},
		period:      "1y",
		interval:    "1d",
		retries:     2,
		backoff:     200 * time.Millisecond,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(y)
	}
	if y.concurrency < 1 {
		y.concurrency = 1
	}
	if y.l == nil {
		y.l = applogger.Nop()
	}
	return y
}

// Series downloads bars and profiles of symbols concurrently. A symbol
// whose bars or profile cannot be fetched is skipped with a warning, since
// its currency is unknown without the profile.
func (y *Client) Series(ctx context.Context, symbols []string) ([]models.Series, error) {
	out := make([]*models.Series, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			s, err := y.Chart(gctx, sym)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				y.l.Warn("Skipping symbol without price history", applogger.String("symbol", sym), applogger.Error(err))
				return nil
			}
			p, err := y.Profile(gctx, sym)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				y.l.Warn("Skipping symbol without profile", applogger.String("symbol", sym), applogger.Error(err))
				return nil
			}
			s.Sector, s.Industry, s.Currency = p.Sector, p.Industry, p.Currency
			out[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make([]models.Series, 0, len(out))
	for _, s := range out {
		if s != nil {
			series = append(series, *s)
		}
	}
	if len(series) == 0 {
		return nil, ErrNoSeries
	}
	return series, nil
}

// ExchangeRates downloads the {CUR}{TARGET}=X pair of every currency.
func (y *Client) ExchangeRates(ctx context.Context, currencies []string, target string) (map[string]models.Series, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]models.Series, len(currencies))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(y.concurrency)
	for _, cur := range currencies {
		cur := cur
		if cur == target {
			continue
		}
		g.Go(func() error {
			pair := currency.PairSymbol(cur, target)
			s, err := y.Chart(gctx, pair)
			if err != nil {
				return fmt.Errorf("exchange rate %s: %w", pair, err)
			}
			s.Currency = target
			mu.Lock()
			out[cur] = s
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Chart returns the daily closes and volumes of symbol. Bars without a
// positive close are left out.
func (y *Client) Chart(ctx context.Context, symbol string) (models.Series, error) {
	key := cache.GenerateKeyWithParams("chart", symbol, y.period, y.interval)
	return cache.GetOrLoad(ctx, y.cache, key, y.cacheTTL, func(ctx context.Context) (models.Series, error) {
		params := yfmodels.HistoryParams{Period: y.period, Interval: y.interval, AutoAdjust: true}
		bars, err := withRetry(ctx, y, symbol, func() ([]yfmodels.Bar, error) {
			return y.src.History(symbol, params)
		})
		if err != nil {
			return models.Series{}, fmt.Errorf("history %s: %w", symbol, err)
		}
		return toSeries(symbol, bars)
	})
}

// Profile returns the sector, industry and trading currency of symbol.
func (y *Client) Profile(ctx context.Context, symbol string) (Profile, error) {
	key := cache.GenerateKey("profile", symbol)
	return cache.GetOrLoad(ctx, y.cache, key, y.cacheTTL, func(ctx context.Context) (Profile, error) {
		info, err := withRetry(ctx, y, symbol, func() (*yfmodels.Info, error) {
			return y.src.Info(symbol)
		})
		if err != nil {
			return Profile{}, fmt.Errorf("info %s: %w", symbol, err)
		}
		if info == nil || info.Currency == "" {
			return Profile{}, fmt.Errorf("info %s: no currency", symbol)
		}
		return Profile{
			Sector:   info.Sector,
			Industry: info.Industry,
			Currency: strings.ToUpper(info.Currency),
		}, nil
	})
}

func toSeries(symbol string, bars []yfmodels.Bar) (models.Series, error) {
	s := models.Series{Symbol: symbol}
	for _, bar := range bars {
		if bar.Close <= 0 {
			continue
		}
		s.Dates = append(s.Dates, bar.Date.UTC())
		s.Close = append(s.Close, bar.Close)
		s.Volume = append(s.Volume, float64(bar.Volume))
	}
	if len(s.Dates) == 0 {
		return models.Series{}, fmt.Errorf("%s: no closing prices", symbol)
	}
	return s, nil
}

// withRetry runs fetch under the limiter, retrying failures with a linear
// backoff. go-yfinance calls take no context, so an attempt that outlives
// ctx or the per-attempt timeout is abandoned.
func withRetry[T any](ctx context.Context, y *Client, symbol string, fetch func() (T, error)) (T, error) {
	var (
		zero T
		err  error
	)
	for n := 0; n <= y.retries; n++ {
		if n > 0 {
			select {
			case <-time.After(time.Duration(n) * y.backoff):
			case <-ctx.Done():
				return zero, ctx.Err()
			}
		}
		if y.limiter != nil {
			if werr := y.limiter.Wait(ctx, limiterKey); werr != nil {
				return zero, werr
			}
		}
		var v T
		v, err = attempt(ctx, y.timeout, fetch)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		y.l.Debug("Retrying Yahoo request", applogger.String("symbol", symbol), applogger.Int("attempt", n+1), applogger.Error(err))
	}
	return zero, err
}

type result[T any] struct {
	v   T
	err error
}

func attempt[T any](ctx context.Context, timeout time.Duration, fetch func() (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	done := make(chan result[T], 1)
	go func() {
		v, err := fetch()
		done <- result[T]{v: v, err: err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
