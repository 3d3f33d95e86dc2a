package usecase

import (
	"context"
	"fmt"
	"time"

	"Volatile/internal/domain/models"
	"Volatile/internal/domain/repository"
	"Volatile/internal/services/currency"
	"Volatile/internal/services/features"
	"Volatile/internal/services/hierarchy"
	"Volatile/internal/services/trend"
	applogger "Volatile/pkg/logger"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// EstimatorConfig holds the model settings of a run.
type EstimatorConfig struct {
	Order      int
	Horizon    int
	NumSteps   int
	Solver     trend.Solver
	Thresholds trend.Thresholds
	RankMode   trend.RankMode
}

// Estimator runs the full pipeline: download, train, score, rank, then
// store and publish the predictions.
type Estimator struct {
	cfg       EstimatorConfig
	source    repository.PriceSource
	store     repository.PredictionStore     // optional
	publisher repository.PredictionPublisher // optional
	metrics   repository.Metrics             // optional
	l         *applogger.Logger
	now       func() time.Time
}

// EstimatorOption configures an Estimator.
type EstimatorOption func(*Estimator)

func WithStore(s repository.PredictionStore) EstimatorOption {
	return func(e *Estimator) { e.store = s }
}

func WithPublisher(p repository.PredictionPublisher) EstimatorOption {
	return func(e *Estimator) { e.publisher = p }
}

func WithMetrics(m repository.Metrics) EstimatorOption {
	return func(e *Estimator) { e.metrics = m }
}

func WithLogger(l *applogger.Logger) EstimatorOption {
	return func(e *Estimator) {
		if l != nil {
			e.l = l
		}
	}
}

func NewEstimator(source repository.PriceSource, cfg EstimatorConfig, opts ...EstimatorOption) (*Estimator, error) {
	if cfg.Order < 1 {
		return nil, fmt.Errorf("polynomial order must be >= 1, got %d", cfg.Order)
	}
	if cfg.Horizon < 0 {
		return nil, fmt.Errorf("horizon must be >= 0, got %d", cfg.Horizon)
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.RankMode.Order(nil, nil); err != nil {
		return nil, err
	}
	e := &Estimator{
		cfg:    cfg,
		source: source,
		l:      applogger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Run downloads symbols and estimates them. Failing to store or publish
// the result is logged and does not fail the run.
func (e *Estimator) Run(ctx context.Context, symbols []string) (*models.Estimation, error) {
	start := e.now()
	e.l.Info("Downloading closing prices", applogger.Int("symbols", len(symbols)))

	data, err := e.source.Download(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	est, err := e.Estimate(ctx, data)
	if err != nil {
		e.recordError("estimate")
		return nil, err
	}

	if e.store != nil {
		if err := e.store.StoreRun(ctx, est); err != nil {
			e.recordError("store")
			e.l.Error("Failed to store predictions", applogger.String("run_id", est.RunID), applogger.Error(err))
		}
	}
	if e.publisher != nil {
		if err := e.publisher.PublishRun(ctx, est); err != nil {
			e.recordError("publish")
			e.l.Error("Failed to publish predictions", applogger.String("run_id", est.RunID), applogger.Error(err))
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveRun(e.now().Sub(start))
	}
	return est, nil
}

// Estimate fits the hierarchical model to data and builds the ranked
// predictions. Training happens in the default currency; prices, trends and
// predictions of each stock are reported in its own currency.
func (e *Estimator) Estimate(ctx context.Context, data *models.MarketData) (*models.Estimation, error) {
	logp, err := features.LogPrices(data.Price)
	if err != nil {
		return nil, fmt.Errorf("log prices: %w", err)
	}
	n, t := logp.Dims()
	if len(data.Currencies) != n || len(data.Tickers) != n {
		return nil, fmt.Errorf("market data has %d tickers and %d currencies for %d price rows", len(data.Tickers), len(data.Currencies), n)
	}

	rows := features.Rows(logp)
	if err := currency.ConvertRows(rows, data.Currencies, data.DefaultCurrency, data.ExchangeRates, currency.Forward); err != nil {
		return nil, fmt.Errorf("convert to %s: %w", data.DefaultCurrency, err)
	}
	logpDef := denseFromRows(rows)

	h, err := hierarchy.Extract(data.Tickers, data.Sectors, data.Industries)
	if err != nil {
		return nil, fmt.Errorf("hierarchy: %w", err)
	}
	info, err := trend.NewInfo(h, t, e.cfg.Order)
	if err != nil {
		return nil, err
	}

	e.l.Info("Training the model",
		applogger.Int("stocks", n),
		applogger.Int("days", t),
		applogger.Int("sectors", h.NumSectors),
		applogger.Int("industries", h.NumIndustries),
	)
	fit, err := e.train(ctx, logpDef, info)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	stock := fit.Params[trend.Stock]
	est, err := trend.EstimateLogPriceStatistics(stock.Phi, stock.Psi, info.TT)
	if err != nil {
		return nil, err
	}
	pred, err := trend.EstimateLogPriceStatistics(stock.Phi, stock.Psi, trend.ForecastBasis(t, e.cfg.Order, e.cfg.Horizon))
	if err != nil {
		return nil, err
	}

	scores, err := trend.Scores(pred.Mean, logpDef, pred.Std, e.cfg.Horizon)
	if err != nil {
		return nil, err
	}
	growth := trend.Growth(stock.Phi, t)

	estNative, err := e.toNative(est.Mean, data, false)
	if err != nil {
		return nil, err
	}
	predNative, err := e.toNative(pred.Mean, data, true)
	if err != nil {
		return nil, err
	}
	priceEst, err := trend.EstimatePriceStatistics(estNative, est.Std)
	if err != nil {
		return nil, err
	}
	pricePred, err := trend.EstimatePriceStatistics(predNative, pred.Std)
	if err != nil {
		return nil, err
	}

	order, err := e.cfg.RankMode.Order(scores, growth)
	if err != nil {
		return nil, err
	}

	out := &models.Estimation{
		RunID:           uuid.NewString(),
		RunAt:           e.now().UTC(),
		Dates:           data.Dates,
		DefaultCurrency: data.DefaultCurrency,
		Order:           e.cfg.Order,
		Horizon:         e.cfg.Horizon,
		RankMode:        string(e.cfg.RankMode),
		Stocks:          make([]models.StockPrediction, 0, n),
		Levels:          make(map[string][]models.LevelEstimate, 3),
		Losses:          make(map[string][]float64, trend.NumLevels),
	}
	for r, i := range order {
		rating := e.cfg.Thresholds.RateOne(scores[i])
		mean, std, lower, upper := priceEst.Band(i)
		out.Stocks = append(out.Stocks, models.StockPrediction{
			Rank:      r + 1,
			Symbol:    data.Tickers[i],
			Sector:    hierarchy.DisplayName(h.UniqueSectors[h.SectorsID[i]]),
			Industry:  hierarchy.DisplayName(h.UniqueIndustries[h.IndustriesID[i]]),
			Currency:  data.Currencies[i],
			LastPrice: data.Price[i][t-1],
			Score:     scores[i],
			Rate:      rating,
			Growth:    growth[i],
			PredPrice: pricePred.Mean.At(i, e.cfg.Horizon),
			PredStd:   pricePred.Std.At(i, e.cfg.Horizon),
			Price:     data.Price[i],
			Volume:    data.Volume[i],
			Trend:     models.Band{Mean: mean, Std: std, Lower: lower, Upper: upper},
		})
		if e.metrics != nil {
			e.metrics.RecordRating(string(rating))
			e.metrics.RecordScore(data.Tickers[i], scores[i])
		}
	}

	for _, lv := range []trend.Level{trend.Market, trend.Sector, trend.Industry} {
		levels, err := levelEstimates(lv, fit.Params[lv], info.TT, h)
		if err != nil {
			return nil, err
		}
		out.Levels[lv.String()] = levels
	}
	for _, lv := range trend.Levels() {
		out.Losses[lv.String()] = fit.Losses[lv]
	}

	e.l.Info("Estimation completed",
		applogger.String("run_id", out.RunID),
		applogger.Int("stocks", len(out.Stocks)),
		applogger.String("rank", out.RankMode),
	)
	return out, nil
}

// train runs the staged fit and reports each stage's duration and final
// loss to the metrics recorder.
func (e *Estimator) train(ctx context.Context, logp *mat.Dense, info trend.Info) (*trend.Fit, error) {
	var durations [trend.NumLevels]time.Duration
	last := e.now()
	hook := func(done trend.State, _ *trend.Frozen) {
		now := e.now()
		durations[done.Level()] = now.Sub(last)
		last = now
	}

	tr := trend.NewTrainer(
		trend.WithSolver(e.cfg.Solver),
		trend.WithNumSteps(e.cfg.NumSteps),
		trend.WithLogger(e.l),
		trend.WithStageHook(hook),
	)
	fit, err := tr.Train(ctx, logp, info)
	if err != nil {
		return nil, err
	}

	if e.metrics != nil {
		for _, lv := range trend.Levels() {
			if losses := fit.Losses[lv]; len(losses) > 0 {
				e.metrics.ObserveStage(lv.String(), durations[lv], losses[len(losses)-1])
			}
		}
	}
	return fit, nil
}

// toNative converts default-currency log-prices of each stock back to its
// own currency. Forecast columns lie past the last observed day and use the
// last exchange rate.
func (e *Estimator) toNative(logMean *mat.Dense, data *models.MarketData, forecast bool) (*mat.Dense, error) {
	rows := features.Rows(logMean)
	rates := data.ExchangeRates
	if forecast {
		_, cols := logMean.Dims()
		rates = make(map[string][]float64, len(data.ExchangeRates))
		for cur, r := range data.ExchangeRates {
			if len(r) == 0 {
				continue
			}
			ext := make([]float64, cols)
			for j := range ext {
				ext[j] = r[len(r)-1]
			}
			rates[cur] = ext
		}
	}
	if err := currency.ConvertRows(rows, data.Currencies, data.DefaultCurrency, rates, currency.Backward); err != nil {
		return nil, fmt.Errorf("convert back from %s: %w", data.DefaultCurrency, err)
	}
	return denseFromRows(rows), nil
}

func levelEstimates(lv trend.Level, p trend.Params, tt *mat.Dense, h *models.Hierarchy) ([]models.LevelEstimate, error) {
	logStats, err := trend.EstimateLogPriceStatistics(p.Phi, p.Psi, tt)
	if err != nil {
		return nil, fmt.Errorf("%s statistics: %w", lv, err)
	}
	stats, err := trend.EstimatePriceStatistics(logStats.Mean, logStats.Std)
	if err != nil {
		return nil, fmt.Errorf("%s statistics: %w", lv, err)
	}

	out := make([]models.LevelEstimate, p.Rows())
	for i := range out {
		name := "Market"
		switch lv {
		case trend.Sector:
			name = hierarchy.DisplayName(h.UniqueSectors[i])
		case trend.Industry:
			name = hierarchy.DisplayName(h.UniqueIndustries[i])
		}
		mean, std, lower, upper := stats.Band(i)
		out[i] = models.LevelEstimate{
			Level:     lv.String(),
			Name:      name,
			Available: lv == trend.Market || hierarchy.IsAvailable(levelID(lv, i, h)),
			Phi:       mat.Row(nil, i, p.Phi),
			Psi:       p.Psi.At(i, 0),
			Trend:     models.Band{Mean: mean, Std: std, Lower: lower, Upper: upper},
		}
	}
	return out, nil
}

func levelID(lv trend.Level, i int, h *models.Hierarchy) string {
	if lv == trend.Sector {
		return h.UniqueSectors[i]
	}
	return h.UniqueIndustries[i]
}

func denseFromRows(rows [][]float64) *mat.Dense {
	if len(rows) == 0 {
		return nil
	}
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		out.SetRow(i, r)
	}
	return out
}

func (e *Estimator) recordError(kind string) {
	if e.metrics != nil {
		e.metrics.RecordError(kind)
	}
}
