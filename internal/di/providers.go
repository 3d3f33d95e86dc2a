package di

import (
	"context"
	"fmt"
	"time"

	domrepo "Volatile/internal/domain/repository"
	"Volatile/internal/handler/api"
	internalrepo "Volatile/internal/repository"
	"Volatile/internal/service/ratelimit"
	"Volatile/internal/service/yahoo"
	"Volatile/internal/services/trend"
	"Volatile/internal/usecase"
	"Volatile/pkg/cache"
	pkgch "Volatile/pkg/clickhouse"
	"Volatile/pkg/config"
	xhttp "Volatile/pkg/http"
	pkgkafka "Volatile/pkg/kafka"
	applogger "Volatile/pkg/logger"
	"Volatile/pkg/metrics"
	"Volatile/pkg/server"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

const connectTimeout = 10 * time.Second

// ProvideDigest creates the digest collecting warnings of this process.
func ProvideDigest() *applogger.Digest {
	return applogger.NewDigest(uuid.NewString(), 5)
}

// ProvideLogger creates the application logger and attaches digest to it.
func ProvideLogger(cfg *config.Config, digest *applogger.Digest) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	l.AttachDigest(digest)
	return l, nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics returns the run recorder, or nil when metrics are disabled.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.NewWithRegistry(reg)
}

// ProvideCache creates an in-memory cache, layered over Redis when enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, func(), error) {
	memOpts := []cache.MemoryOption{cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)}
	if !cfg.Cache.Redis.Enabled {
		mc := cache.NewMemoryCache(memOpts...)
		return mc, func() { _ = mc.Close() }, nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, cfg.Yahoo.Timeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("Redis cache connected", applogger.String("addr", cfg.Cache.Redis.Addr))
	lc := cache.NewLayeredCache(rc, cfg.Yahoo.CacheTTL, memOpts...)
	return lc, func() {
		if err := lc.Close(); err != nil {
			l.Warn("Failed to close cache", applogger.Error(err))
		}
	}, nil
}

// ProvideLimiter creates the token bucket used for Yahoo requests.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Yahoo.Burst, cfg.Yahoo.RatePerSec)
}

// ProvideYahooClient creates the Yahoo Finance client.
func ProvideYahooClient(cfg *config.Config, c cache.Service, limiter *ratelimit.Limiter, l *applogger.Logger) *yahoo.Client {
	return yahoo.New(
		yahoo.WithTimeout(cfg.Yahoo.Timeout),
		yahoo.WithRange(cfg.Source.Range, cfg.Source.Interval),
		yahoo.WithLimiter(limiter),
		yahoo.WithCache(c, cfg.Yahoo.CacheTTL),
		yahoo.WithRetries(cfg.Yahoo.Retries, cfg.Yahoo.Backoff),
		yahoo.WithConcurrency(cfg.Yahoo.Concurrency),
		yahoo.WithLogger(l),
	)
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when it
// is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	l.Info("ClickHouse connected", applogger.String("database", client.Database()))
	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("Failed to close ClickHouse", applogger.Error(err))
		}
	}, nil
}

// ProvideTables names the ClickHouse tables from config.
func ProvideTables(cfg *config.Config) internalrepo.Tables {
	return internalrepo.Tables{
		Database:    cfg.ClickHouse.Database,
		Bars:        cfg.ClickHouse.BarsTable,
		Profiles:    cfg.ClickHouse.ProfilesTable,
		Predictions: cfg.ClickHouse.PredictionsTable,
	}
}

// ProvideSeriesSource selects where daily bars come from.
func ProvideSeriesSource(cfg *config.Config, yc *yahoo.Client, ch *pkgch.Client, tables internalrepo.Tables, l *applogger.Logger) (domrepo.SeriesSource, error) {
	switch cfg.Source.Type {
	case "clickhouse":
		if ch == nil {
			return nil, fmt.Errorf("clickhouse source requires a clickhouse connection")
		}
		return internalrepo.NewCHSeriesSource(ch.DB(), tables, cfg.Source.Range, l), nil
	default:
		return yc, nil
	}
}

// ProvidePredictionStore returns the ClickHouse store with its schema
// created, or a no-op store when ClickHouse is disabled.
func ProvidePredictionStore(ch *pkgch.Client, tables internalrepo.Tables, l *applogger.Logger) (domrepo.PredictionStore, error) {
	if ch == nil {
		return internalrepo.NopPredictionStore{}, nil
	}
	store := internalrepo.NewCHPredictionStore(ch.DB(), tables, l)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or returns nil when Kafka
// is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	opts := []pkgkafka.ProducerOption{
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, pkgkafka.WithRegisterer(reg))
	}
	producer, err := pkgkafka.NewProducer(opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	l.Info("Kafka producer ready", applogger.Strings("brokers", cfg.Kafka.Brokers), applogger.String("topic", cfg.Kafka.Topic))
	return producer, func() {
		if err := producer.Close(); err != nil {
			l.Warn("Failed to close Kafka producer", applogger.Error(err))
		}
	}, nil
}

// ProvidePredictionPublisher publishes predictions to Kafka when a producer
// is available.
func ProvidePredictionPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.PredictionPublisher {
	if producer == nil {
		return internalrepo.NopPredictionPublisher{}
	}
	return internalrepo.NewKafkaPredictionPublisher(producer, cfg.Kafka.Topic)
}

// ProvidePriceSource aligns series from src into market data.
func ProvidePriceSource(cfg *config.Config, src domrepo.SeriesSource, m domrepo.Metrics, l *applogger.Logger) domrepo.PriceSource {
	return internalrepo.NewMarketDataSource(src, cfg.Source.MinCoverage, m, l)
}

// ProvideEstimator creates the estimation use case.
func ProvideEstimator(
	cfg *config.Config,
	src domrepo.PriceSource,
	store domrepo.PredictionStore,
	pub domrepo.PredictionPublisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) (*usecase.Estimator, error) {
	solver, err := trend.NewSolver(cfg.Model.Solver, cfg.Model.LearningRate)
	if err != nil {
		return nil, err
	}
	mode, err := trend.ParseRankMode(cfg.Rank)
	if err != nil {
		return nil, err
	}
	ec := usecase.EstimatorConfig{
		Order:    cfg.Model.Order,
		Horizon:  cfg.Model.Horizon,
		NumSteps: cfg.Model.NumSteps,
		Solver:   solver,
		Thresholds: trend.Thresholds{
			HighlyBelow: cfg.Thresholds.HighlyBelow,
			Below:       cfg.Thresholds.Below,
			Along:       cfg.Thresholds.Along,
			Above:       cfg.Thresholds.Above,
			HighlyAbove: cfg.Thresholds.HighlyAbove,
		},
		RankMode: mode,
	}
	opts := []usecase.EstimatorOption{
		usecase.WithStore(store),
		usecase.WithPublisher(pub),
		usecase.WithLogger(l),
	}
	if m != nil {
		opts = append(opts, usecase.WithMetrics(m))
	}
	return usecase.NewEstimator(src, ec, opts...)
}

// ProvideHolder creates the holder of the latest estimation.
func ProvideHolder() *usecase.EstimationHolder {
	return usecase.NewEstimationHolder()
}

// ProvideHTTPServer creates the API server, or returns nil when serving is
// disabled.
func ProvideHTTPServer(cfg *config.Config, holder *usecase.EstimationHolder, ch *pkgch.Client, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	return xhttp.NewServer(api.NewPredictionsEchoHandler(l, holder), l, opts...)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	estimator *usecase.Estimator,
	holder *usecase.EstimationHolder,
	srv *xhttp.Server,
	producer *pkgkafka.Producer,
	digest *applogger.Digest,
	l *applogger.Logger,
) *server.App {
	opts := []server.Option{server.WithLogger(l)}
	if srv != nil {
		opts = append(opts, server.WithHTTPServer(srv))
	}
	if producer != nil {
		opts = append(opts, server.WithDigest(digest, producer, cfg.Kafka.DiagnosticsTopic))
	}
	return server.New(cfg, estimator, holder, opts...)
}
