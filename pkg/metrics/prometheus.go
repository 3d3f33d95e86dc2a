package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	stageDuration *prometheus.HistogramVec
	stageLoss     *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
	ratings       *prometheus.CounterVec
	stockScore    *prometheus.GaugeVec
	runDuration   prometheus.Histogram
	operation     *prometheus.HistogramVec
}

// New creates a recorder registered on a fresh registry, which is also
// returned so it can be served.
func New() (*Recorder, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return NewWithRegistry(reg), reg
}

// NewWithRegistry creates a recorder whose collectors are registered on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volatile_training_stage_duration_seconds",
				Help:    "Duration of each training stage in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"stage"},
		),
		stageLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volatile_training_stage_loss",
				Help: "Final loss of the last run's training stages",
			},
			[]string{"stage"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volatile_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		ratings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "volatile_ratings_total",
				Help: "Number of stocks assigned each rating",
			},
			[]string{"rating"},
		),
		stockScore: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "volatile_stock_score",
				Help: "Last score of a stock against its trend",
			},
			[]string{"symbol"},
		),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "volatile_run_duration_seconds",
			Help:    "Duration of a full estimation run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		operation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "volatile_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
	reg.MustRegister(r.stageDuration, r.stageLoss, r.errorsTotal, r.ratings, r.stockScore, r.runDuration, r.operation)
	return r
}

// ObserveStage records the duration and final loss of a training stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration, loss float64) {
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	r.stageLoss.WithLabelValues(stage).Set(loss)
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordRating(rating string) {
	r.ratings.WithLabelValues(rating).Inc()
}

func (r *Recorder) RecordScore(symbol string, score float64) {
	r.stockScore.WithLabelValues(symbol).Set(score)
}

func (r *Recorder) ObserveRun(d time.Duration) {
	r.runDuration.Observe(d.Seconds())
}

// RecordLatency records operation latency.
func (r *Recorder) RecordLatency(op string, d time.Duration) {
	r.operation.WithLabelValues(op).Observe(d.Seconds())
}
