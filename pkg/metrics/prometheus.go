package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal   *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	latestValue *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New registers the dashboard collectors on reg. A nil reg means the
// default registry, which is what /metrics serves.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		runsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_pipeline_runs_total",
				Help: "Dashboard pipeline runs by result",
			},
			[]string{"result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "econdash_errors_total",
				Help: "Errors encountered by kind",
			},
			[]string{"kind"},
		),
		latestValue: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "econdash_series_latest_value",
				Help: "Latest value of each aligned series in the last run",
			},
			[]string{"series"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "econdash_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// RecordRun counts a finished pipeline run.
func (r *Recorder) RecordRun(result string) {
	r.runsTotal.WithLabelValues(result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatestValue records the most recent value of a series.
func (r *Recorder) RecordLatestValue(series string, value float64) {
	r.latestValue.WithLabelValues(series).Set(value)
}

// RecordLatency records stage latency in seconds.
func (r *Recorder) RecordLatency(stage string, seconds float64) {
	r.latency.WithLabelValues(stage).Observe(seconds)
}
