package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder records sweep and API metrics on its own registry
type Recorder struct {
	registry      *prometheus.Registry
	trialsTotal   *prometheus.CounterVec
	trialDuration *prometheus.HistogramVec
	requests      *prometheus.CounterVec
	lastCAGR      *prometheus.GaugeVec
}

// New creates a recorder with a private registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		trialsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_sweep_trials_total",
				Help: "Total number of sweep trials by status",
			},
			[]string{"mode", "status"},
		),
		trialDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "momentum_sweep_trial_duration_seconds",
				Help:    "Duration of a single sweep trial in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "momentum_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"route", "code"},
		),
		lastCAGR: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "momentum_backtest_cagr",
				Help: "CAGR of the last completed backtest per scenario",
			},
			[]string{"scenario"},
		),
	}
}

// RecordTrial records one finished sweep trial
func (r *Recorder) RecordTrial(mode, status string, seconds float64) {
	r.trialsTotal.WithLabelValues(mode, status).Inc()
	r.trialDuration.WithLabelValues(mode).Observe(seconds)
}

// RecordRequest records one API request
func (r *Recorder) RecordRequest(route string, code int) {
	r.requests.WithLabelValues(route, http.StatusText(code)).Inc()
}

// RecordBacktest records the CAGR of a completed backtest
func (r *Recorder) RecordBacktest(scenario string, cagr float64) {
	r.lastCAGR.WithLabelValues(scenario).Set(cagr)
}

// Handler exposes the registry for scraping
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
