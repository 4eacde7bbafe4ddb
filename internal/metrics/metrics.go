// Package metrics exposes lifecycle counters and latency histograms in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helphive/backend/internal/models"
)

const namespace = "helphive"

// Recorder owns a private registry so tests and multiple servers in one
// process never collide on the global default.
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	offers      *prometheus.CounterVec
	errors      *prometheus.CounterVec
	storage     *prometheus.HistogramVec
	lockWait    prometheus.Histogram
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Help request status transitions by trigger.",
		}, []string{"from", "to", "trigger"}),
		offers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offers_total",
			Help:      "Offer attempts split into added and duplicate.",
		}, []string{"result"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_errors_total",
			Help:      "Failed lifecycle operations by error kind.",
		}, []string{"op", "kind"}),
		storage: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_seconds",
			Help:      "Latency of storage calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for the per-request lock.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	r.registry.MustRegister(
		r.transitions,
		r.offers,
		r.errors,
		r.storage,
		r.lockWait,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Transition counts a status change. from is empty for newly created requests.
func (r *Recorder) Transition(from, to models.Status, trigger string) {
	f := string(from)
	if f == "" {
		f = "none"
	}
	r.transitions.WithLabelValues(f, string(to), trigger).Inc()
}

func (r *Recorder) Offer(added bool) {
	result := "duplicate"
	if added {
		result = "added"
	}
	r.offers.WithLabelValues(result).Inc()
}

func (r *Recorder) Error(op, kind string) {
	r.errors.WithLabelValues(op, kind).Inc()
}

func (r *Recorder) ObserveStorage(op string, d time.Duration) {
	r.storage.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Recorder) ObserveLockWait(d time.Duration) {
	r.lockWait.Observe(d.Seconds())
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry for scraping.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
