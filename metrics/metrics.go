// Package metrics exposes pipeline and report counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teranos/threatbrief/errors"
	"github.com/teranos/threatbrief/stages"
)

const namespace = "threatbrief"

// Outcome labels
const (
	OutcomeSuccess   = "success"
	OutcomeTimeout   = "timeout"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
)

// Collector records stage and run metrics. It satisfies pipeline.Observer.
type Collector struct {
	registry      *prometheus.Registry
	stageDuration *prometheus.HistogramVec
	stageTotal    *prometheus.CounterVec
	inFlight      prometheus.Gauge
	runTotal      *prometheus.CounterVec
	runDuration   prometheus.Histogram
}

// New creates a collector on its own registry, with Go and process collectors attached
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of one stage generation call.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"role"}),
		stageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_total",
			Help:      "Stage generation calls by role and outcome.",
		}, []string{"role", "outcome"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stages_in_flight",
			Help:      "Generation calls currently running.",
		}),
		runTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Report runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "End to end duration of a report run, rendering included.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
	c.registry.MustRegister(
		c.stageDuration, c.stageTotal, c.inFlight, c.runTotal, c.runDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// StageStarted implements pipeline.Observer
func (c *Collector) StageStarted(stages.ID, string) {
	c.inFlight.Inc()
}

// StageFinished implements pipeline.Observer
func (c *Collector) StageFinished(_ stages.ID, role string, d time.Duration, err error) {
	c.inFlight.Dec()
	c.stageDuration.WithLabelValues(role).Observe(d.Seconds())
	c.stageTotal.WithLabelValues(role, Classify(err)).Inc()
}

// ObserveRun records a finished run
func (c *Collector) ObserveRun(d time.Duration, err error) {
	c.runDuration.Observe(d.Seconds())
	c.runTotal.WithLabelValues(Classify(err)).Inc()
}

// Registry exposes the underlying registry for tests and extra collectors
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Classify maps an error to an outcome label
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.IsTimeoutError(err):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
