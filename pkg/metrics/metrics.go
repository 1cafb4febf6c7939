// Package metrics holds the Prometheus instruments for the dashboard and the
// modeling workflow.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "climacrop"

// Collector groups every climacrop metric.
type Collector struct {
	PageRenders        *prometheus.CounterVec   // labels: page, status
	PageRenderDuration *prometheus.HistogramVec // labels: page
	ArtifactMisses     *prometheus.CounterVec   // labels: artifact
	DataCache          *prometheus.CounterVec   // labels: result={hit,miss,expired}
	ModelFitDuration   *prometheus.HistogramVec // labels: system, model
	GridCandidates     *prometheus.CounterVec   // labels: system
	Predictions        prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		PageRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_renders_total",
			Help:      "Dashboard page renders by page and HTTP status.",
		}, []string{"page", "status"}),
		PageRenderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_render_duration_seconds",
			Help:      "Dashboard page render duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}, []string{"page"}),
		ArtifactMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_misses_total",
			Help:      "Pre-rendered artifacts requested but not found.",
		}, []string{"artifact"}),
		DataCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_cache_total",
			Help:      "Dataset cache lookups by result.",
		}, []string{"result"}),
		ModelFitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_fit_duration_seconds",
			Help:      "Model fit or tuning duration in seconds.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}, []string{"system", "model"}),
		GridCandidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_candidates_total",
			Help:      "Grid-search (candidate, fold) fits completed.",
		}, []string{"system"}),
		Predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenario_predictions_total",
			Help:      "Scenario simulator predictions served.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			c.PageRenders,
			c.PageRenderDuration,
			c.ArtifactMisses,
			c.DataCache,
			c.ModelFitDuration,
			c.GridCandidates,
			c.Predictions,
		)
	}
	return c
}

// ObserveFit records a fit duration measured from start.
func (c *Collector) ObserveFit(system, model string, start time.Time) {
	if c == nil {
		return
	}
	c.ModelFitDuration.WithLabelValues(system, model).Observe(time.Since(start).Seconds())
}

// CacheResult counts a cache lookup outcome.
func (c *Collector) CacheResult(result string) {
	if c == nil {
		return
	}
	c.DataCache.WithLabelValues(result).Inc()
}

// ArtifactMiss counts a missing artifact.
func (c *Collector) ArtifactMiss(name string) {
	if c == nil {
		return
	}
	c.ArtifactMisses.WithLabelValues(name).Inc()
}

// GridFit counts one completed grid-search fit.
func (c *Collector) GridFit(system string) {
	if c == nil {
		return
	}
	c.GridCandidates.WithLabelValues(system).Inc()
}

// ObservePage records one page render with its HTTP status.
func (c *Collector) ObservePage(page string, status int, start time.Time) {
	if c == nil {
		return
	}
	c.PageRenders.WithLabelValues(page, strconv.Itoa(status)).Inc()
	c.PageRenderDuration.WithLabelValues(page).Observe(time.Since(start).Seconds())
}

// Prediction counts one scenario prediction.
func (c *Collector) Prediction() {
	if c == nil {
		return
	}
	c.Predictions.Inc()
}
