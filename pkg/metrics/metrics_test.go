package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCollectorRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.CacheResult("hit")
	c.ArtifactMiss("corr.html")
	c.GridFit("Wild")
	c.ObserveFit("Wild", "ridge_spline", time.Now())

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["climacrop_data_cache_total"])
	assert.True(t, names["climacrop_artifact_misses_total"])
	assert.True(t, names["climacrop_grid_candidates_total"])
	assert.True(t, names["climacrop_model_fit_duration_seconds"])
}

func TestCounters(t *testing.T) {
	c := NewCollector(nil)

	c.CacheResult("miss")
	c.CacheResult("miss")
	c.CacheResult("hit")
	c.ArtifactMiss("global_map.html")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.DataCache.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.DataCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ArtifactMisses.WithLabelValues("global_map.html")))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CacheResult("hit")
		c.ArtifactMiss("x")
		c.GridFit("Agricultural")
		c.ObserveFit("Agricultural", "stacking", time.Now())
		c.ObservePage("home", 200, time.Now())
		c.Prediction()
	})
}

func TestObservePage(t *testing.T) {
	c := NewCollector(nil)
	c.ObservePage("simulator", 200, time.Now())
	c.ObservePage("simulator", 400, time.Now())
	c.ObservePage("simulator", 200, time.Now())
	c.Prediction()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.PageRenders.WithLabelValues("simulator", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PageRenders.WithLabelValues("simulator", "400")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Predictions))
}
