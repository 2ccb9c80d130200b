package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_RegisterOnFreshRegistry(t *testing.T) {
	m := NewMetricsForTesting()
	reg := prometheus.NewRegistry()
	for _, c := range m.collectors() {
		require.NoError(t, reg.Register(c))
	}

	m.RecordsDropped.WithLabelValues("zero_coordinate").Add(2)
	m.RefreshTotal.WithLabelValues("success").Inc()

	assert.InDelta(t, 2, testutil.ToFloat64(m.RecordsDropped.WithLabelValues("zero_coordinate")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RefreshTotal.WithLabelValues("success")), 0)
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()
	a.LayerBuilds.Inc()

	assert.InDelta(t, 1, testutil.ToFloat64(a.LayerBuilds), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(b.LayerBuilds), 0)
}
