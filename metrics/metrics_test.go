package metrics_test

import (
	"testing"

	"github.com/lucasmaystre/gossf/metrics"
	"github.com/lucasmaystre/gossf/ssf"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))

	before := testutil.ToFloat64(metrics.ModelsRejected.WithLabelValues("ssf.NewNoise"))
	_, err := ssf.NewNoise(nil)
	require.Error(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ModelsRejected.WithLabelValues("ssf.NewNoise")))

	n, err := testutil.GatherAndCount(reg, "gossf_models_rejected_total", "gossf_square_roots_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}
