package metrics_test

import (
	"testing"

	"github.com/dropDatabas3/hellopassport/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegister_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	require.NoError(t, metrics.Register(reg))

	metrics.VisasIssued.WithLabelValues("ega", "jwt").Inc()
	require.GreaterOrEqual(t, testutil.ToFloat64(metrics.VisasIssued.WithLabelValues("ega", "jwt")), 1.0)

	n, err := testutil.GatherAndCount(reg, "hellopassport_visas_issued_total")
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)
}
