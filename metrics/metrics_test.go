package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/coordination-labs/auction-sdk/metrics"
)

func TestMetricsRecord(t *testing.T) {
	m := metrics.New("auctionsdk")

	m.SubmissionsTotal.WithLabelValues("7").Inc()
	m.SubmissionsTotal.WithLabelValues("7").Inc()
	m.RejectionsTotal.WithLabelValues("rate_limited").Inc()
	m.PendingTransactions.WithLabelValues("standard_execution").Set(3)
	m.RevenueTotal.Add(250)

	require.Equal(t, float64(2), testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues("7")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.RejectionsTotal.WithLabelValues("rate_limited")))
	require.Equal(t, float64(3), testutil.ToFloat64(m.PendingTransactions.WithLabelValues("standard_execution")))
	require.Equal(t, float64(250), testutil.ToFloat64(m.RevenueTotal))
}

func TestIndependentRegistries(t *testing.T) {
	a := metrics.New("auctionsdk")
	b := metrics.New("auctionsdk")

	a.RevenueTotal.Add(100)
	require.Equal(t, float64(100), testutil.ToFloat64(a.RevenueTotal))
	require.Zero(t, testutil.ToFloat64(b.RevenueTotal))

	families, err := a.Registry().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestNop(t *testing.T) {
	m := metrics.Nop()
	require.NotNil(t, m.Registry())
	m.ExpiredTotal.Inc()
}
