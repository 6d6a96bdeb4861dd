// Package metrics exposes Prometheus counters, gauges and histograms for the
// auction coordinator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every instrument the coordinator records.
type Metrics struct {
	// Submission metrics
	SubmissionsTotal *prometheus.CounterVec
	AdmissionsTotal  *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec

	// Pending-set metrics
	PendingTransactions *prometheus.GaugeVec
	ExpiredTotal        prometheus.Counter

	// Sealing metrics
	SealedWindowsTotal *prometheus.CounterVec
	SealLatency        prometheus.Histogram
	WinnersPerWindow   prometheus.Histogram

	// Revenue metrics
	RevenueTotal            prometheus.Counter
	CoordinatorRevenueTotal prometheus.Counter
	PartnerRevenueTotal     prometheus.Counter

	registry *prometheus.Registry
}

// New creates metrics registered on a fresh registry under the namespace.
func New(namespace string) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Total transactions submitted, by partner chain",
		}, []string{"chain_id"}),
		AdmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Total transactions admitted into a lane, by auction type",
		}, []string{"auction_type"}),
		RejectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Total transactions rejected, by reason",
		}, []string{"reason"}),

		PendingTransactions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_transactions",
			Help:      "Transactions pending in each lane",
		}, []string{"auction_type"}),
		ExpiredTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_transactions_total",
			Help:      "Total pending transactions removed by TTL expiry",
		}),

		SealedWindowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sealed_windows_total",
			Help:      "Total sealed auction windows, by auction type",
		}, []string{"auction_type"}),
		SealLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "seal_latency_seconds",
			Help:      "Window sealing latency in seconds",
			Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		WinnersPerWindow: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "winners_per_window",
			Help:      "Winning transactions per sealed window",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		RevenueTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revenue_total",
			Help:      "Cumulative auction revenue",
		}),
		CoordinatorRevenueTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coordinator_revenue_total",
			Help:      "Cumulative coordinator revenue share",
		}),
		PartnerRevenueTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partner_revenue_total",
			Help:      "Cumulative partner chain revenue share",
		}),
	}
}

// Nop returns metrics on a throwaway registry, for tests and callers that do
// not scrape.
func Nop() *Metrics {
	return New("auctionsdk_nop")
}

// Registry returns the registry holding these instruments, for serving via
// promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
