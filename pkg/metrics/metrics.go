package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Orchestration engine metrics, exported on /metrics.
var (
	PortfolioCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainhub_portfolio_cache_hits_total",
		Help: "Portfolio reads served from the TTL cache",
	})

	PortfolioCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainhub_portfolio_cache_misses_total",
		Help: "Portfolio reads that went upstream",
	})

	PortfolioCoalescedWaits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chainhub_portfolio_coalesced_waits_total",
		Help: "Portfolio reads that shared an in-flight upstream fetch",
	})

	OperationsBuilt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhub_operations_built_total",
		Help: "Unsigned operation sets built, by type and outcome",
	}, []string{"type", "outcome"})

	OperationsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhub_operations_submitted_total",
		Help: "Signed operation submissions, by outcome",
	}, []string{"outcome"})

	OperationsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhub_operations_completed_total",
		Help: "Operations that reached a terminal status",
	}, []string{"status"})

	BatchesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chainhub_batches_created_total",
		Help: "Batches created, by resulting status",
	}, []string{"status"})

	ProviderCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chainhub_provider_call_duration_seconds",
		Help:    "Latency of chain-abstraction provider calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
