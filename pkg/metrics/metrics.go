package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RateLimitDecisions counts limiter outcomes per policy (allowed|denied|fail_open).
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_ratelimit_decisions_total",
			Help: "Rate limiter decisions by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	// TokensIssued counts issued single-use tokens per kind.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_tokens_issued_total",
			Help: "Single-use tokens issued by kind",
		},
		[]string{"kind"},
	)

	// TokenConsumptions counts consume attempts per kind and result
	// (success|not_found|mismatched|expired|error).
	TokenConsumptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_token_consumptions_total",
			Help: "Single-use token consume attempts by kind and result",
		},
		[]string{"kind", "result"},
	)

	// TokensSwept records expired token rows removed by maintenance.
	TokensSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkpost_tokens_swept_total",
			Help: "Expired token rows removed by the maintenance sweep",
		},
	)

	// AuthAttempts records login attempts by result.
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkpost_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkpost_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
