package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// CapabilityChecks counts capability evaluations and their outcome (allow|deny|error).
	CapabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_capability_checks_total",
			Help: "Total number of capability checks",
		},
		[]string{"capability", "result"},
	)

	// CertificatesIssued counts issued certificates per template.
	CertificatesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_issued_total",
			Help: "Total number of certificates issued",
		},
		[]string{"template"},
	)

	// Verifications counts public code verifications by result (found|not_found).
	Verifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "certificate_verifications_total",
			Help: "Total number of verification lookups",
		},
		[]string{"result"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "certificate_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
