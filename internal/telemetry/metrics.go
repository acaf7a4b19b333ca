package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the module's Prometheus instruments, registered on the
// default registerer at var-init time so a host that scrapes /metrics
// sees them without any explicit wiring call.
var (
	SessionRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivehydeanti_session_refresh_total",
		Help: "Session vault refresh attempts, labeled by outcome (success|failure).",
	}, []string{"outcome"})

	RiskScoreHistogram = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hivehydeanti_risk_score",
		Help:    "Distribution of computed risk scores (0-100) across signing attempts.",
		Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	SigningDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hivehydeanti_signing_duration_seconds",
		Help:    "Wall-clock time to gather probes, score and sign one request.",
		Buckets: prometheus.DefBuckets,
	})

	RequestsSignedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivehydeanti_requests_signed_total",
		Help: "Outbound requests processed by the integration adapter, labeled by outcome (signed|cancelled).",
	}, []string{"outcome"})
)
