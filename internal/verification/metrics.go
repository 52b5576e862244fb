package verification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_verification",
			Name:      "verifications_total",
			Help:      "Verification records created, by resulting status",
		},
		[]string{"status"},
	)

	verificationScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "review_verification",
			Name:      "score",
			Help:      "Distribution of verification scores",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
	)

	degradedAnalyzersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_verification",
			Name:      "degraded_analyzers_total",
			Help:      "Analyzer runs that fell back to neutral values",
		},
		[]string{"analyzer"},
	)

	manualDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "review_verification",
			Name:      "manual_decisions_total",
			Help:      "Admin decisions on queued verifications",
		},
		[]string{"status"},
	)
)

func recordVerification(v *ReviewVerification) {
	verificationsTotal.WithLabelValues(string(v.Status)).Inc()
	verificationScore.Observe(v.Score)
	for _, analyzer := range v.DegradedAnalyzers {
		degradedAnalyzersTotal.WithLabelValues(analyzer).Inc()
	}
}
