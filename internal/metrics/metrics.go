package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeCorrelated labels alerts that joined a correlation group.
	OutcomeCorrelated = "correlated"
	// OutcomeUncorrelated labels alerts that found no eligible match.
	OutcomeUncorrelated = "uncorrelated"

	// RCAOutcomeSuccess labels completed RCA generations.
	RCAOutcomeSuccess = "success"
	// RCAOutcomeFailed labels RCA generations that ended in the degraded state.
	RCAOutcomeFailed = "failed"
)

var (
	alertsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertkite",
			Name:      "alerts_ingested_total",
			Help:      "Total number of alerts ingested, partitioned by severity.",
		},
		[]string{"severity"},
	)

	correlationDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertkite",
			Name:      "correlation_decisions_total",
			Help:      "Correlation engine decisions, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	correlationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alertkite",
			Name:      "correlation_score",
			Help:      "Winning similarity scores of correlated alerts.",
			Buckets:   []float64{0.5, 0.6, 0.7, 0.75, 0.8, 0.85, 0.9, 0.95, 1},
		},
	)

	rcaGenerationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "alertkite",
			Name:      "rca_generations_total",
			Help:      "RCA generation attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	rcaGenerationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "alertkite",
			Name:      "rca_generation_seconds",
			Help:      "RCA generation latency in seconds.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 90, 120, 180},
		},
	)
)

// Register attaches alertkite collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		alertsIngestedTotal,
		correlationDecisionsTotal,
		correlationScore,
		rcaGenerationsTotal,
		rcaGenerationSeconds,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAlertIngested counts one ingested alert by severity.
func ObserveAlertIngested(severity string) {
	alertsIngestedTotal.WithLabelValues(severity).Inc()
}

// ObserveCorrelationDecision records one engine decision; correlated
// decisions also record the winning score.
func ObserveCorrelationDecision(correlated bool, score float64) {
	if correlated {
		correlationDecisionsTotal.WithLabelValues(OutcomeCorrelated).Inc()
		correlationScore.Observe(score)
		return
	}
	correlationDecisionsTotal.WithLabelValues(OutcomeUncorrelated).Inc()
}

// ObserveRCAGeneration records an RCA generation duration and outcome label.
func ObserveRCAGeneration(duration time.Duration, outcome string) {
	label := outcome
	if label != RCAOutcomeFailed {
		label = RCAOutcomeSuccess
	}
	rcaGenerationsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	rcaGenerationSeconds.Observe(duration.Seconds())
}
