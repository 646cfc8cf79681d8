package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels files that parsed into at least one point.
	OutcomeSuccess = "success"
	// OutcomeError labels files rejected by the parser.
	OutcomeError = "error"
)

var (
	filesIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "furnacewear",
			Name:      "files_ingested_total",
			Help:      "Total number of scan files ingested, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	rowsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "furnacewear",
			Name:      "rows_skipped_total",
			Help:      "Scan rows dropped as incomplete or non-finite.",
		},
	)

	clusteringDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "furnacewear",
			Name:      "clustering_seconds",
			Help:      "Proximity grouping latency in seconds, by cluster mode.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"mode"},
	)

	proposalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "furnacewear",
			Name:      "proposals_total",
			Help:      "Repair proposals computed, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches furnacewear collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		filesIngestedTotal,
		rowsSkippedTotal,
		clusteringDurationSeconds,
		proposalsTotal,
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

func outcomeLabel(outcome string) string {
	if outcome != OutcomeError {
		return OutcomeSuccess
	}
	return outcome
}

// ObserveFileIngested records one parsed file and its skipped rows.
func ObserveFileIngested(outcome string, skippedRows int) {
	filesIngestedTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	if skippedRows > 0 {
		rowsSkippedTotal.Add(float64(skippedRows))
	}
}

// ObserveProposal records a proposal computation and how long its grouping took.
func ObserveProposal(mode string, duration time.Duration, outcome string) {
	proposalsTotal.WithLabelValues(outcomeLabel(outcome)).Inc()
	if mode == "" {
		mode = "seed-anchored"
	}
	if duration < 0 {
		duration = 0
	}
	clusteringDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}
