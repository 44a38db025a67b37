// Package metrics exports Prometheus instrumentation for the CashBus
// services. Collectors live here so the batch job and the API service
// share one registry surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// EscalationLastRunSeconds is a unix timestamp (seconds) of the last
	// completed escalation pass.
	EscalationLastRunSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cashbus",
		Subsystem: "escalation",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix timestamp (seconds) of the last completed escalation pass.",
	})

	// EscalationScannedTotal counts candidate timelines picked up by the
	// coarse due-timeline scan.
	EscalationScannedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cashbus",
		Subsystem: "escalation",
		Name:      "timelines_scanned_total",
		Help:      "Total number of candidate timelines scanned across escalation passes.",
	})

	// EscalationProcessedTotal counts per-timeline outcomes of escalation
	// passes, labeled by result (sent, skipped, failed).
	EscalationProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cashbus",
		Subsystem: "escalation",
		Name:      "timelines_processed_total",
		Help:      "Total number of timelines processed by the escalation scheduler, labeled by result.",
	}, []string{"result"})

	// EscalationCompletedTotal counts claims that exhausted the ladder and
	// went to lawsuit assembly.
	EscalationCompletedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cashbus",
		Subsystem: "escalation",
		Name:      "ladders_completed_total",
		Help:      "Total number of claims that reached the final notice and were handed to lawsuit assembly.",
	})
)

// Register registers CashBus metrics with the default Prometheus
// registry. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			EscalationLastRunSeconds,
			EscalationScannedTotal,
			EscalationProcessedTotal,
			EscalationCompletedTotal,
		)
	})
}
