// Package metrics holds the Prometheus instrumentation for the
// scheduler, grounded on the teacher's pkg/metrics/metrics.go: same
// promauto-registration-at-init pattern, renamed from job/executor/queue
// metrics to the occurrence-trigger domain this system actually has.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TimersArmed tracks how many one-shot timers the orchestrator
	// currently holds.
	TimersArmed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "scheduler",
			Subsystem: "orchestrator",
			Name:      "timers_armed",
			Help:      "Number of occurrence timers currently armed",
		},
	)

	// TriggersTotal counts occurrences that completed the trigger
	// pipeline.
	TriggersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "orchestrator",
			Name:      "triggers_total",
			Help:      "Total number of occurrences triggered",
		},
	)

	// TriggerLagSeconds measures delay between an occurrence's scheduled
	// time and the moment its trigger pipeline ran.
	TriggerLagSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "scheduler",
			Subsystem: "orchestrator",
			Name:      "trigger_lag_seconds",
			Help:      "Delay between scheduled time and trigger pipeline execution",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 16), // 10ms to ~164s
		},
	)

	// RetriesTotal counts occurrences rescheduled as a retry.
	RetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "orchestrator",
			Name:      "retries_total",
			Help:      "Total number of retry occurrences scheduled",
		},
	)

	// RecoveredTotal counts catch-up occurrences produced by a recovery
	// sweep.
	RecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "scheduler",
			Subsystem: "recovery",
			Name:      "recovered_total",
			Help:      "Total number of catch-up occurrences produced by recovery sweeps",
		},
	)
)
