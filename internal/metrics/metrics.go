package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the lifecycle engine's background jobs.
var (
	SweepTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sweep_transitions_total",
			Help: "Transitions applied by sweep jobs",
		},
		[]string{"job"},
	)

	SweepSkipsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sweep_skips_total",
			Help: "Sweep iterations skipped because another path already transitioned the aggregate",
		},
		[]string{"job"},
	)

	SweepFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_sweep_failures_total",
			Help: "Sweep iterations that failed with an unexpected error",
		},
		[]string{"job"},
	)

	ScheduledTriggersFiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_scheduled_triggers_fired_total",
			Help: "Scheduled wake-ups that applied their transition",
		},
	)

	ScheduledTriggersStaleTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_scheduled_triggers_stale_total",
			Help: "Scheduled wake-ups skipped because the aggregate had already moved",
		},
	)

	ReconcilerRepairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_reconciler_repairs_total",
			Help: "Drift repairs applied by the reconciliation loop",
		},
	)

	EscrowFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "lifecycle_escrow_failures_total",
			Help: "Escrow release/forfeit calls that failed after a committed transition",
		},
	)
)

// Register registers all engine metrics with the default registry.
func Register() {
	prometheus.MustRegister(SweepTransitionsTotal)
	prometheus.MustRegister(SweepSkipsTotal)
	prometheus.MustRegister(SweepFailuresTotal)
	prometheus.MustRegister(ScheduledTriggersFiredTotal)
	prometheus.MustRegister(ScheduledTriggersStaleTotal)
	prometheus.MustRegister(ReconcilerRepairsTotal)
	prometheus.MustRegister(EscrowFailuresTotal)
}
