package migrate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// roundsTotal counts finished rounds.
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "rounds_total",
		Help:      "Total search rounds finished",
	})

	// roundFitness is the fitness of the last finished round.
	roundFitness = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "round_fitness",
		Help:      "Fitness of the last finished round",
	})

	// roundDuration measures how long a round takes on the device.
	roundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "round_duration_seconds",
		Help:      "Duration of one search round in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
	})

	// validationsTotal counts candidate validations.
	// Labels: result (reached, unreachable, error, skipped)
	validationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "validations_total",
		Help:      "Total candidate widget validations by result",
	}, []string{"result"})

	// backtracksTotal counts rewinds of the target sequence.
	// Labels: reason (execution, conflict)
	backtracksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "backtracks_total",
		Help:      "Total backtracks by reason",
	}, []string{"reason"})

	// explorationsTotal counts systematic exploration passes.
	explorationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "explorations_total",
		Help:      "Total systematic exploration passes",
	})

	// boundTotal counts source events bound to a target event.
	// Labels: kind (gui, oracle, SYS_EVENT, empty)
	boundTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "craftdroid",
		Subsystem: "migrate",
		Name:      "bound_events_total",
		Help:      "Total source events bound, by target event kind",
	}, []string{"kind"})
)

// Validation results.
const (
	resultReached     = "reached"
	resultUnreachable = "unreachable"
	resultError       = "error"
	resultSkipped     = "skipped"
)

// Backtrack reasons.
const (
	reasonExecution = "execution"
	reasonConflict  = "conflict"
)
