// Package metrics exposes Prometheus metrics for the dispatch engines and the simulator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jakechorley/volunteer-dispatch/pkg/core/model"
)

// Registry is the custom prometheus registry for the application
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// OperationsTotal counts engine operations by name and outcome ("ok" or the error kind).
var OperationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "operations_total",
	Help:      "Engine operations by operation name and outcome",
}, []string{"operation", "outcome"})

// AssignmentsOpenedTotal counts volunteers taking calls.
var AssignmentsOpenedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "assignments_opened_total",
	Help:      "Assignments created by volunteers taking calls",
})

// AssignmentsEndedTotal counts finished assignments by end type.
var AssignmentsEndedTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "assignments_ended_total",
	Help:      "Assignments finished, by end type",
}, []string{"end_type"})

// CallsByStatus is the number of calls in each derived status at the last refresh.
var CallsByStatus = factory.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "dispatch",
	Name:      "calls_by_status",
	Help:      "Calls per derived status at the last refresh",
}, []string{"status"})

// NotificationsTotal counts notification emails by outcome.
var NotificationsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "notifications_total",
	Help:      "Notification emails by outcome",
}, []string{"outcome"})

// SimulatorTicksTotal counts simulator clock steps.
var SimulatorTicksTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "dispatch",
	Name:      "simulator_ticks_total",
	Help:      "Clock steps performed by the simulator",
})

// SimulatedClockSeconds is the simulated clock as a unix timestamp.
var SimulatedClockSeconds = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "dispatch",
	Name:      "simulated_clock_seconds",
	Help:      "Current simulated time as a unix timestamp",
})

// RecordOperation increments OperationsTotal using outcome as the label value
func RecordOperation(operation, outcome string) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAssignmentEnded increments AssignmentsEndedTotal for endType
func RecordAssignmentEnded(endType model.EndType) {
	AssignmentsEndedTotal.WithLabelValues(string(endType)).Inc()
}

// SetStatusCounts overwrites every CallsByStatus gauge
func SetStatusCounts(counts []model.StatusCount) {
	for _, c := range counts {
		CallsByStatus.WithLabelValues(c.Status.String()).Set(float64(c.Count))
	}
}

// Handler serves the metrics in Registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
