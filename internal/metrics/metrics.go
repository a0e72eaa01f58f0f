// Package metrics holds the Prometheus collectors for the login pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts counts authentication attempts.
	// Labels:
	//   - outcome: "success", "wrong_password", "unknown_user"
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_login_attempts_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// Logouts counts completed logouts, including forced ones.
	Logouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_logouts_total",
			Help: "Total number of session logouts",
		},
		[]string{"reason"},
	)

	// ActiveSessions is 1 while a session is open.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loginguard_active_sessions",
		Help: "Number of active sessions (0 or 1)",
	})

	// TelemetryDispatches counts detector calls by result.
	// Labels:
	//   - result: "verdict", "unreachable", "rejected", "malformed", "circuit_open"
	TelemetryDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_telemetry_dispatches_total",
			Help: "Total number of telemetry dispatches by result",
		},
		[]string{"result"},
	)

	// TelemetryDuration measures detector round trips.
	TelemetryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "loginguard_telemetry_duration_seconds",
		Help:    "Duration of detection service calls",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// DetectorCircuitState tracks the breaker: 0 closed, 1 half-open, 2 open.
	DetectorCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loginguard_detector_circuit_state",
		Help: "Detection service circuit breaker state",
	})

	// AttackVerdicts counts verdicts flagged as attacker.
	AttackVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_verdicts_total",
			Help: "Total number of verdicts received by classification",
		},
		[]string{"classification"},
	)

	// SystemLogEntries is the current ring buffer length.
	SystemLogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "loginguard_system_log_entries",
		Help: "Number of entries held in the system log",
	})

	// PersistenceFailures counts system log load/save failures.
	// Labels:
	//   - op: "load", "save", "delete"
	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loginguard_persistence_failures_total",
			Help: "Total number of system log persistence failures",
		},
		[]string{"op"},
	)
)

// Throttled counts requests rejected by the per-client rate limiter.
var Throttled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loginguard_throttled_requests_total",
		Help: "Total number of requests rejected by the rate limiter",
	},
	[]string{"path"},
)
