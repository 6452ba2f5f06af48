// Package metrics defines and registers all custom Prometheus metrics for the
// auth service. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation via promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// ── Operation metrics ─────────────────────────────────────────────────────────

// AuthOperationsTotal counts auth operations by outcome.
// Labels:
//   - operation: register, login, logout, refresh, forgot_password, reset_password, get_profile, update_profile
//   - outcome: "success" or the error kind (e.g. "AUTHENTICATION_ERROR")
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of auth operations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// AuthOperationDuration measures end-to-end duration of an auth operation.
var AuthOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of auth operations including store and hashing time.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// PasswordHashDuration measures bcrypt cost.
// Label:
//   - op: "hash" or "verify"
var PasswordHashDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "password_hash_duration_seconds",
		Help:      "Duration of bcrypt hash and verify calls.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2},
	},
	[]string{"op"},
)

// ── Token metrics ─────────────────────────────────────────────────────────────

// RefreshRotationsTotal counts refresh-token rotation attempts.
// Label:
//   - result: "rotated", "mismatch" (stale or replayed token), "contended" (lock held by a concurrent refresh)
var RefreshRotationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_rotations_total",
		Help:      "Total number of refresh-token rotation attempts, by result.",
	},
	[]string{"result"},
)

// ResetTokensSweptTotal counts expired reset tokens cleared by the sweeper.
var ResetTokensSweptTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reset_tokens_swept_total",
		Help:      "Total number of expired password-reset tokens cleared.",
	},
)

// ── Event metrics ─────────────────────────────────────────────────────────────

// EventsPublishedTotal counts auth lifecycle events leaving the service.
// Labels:
//   - type: event type (e.g. "user.registered")
//   - result: "published", "failed", or "dropped" (worker buffer full)
var EventsPublishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total number of auth events handed to the broker, by type and result.",
	},
	[]string{"type", "result"},
)

// EventsQueueDepth tracks the number of events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
