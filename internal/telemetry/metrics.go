// Package telemetry provides Prometheus metrics for the bot.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ActivityEvents  *prometheus.CounterVec
	ReconcilePasses prometheus.Counter
	RolesGranted    prometheus.Counter
	RolesRevoked    prometheus.Counter
	RoleErrors      prometheus.Counter

	// Gauges
	TrackedUsers prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ActivityEvents = promauto.NewCounterVec(prometheus.CounterOpts{Name: "idlewatch_activity_events_total", Help: "Number of activity events recorded"}, []string{"source"})
		ReconcilePasses = promauto.NewCounter(prometheus.CounterOpts{Name: "idlewatch_reconcile_passes_total", Help: "Number of inactivity reconciliation passes"})
		RolesGranted = promauto.NewCounter(prometheus.CounterOpts{Name: "idlewatch_roles_granted_total", Help: "Number of inactive-role grants"})
		RolesRevoked = promauto.NewCounter(prometheus.CounterOpts{Name: "idlewatch_roles_revoked_total", Help: "Number of inactive-role revocations"})
		RoleErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "idlewatch_role_errors_total", Help: "Number of failed role mutations"})
		TrackedUsers = promauto.NewGauge(prometheus.GaugeOpts{Name: "idlewatch_tracked_users", Help: "Current number of users with an activity record"})
	})
}

// IncActivityEvent counts one recorded activity event by source (message|voice).
func IncActivityEvent(source string) {
	if ActivityEvents != nil {
		ActivityEvents.WithLabelValues(source).Inc()
	}
}

// IncReconcilePass counts one reconciliation pass.
func IncReconcilePass() {
	if ReconcilePasses != nil {
		ReconcilePasses.Inc()
	}
}

// IncRoleGranted counts one role grant.
func IncRoleGranted() {
	if RolesGranted != nil {
		RolesGranted.Inc()
	}
}

// IncRoleRevoked counts one role revocation.
func IncRoleRevoked() {
	if RolesRevoked != nil {
		RolesRevoked.Inc()
	}
}

// IncRoleError counts one failed role mutation.
func IncRoleError() {
	if RoleErrors != nil {
		RoleErrors.Inc()
	}
}

// SetTrackedUsers records the current tracked-user count.
func SetTrackedUsers(n int64) {
	if TrackedUsers != nil {
		TrackedUsers.Set(float64(n))
	}
}
