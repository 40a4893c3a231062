package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
//
// These are aggregate counters only. Anything identifying a person or a
// record belongs in the audit trail, not in metric labels.
type Metrics struct {
	ValidationFailures *prometheus.CounterVec
	AccessDenied       prometheus.Counter
	QueriesExecuted    *prometheus.CounterVec
	LoginFailures      prometheus.Counter
	Lockouts           prometheus.Counter
	AuditFallbacks     prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "urban_mobility_validation_failures_total",
			Help: "Rejected input fields by reason code",
		}, []string{"reason"}),
		AccessDenied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urban_mobility_access_denied_total",
			Help: "Authorization denials",
		}),
		QueriesExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "urban_mobility_queries_executed_total",
			Help: "Store operations by outcome",
		}, []string{"outcome"}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urban_mobility_login_failures_total",
			Help: "Failed login attempts",
		}),
		Lockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urban_mobility_lockouts_total",
			Help: "Login attempts rejected while locked out",
		}),
		AuditFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "urban_mobility_audit_fallback_total",
			Help: "Audit events diverted to the in-memory fallback buffer",
		}),
	}
}
