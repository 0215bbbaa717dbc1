package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_guest_sessions_created_total",
		Help: "Guest sessions created or refreshed, by identity kind",
	}, []string{"kind"})

	SessionLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_guest_session_lookups_total",
		Help: "Guest session lookups by result (hit, not_found, wrong_scope, expired, hotel_not_found, error)",
	}, []string{"result"})

	RequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_requests_created_total",
		Help: "Guest service requests recorded",
	})

	RequestTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_request_transitions_total",
		Help: "Request status transitions by target status",
	}, []string{"to"})

	SessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "concierge_sessions_swept_total",
		Help: "Expired guest sessions deleted by the sweeper",
	})

	PollerTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_poller_ticks_total",
		Help: "Notification poller ticks by outcome (ok, empty, error, skipped)",
	}, []string{"outcome"})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "concierge_notifications_failed_total",
		Help: "Best-effort notifications that failed, by template",
	}, []string{"template"})
)

func IncSessionLookup(result string) {
	if result == "" {
		result = "unknown"
	}
	SessionLookupsTotal.WithLabelValues(result).Inc()
}

func IncPollerTick(outcome string) {
	PollerTicksTotal.WithLabelValues(outcome).Inc()
}
