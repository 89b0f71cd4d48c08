package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bloodbank_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	donorRegistrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_donor_registrations_total",
		Help: "Donor registration attempts by blood group and result",
	}, []string{"blood_group", "result"})

	requestSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_request_submissions_total",
		Help: "Blood request submissions by urgency and result",
	}, []string{"urgency", "result"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_status_transitions_total",
		Help: "Request status transitions by target status and result",
	}, []string{"to", "result"})

	transitionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bloodbank_status_transition_duration_seconds",
		Help:    "Duration of request status transitions including storage",
		Buckets: prometheus.DefBuckets,
	})

	requestsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloodbank_requests",
		Help: "Blood requests per status as of the last stats query",
	}, []string{"status"})

	donorsByGroup = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bloodbank_donors",
		Help: "Registered donors per blood group as of the last stats query",
	}, []string{"blood_group"})

	notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_notifications_total",
		Help: "Status notification emails by result",
	}, []string{"result"})

	droppedEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bloodbank_events_dropped_total",
		Help: "Events not delivered to a slow subscriber",
	})

	storeBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bloodbank_store_circuit_state",
		Help: "Store circuit breaker state (0 closed, 1 open, 2 half-open)",
	})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bloodbank_admin_logins_total",
		Help: "Admin login attempts by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, route, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, status).Inc()
	httpRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// ObserveRegistration counts a donor registration attempt.
func ObserveRegistration(bloodGroup, result string) {
	donorRegistrations.WithLabelValues(bloodGroup, result).Inc()
}

// ObserveSubmission counts a blood request submission.
func ObserveSubmission(urgency, result string) {
	requestSubmissions.WithLabelValues(urgency, result).Inc()
}

// ObserveTransition records a status transition attempt and its latency.
func ObserveTransition(to, result string, duration time.Duration) {
	statusTransitions.WithLabelValues(to, result).Inc()
	transitionDuration.Observe(duration.Seconds())
}

// SetRequestsByStatus publishes the latest per-status request counts.
func SetRequestsByStatus(counts map[string]int) {
	for status, n := range counts {
		requestsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// SetDonorsByGroup publishes the latest per-group donor counts.
func SetDonorsByGroup(counts map[string]int) {
	for group, n := range counts {
		donorsByGroup.WithLabelValues(group).Set(float64(n))
	}
}

// ObserveNotification counts a notification delivery result.
func ObserveNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}

// IncDroppedEvents counts an event a subscriber missed.
func IncDroppedEvents() {
	droppedEvents.Inc()
}

// SetStoreBreakerState records the store circuit breaker position.
func SetStoreBreakerState(state int) {
	storeBreakerState.Set(float64(state))
}

// ObserveLogin counts an admin login attempt.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}
