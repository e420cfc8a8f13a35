package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics of the booking engine.
type Metrics struct {
	BookingsCreated      *prometheus.CounterVec
	Promotions           prometheus.Counter
	Cancellations        *prometheus.CounterVec
	Completions          prometheus.Counter
	Overrides            prometheus.Counter
	AdmissionRetries     prometheus.Counter
	NotificationsDropped prometheus.Counter
	NotificationErrors   *prometheus.CounterVec
	AdmissionDuration    prometheus.Histogram
}

// NewMetrics registers the metrics on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BookingsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_created_total",
			Help:      "Bookings created, by outcome (confirmed or queued)",
		}, []string{"outcome"}),
		Promotions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_promotions_total",
			Help:      "Queued bookings promoted to confirmed",
		}),
		Cancellations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_cancelled_total",
			Help:      "Cancelled bookings, by state at cancellation",
		}, []string{"from_state"}),
		Completions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_completed_total",
			Help:      "Completed bookings",
		}),
		Overrides: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manager_overrides_total",
			Help:      "Advisor assignments forced by a manager",
		}),
		AdmissionRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_retries_total",
			Help:      "Admissions retried after a capacity conflict",
		}),
		NotificationsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Events dropped because the outbound buffer was full",
		}),
		NotificationErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_errors_total",
			Help:      "Notification delivery failures, by sink",
		}, []string{"sink"}),
		AdmissionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent inside the per-slot admission critical section",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
