package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	availabilityChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "availability_checks_total",
			Help:      "Count of availability checks by result.",
		},
		[]string{"result"},
	)

	alternativesOffered = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tablebook",
			Name:      "alternatives_offered",
			Help:      "Number of alternative slots offered per search.",
			Buckets:   []float64{0, 1, 2, 3, 5},
		},
	)

	reservationsConfirmed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "reservations_confirmed_total",
			Help:      "Count of confirmed reservations by persistence outcome.",
		},
		[]string{"persisted"},
	)

	bookingStatusChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "booking_status_changes_total",
			Help:      "Count of booking status changes by new status.",
		},
		[]string{"status"},
	)

	storeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "store_errors_total",
			Help:      "Count of storage failures by operation.",
		},
		[]string{"op"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			availabilityChecks,
			alternativesOffered,
			reservationsConfirmed,
			bookingStatusChanges,
			storeErrors,
			httpRequests,
		)
	})
}

func IncAvailabilityCheck(result string) {
	availabilityChecks.WithLabelValues(result).Inc()
}

func ObserveAlternatives(n int) {
	alternativesOffered.Observe(float64(n))
}

func IncReservationConfirmed(persisted bool) {
	label := "true"
	if !persisted {
		label = "false"
	}
	reservationsConfirmed.WithLabelValues(label).Inc()
}

func IncBookingStatusChange(status string) {
	bookingStatusChanges.WithLabelValues(status).Inc()
}

func IncStoreError(op string) {
	storeErrors.WithLabelValues(op).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
