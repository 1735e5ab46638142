package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AvailabilityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebooking_availability_checks_total",
		Help: "Availability checks by result",
	}, []string{"result"})

	BookingsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tablebooking_bookings_created_total",
		Help: "Bookings created",
	})

	BookingConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebooking_booking_conflicts_total",
		Help: "Rejected booking attempts by conflict reason",
	}, []string{"reason"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebooking_webhook_events_total",
		Help: "Gateway notifications by event type and outcome",
	}, []string{"type", "outcome"})

	RefundsRequested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tablebooking_refunds_requested_total",
		Help: "Refunds requested from the gateway by result",
	}, []string{"result"})

	StoreTxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tablebooking_store_tx_duration_seconds",
		Help:    "Time spent inside store transactions",
		Buckets: prometheus.DefBuckets,
	})
)

// ObserveAvailability counts one availability decision.
func ObserveAvailability(available bool) {
	AvailabilityChecks.WithLabelValues(availabilityLabel(available)).Inc()
}

func availabilityLabel(ok bool) string {
	if ok {
		return "available"
	}
	return "unavailable"
}
