package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(availabilityChecks.WithLabelValues("full"))
	IncAvailabilityCheck("full")
	IncAvailabilityCheck("full")
	assert.Equal(t, before+2, testutil.ToFloat64(availabilityChecks.WithLabelValues("full")))

	unsaved := testutil.ToFloat64(reservationsConfirmed.WithLabelValues("false"))
	IncReservationConfirmed(false)
	assert.Equal(t, unsaved+1, testutil.ToFloat64(reservationsConfirmed.WithLabelValues("false")))

	cancelled := testutil.ToFloat64(bookingStatusChanges.WithLabelValues("cancelled"))
	IncBookingStatusChange("cancelled")
	assert.Equal(t, cancelled+1, testutil.ToFloat64(bookingStatusChanges.WithLabelValues("cancelled")))
}

func TestObserveAlternatives(t *testing.T) {
	before := testutil.CollectAndCount(alternativesOffered)
	ObserveAlternatives(2)
	assert.Equal(t, before, testutil.CollectAndCount(alternativesOffered))
}
