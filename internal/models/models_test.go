package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("19:30")
	require.NoError(t, err)
	assert.Equal(t, 19, tod.Hour())
	assert.Equal(t, 30, tod.Minute())
	assert.Equal(t, "19:30", tod.String())

	for _, bad := range []string{"", "7pm", "24:00", "12:60", "1:2:3"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestDiningInterval_Overlaps(t *testing.T) {
	seven := NewTimeOfDay(19, 0)

	tests := []struct {
		name string
		a, b DiningInterval
		want bool
	}{
		{"same start", DiningInterval{seven, 90}, DiningInterval{seven, 90}, true},
		{"partial", DiningInterval{seven, 90}, DiningInterval{seven.Add(60), 90}, true},
		{"adjacent after", DiningInterval{seven, 90}, DiningInterval{seven.Add(90), 90}, false},
		{"adjacent before", DiningInterval{seven, 90}, DiningInterval{seven.Add(-90), 90}, false},
		{"contained", DiningInterval{seven, 90}, DiningInterval{seven.Add(15), 30}, true},
		{"disjoint", DiningInterval{seven, 30}, DiningInterval{seven.Add(120), 30}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func TestTimeSlot(t *testing.T) {
	date := time.Date(2026, 12, 4, 0, 0, 0, 0, time.UTC)
	slot := TimeSlot{Date: date, Time: NewTimeOfDay(19, 15)}

	assert.Equal(t, time.Date(2026, 12, 4, 19, 15, 0, 0, time.UTC), slot.Start())
	assert.True(t, slot.IsCanonical(15))
	assert.False(t, TimeSlot{Date: date, Time: NewTimeOfDay(19, 10)}.IsCanonical(15))
	assert.Equal(t, "2026-12-04 19:15", slot.String())
}

func TestBooking_Helpers(t *testing.T) {
	b := &Booking{
		PartySize:      4,
		BookingDate:    time.Date(2026, 12, 4, 0, 0, 0, 0, time.UTC),
		BookingTime:    "19:00",
		DiningDuration: 90,
		Status:         StatusConfirmed,
	}

	t.Run("Interval", func(t *testing.T) {
		iv, err := b.Interval()
		require.NoError(t, err)
		assert.Equal(t, NewTimeOfDay(20, 30), iv.End())
	})

	t.Run("IntervalDefaultsDuration", func(t *testing.T) {
		nb := *b
		nb.DiningDuration = 0
		iv, err := nb.Interval()
		require.NoError(t, err)
		assert.Equal(t, DefaultDiningDuration, iv.Duration)
	})

	t.Run("Validate", func(t *testing.T) {
		assert.NoError(t, b.Validate(1, 50))
		assert.Error(t, b.Validate(5, 50))

		nb := *b
		nb.Status = "pending"
		assert.Error(t, nb.Validate(1, 50))
	})

	t.Run("StatusTransitions", func(t *testing.T) {
		assert.True(t, StatusConfirmed.CanTransition(StatusCancelled))
		assert.True(t, StatusConfirmed.CanTransition(StatusNoShow))
		assert.False(t, StatusConfirmed.CanTransition(StatusConfirmed))
		assert.False(t, StatusCancelled.CanTransition(StatusConfirmed))
		assert.False(t, StatusCompleted.CanTransition(StatusCancelled))
	})
}
