// Package slots models the restaurant's bookable time grid and per-slot seating ceiling.
package slots

import (
	"fmt"
	"iter"
	"math"
	"time"

	"tablebook/internal/models"
)

// CapacityRule describes opening hours, slot granularity and the seat ceiling over the day.
type CapacityRule struct {
	TotalCapacity  int
	Open           models.TimeOfDay
	Close          models.TimeOfDay
	Granularity    int // minutes
	PeakStart      models.TimeOfDay
	PeakEnd        models.TimeOfDay
	PeakCeiling    float64
	OffPeakCeiling float64
}

// DefaultRule mirrors the house defaults: 50 seats, 11:00-23:00, quarter-hour slots,
// a 19:00-21:00 peak and no ceiling reduction.
func DefaultRule() CapacityRule {
	return CapacityRule{
		TotalCapacity:  50,
		Open:           models.NewTimeOfDay(11, 0),
		Close:          models.NewTimeOfDay(23, 0),
		Granularity:    15,
		PeakStart:      models.NewTimeOfDay(19, 0),
		PeakEnd:        models.NewTimeOfDay(21, 0),
		PeakCeiling:    1.0,
		OffPeakCeiling: 1.0,
	}
}

// Validate checks the rule for inconsistent values.
func (r CapacityRule) Validate() error {
	if r.TotalCapacity <= 0 {
		return fmt.Errorf("total_capacity: must be positive, got %d", r.TotalCapacity)
	}
	if r.Granularity <= 0 {
		return fmt.Errorf("slot_interval_minutes: must be positive, got %d", r.Granularity)
	}
	if r.Open >= r.Close {
		return fmt.Errorf("opening_time %s must be before closing_time %s", r.Open, r.Close)
	}
	if r.PeakStart > r.PeakEnd {
		return fmt.Errorf("peak.start %s must not be after peak.end %s", r.PeakStart, r.PeakEnd)
	}
	if r.PeakCeiling <= 0 || r.PeakCeiling > 1 {
		return fmt.Errorf("peak.ceiling: must be in (0, 1], got %v", r.PeakCeiling)
	}
	if r.OffPeakCeiling <= 0 || r.OffPeakCeiling > 1 {
		return fmt.Errorf("off_peak_ceiling: must be in (0, 1], got %v", r.OffPeakCeiling)
	}
	return nil
}

// IsPeak reports whether t falls in the half-open peak window.
func (r CapacityRule) IsPeak(t models.TimeOfDay) bool {
	return t >= r.PeakStart && t < r.PeakEnd
}

// CeilingFor returns the utilization ceiling that applies at t.
func (r CapacityRule) CeilingFor(t models.TimeOfDay) float64 {
	if r.IsPeak(t) {
		return r.PeakCeiling
	}
	return r.OffPeakCeiling
}

// MaxCapacity returns the seat ceiling for a slot starting at t.
func (r CapacityRule) MaxCapacity(t models.TimeOfDay) int {
	return int(math.Floor(float64(r.TotalCapacity) * r.CeilingFor(t)))
}

// EnumerateSlots yields every slot from opening through closing inclusive.
// The sequence is lazy and may be ranged over any number of times.
func (r CapacityRule) EnumerateSlots(date time.Time) iter.Seq[models.TimeSlot] {
	date = models.DateOnly(date)
	return func(yield func(models.TimeSlot) bool) {
		if r.Granularity <= 0 {
			return
		}
		for cursor := r.Open; cursor <= r.Close; cursor = cursor.Add(r.Granularity) {
			if !yield(models.TimeSlot{Date: date, Time: cursor}) {
				return
			}
		}
	}
}

// Slots collects EnumerateSlots into a slice.
func (r CapacityRule) Slots(date time.Time) []models.TimeSlot {
	var out []models.TimeSlot
	for s := range r.EnumerateSlots(date) {
		out = append(out, s)
	}
	return out
}

// IsBookable reports whether t lies on the grid within opening hours.
func (r CapacityRule) IsBookable(t models.TimeOfDay) bool {
	return r.Granularity > 0 && t >= r.Open && t <= r.Close && r.Open.Sub(t)%r.Granularity == 0
}

// FormatDuration renders minutes as "45 min", "1 hour" or "1 h 30 min".
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d h %d min", hours, mins)
}
