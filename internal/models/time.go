package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical calendar-date format used across storage and the API.
const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
// Values past 24:00 only appear as interval ends.
type TimeOfDay int

// NewTimeOfDay builds a TimeOfDay from hour and minute.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses a canonical "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time format '%s', expected HH:MM", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in '%s'", s)
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in '%s'", s)
	}

	return NewTimeOfDay(hour, minute), nil
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Add shifts the time by the given number of minutes.
func (t TimeOfDay) Add(minutes int) TimeOfDay { return t + TimeOfDay(minutes) }

// Sub returns the signed distance to other in minutes.
func (t TimeOfDay) Sub(other TimeOfDay) int { return int(t - other) }

// String renders the canonical "HH:MM" form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// On places the time on the given calendar date.
func (t TimeOfDay) On(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, date.Location())
}

// DateOnly truncates a time to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TimeSlot is a bookable start point on a calendar date.
type TimeSlot struct {
	Date time.Time
	Time TimeOfDay
}

// Start returns the absolute start instant of the slot.
func (s TimeSlot) Start() time.Time {
	return s.Time.On(s.Date)
}

// IsCanonical reports whether the slot sits on the granularity grid.
func (s TimeSlot) IsCanonical(granularity int) bool {
	return granularity > 0 && s.Time.Minute()%granularity == 0
}

func (s TimeSlot) String() string {
	return s.Date.Format(DateLayout) + " " + s.Time.String()
}

// DiningInterval is the half-open span [Start, Start+Duration) a party occupies.
type DiningInterval struct {
	Start    TimeOfDay
	Duration int // minutes
}

// End returns the exclusive end of the interval.
func (d DiningInterval) End() TimeOfDay {
	return d.Start.Add(d.Duration)
}

// Overlaps reports strict overlap; intervals that only touch do not overlap.
func (d DiningInterval) Overlaps(other DiningInterval) bool {
	return d.Start < other.End() && other.Start < d.End()
}
