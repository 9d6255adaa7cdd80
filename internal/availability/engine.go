// Package availability answers "how many seats are free" questions over the slot grid.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/models"
	"tablebook/internal/slots"

	"github.com/rs/zerolog"
)

// ErrStoreUnavailable wraps failures of the booking source.
var ErrStoreUnavailable = errors.New("booking store unavailable")

// BookingSource returns every booking recorded on a date, whatever its status.
type BookingSource interface {
	BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error)
}

// Options tunes the engine beyond the capacity rule.
type Options struct {
	DiningDuration int // minutes
	WindowMinutes  int
	QueryTimeout   time.Duration
}

// DefaultOptions returns a 90 minute sitting and a one hour search window.
func DefaultOptions() Options {
	return Options{
		DiningDuration: models.DefaultDiningDuration,
		WindowMinutes:  60,
		QueryTimeout:   5 * time.Second,
	}
}

// Candidate is a slot that can seat the requested party.
type Candidate struct {
	Slot           models.TimeSlot
	AvailableSeats int
	Distance       int // minutes from the preferred time; 0 without a preference
}

// Engine computes seat availability from the capacity rule and live bookings.
// It holds no occupancy state; every call queries the source afresh.
type Engine struct {
	rule   slots.CapacityRule
	source BookingSource
	opts   Options
	logger *zerolog.Logger
}

// NewEngine creates an availability engine.
func NewEngine(rule slots.CapacityRule, source BookingSource, opts Options, logger *zerolog.Logger) *Engine {
	if opts.DiningDuration <= 0 {
		opts.DiningDuration = models.DefaultDiningDuration
	}
	if opts.WindowMinutes < 0 {
		opts.WindowMinutes = 0
	}
	return &Engine{rule: rule, source: source, opts: opts, logger: logger}
}

// Rule returns the capacity rule in force.
func (e *Engine) Rule() slots.CapacityRule {
	return e.rule
}

// DiningDuration returns the default sitting length in minutes.
func (e *Engine) DiningDuration() int {
	return e.opts.DiningDuration
}

// AvailableSeats returns max capacity at t minus the party sizes of confirmed bookings
// overlapping [t, t+duration). The result is negative when the slot is overbooked.
func (e *Engine) AvailableSeats(ctx context.Context, date time.Time, t models.TimeOfDay, duration int) (int, error) {
	bookings, err := e.fetch(ctx, date)
	if err != nil {
		return 0, err
	}
	if duration <= 0 {
		duration = e.opts.DiningDuration
	}
	return e.seatsFrom(bookings, t, duration), nil
}

// FindAvailableSlots lists slots on date with room for partySize. With a preferred
// time only slots within the search window are considered and each carries its distance.
func (e *Engine) FindAvailableSlots(ctx context.Context, date time.Time, partySize int, preferred *models.TimeOfDay) ([]Candidate, error) {
	bookings, err := e.fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	var out []Candidate
	for slot := range e.rule.EnumerateSlots(date) {
		distance := 0
		if preferred != nil {
			distance = abs(slot.Time.Sub(*preferred))
			if distance > e.opts.WindowMinutes {
				continue
			}
		}

		seats := e.seatsFrom(bookings, slot.Time, e.opts.DiningDuration)
		if seats < partySize {
			continue
		}

		out = append(out, Candidate{Slot: slot, AvailableSeats: seats, Distance: distance})
	}

	return out, nil
}

// SlotLoad is the seating picture for one slot.
type SlotLoad struct {
	Slot           models.TimeSlot
	MaxCapacity    int
	AvailableSeats int
	Peak           bool
}

// DayOverview reports capacity and free seats for every slot on date from a single lookup.
func (e *Engine) DayOverview(ctx context.Context, date time.Time) ([]SlotLoad, error) {
	bookings, err := e.fetch(ctx, date)
	if err != nil {
		return nil, err
	}

	var out []SlotLoad
	for slot := range e.rule.EnumerateSlots(date) {
		out = append(out, SlotLoad{
			Slot:           slot,
			MaxCapacity:    e.rule.MaxCapacity(slot.Time),
			AvailableSeats: e.seatsFrom(bookings, slot.Time, e.opts.DiningDuration),
			Peak:           e.rule.IsPeak(slot.Time),
		})
	}
	return out, nil
}

func (e *Engine) fetch(ctx context.Context, date time.Time) ([]models.Booking, error) {
	if e.opts.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.QueryTimeout)
		defer cancel()
	}

	bookings, err := e.source.BookingsOnDate(ctx, models.DateOnly(date))
	if err != nil {
		e.logger.Error().Err(err).Str("date", date.Format(models.DateLayout)).Msg("booking lookup failed")
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return bookings, nil
}

func (e *Engine) seatsFrom(bookings []models.Booking, t models.TimeOfDay, duration int) int {
	query := models.DiningInterval{Start: t, Duration: duration}

	occupied := 0
	for i := range bookings {
		b := &bookings[i]
		if !b.IsConfirmed() {
			continue
		}
		iv, err := b.Interval()
		if err != nil {
			e.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("skipping booking with malformed time")
			continue
		}
		if iv.Overlaps(query) {
			occupied += b.PartySize
		}
	}

	return e.rule.MaxCapacity(t) - occupied
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
