package models

import (
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
)

// DefaultDiningDuration is used when a booking carries no explicit duration.
const DefaultDiningDuration = 90

// Valid reports whether the status is one of the known values.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether a booking may move from s to next.
// Bookings are created confirmed and only leave that state once.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	return s == StatusConfirmed && next != StatusConfirmed && next.Valid()
}

// Booking represents a persisted table reservation.
type Booking struct {
	ID              string        `json:"id" bson:"booking_id"`
	Phone           string        `json:"phone" bson:"phone"`
	CustomerName    string        `json:"customer_name" bson:"customer_name"`
	PartySize       int           `json:"party_size" bson:"party_size"`
	BookingDate     time.Time     `json:"booking_date" bson:"booking_date"`
	BookingTime     string        `json:"booking_time" bson:"booking_time"` // "19:30"
	DiningDuration  int           `json:"dining_duration" bson:"dining_duration"`
	Status          BookingStatus `json:"status" bson:"status"`
	SpecialRequests string        `json:"special_requests,omitempty" bson:"special_requests,omitempty"`
	CreatedAt       time.Time     `json:"created_at" bson:"created_at"`
	ModifiedAt      time.Time     `json:"modified_at" bson:"modified_at"`
}

// IsConfirmed reports whether the booking counts toward occupancy.
func (b *Booking) IsConfirmed() bool {
	return b.Status == StatusConfirmed
}

// Interval derives the dining interval occupied by the booking.
func (b *Booking) Interval() (DiningInterval, error) {
	start, err := ParseTimeOfDay(b.BookingTime)
	if err != nil {
		return DiningInterval{}, err
	}
	duration := b.DiningDuration
	if duration <= 0 {
		duration = DefaultDiningDuration
	}
	return DiningInterval{Start: start, Duration: duration}, nil
}

// Validate checks the booking against the party-size bounds and basic invariants.
func (b *Booking) Validate(minParty, maxParty int) error {
	if b.PartySize < minParty || b.PartySize > maxParty {
		return fmt.Errorf("party_size: %d outside %d..%d", b.PartySize, minParty, maxParty)
	}
	if _, err := ParseTimeOfDay(b.BookingTime); err != nil {
		return fmt.Errorf("booking_time: %w", err)
	}
	if b.DiningDuration <= 0 {
		return fmt.Errorf("dining_duration: must be positive, got %d", b.DiningDuration)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("status: unknown value '%s'", b.Status)
	}
	if b.BookingDate.IsZero() {
		return fmt.Errorf("booking_date: required")
	}
	return nil
}

// PendingReservation is a checked but not yet confirmed reservation held by a session.
type PendingReservation struct {
	Date          time.Time `json:"date"`
	Time          string    `json:"time"`
	PartySize     int       `json:"party_size"`
	FormattedDate string    `json:"formatted_date"`
	FormattedTime string    `json:"formatted_time"`
	SeatsAtCheck  int       `json:"seats_at_check"`
}

// Customer is a caller known by phone number.
type Customer struct {
	Phone            string    `json:"phone" bson:"phone"`
	Name             string    `json:"name" bson:"name"`
	ReservationCount int       `json:"reservation_count" bson:"reservation_count"`
	LastSeen         time.Time `json:"last_seen" bson:"last_seen"`
	CreatedAt        time.Time `json:"created_at" bson:"created_at"`
}
