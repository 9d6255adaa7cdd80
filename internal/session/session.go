// Package session holds per-call conversation state and the stores that keep it.
package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"tablebook/internal/dialog"
	"tablebook/internal/models"
)

// ErrNotFound is returned when no live session exists for an ID.
var ErrNotFound = errors.New("session not found")

// Store persists sessions between host requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}

// Session is the explicit per-call context handed to every flow operation.
type Session struct {
	ID            string      `json:"id"`
	Role          dialog.Role `json:"role"`
	CustomerName  string      `json:"customer_name,omitempty"`
	CustomerPhone string      `json:"customer_phone,omitempty"`

	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	Time      string `json:"time,omitempty"` // HH:MM
	PartySize int    `json:"party_size,omitempty"`

	Pending              *models.PendingReservation `json:"pending,omitempty"`
	Alternatives         []string                   `json:"alternatives,omitempty"` // HH:MM
	AlternativesSearched bool                       `json:"alternatives_searched,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates a session starting at the greeter.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Role:      dialog.RoleGreeter,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch records activity on the session.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// IsExpired checks if the session has been idle longer than timeout.
func (s *Session) IsExpired(timeout time.Duration, now time.Time) bool {
	return now.Sub(s.UpdatedAt) > timeout
}

// Missing lists the reservation fields still to collect, in asking order.
func (s *Session) Missing() []string {
	var missing []string
	if s.Date == "" {
		missing = append(missing, "date")
	}
	if s.Time == "" {
		missing = append(missing, "time")
	}
	if s.PartySize == 0 {
		missing = append(missing, "party size")
	}
	return missing
}

// ClearAlternatives forgets any previous alternative search.
func (s *Session) ClearAlternatives() {
	s.Alternatives = nil
	s.AlternativesSearched = false
}

// Restart discards the reservation draft but keeps who the caller is.
func (s *Session) Restart() {
	s.Date = ""
	s.Time = ""
	s.PartySize = 0
	s.Pending = nil
	s.ClearAlternatives()
}

// Clone returns a deep copy safe to hand to another goroutine.
func (s *Session) Clone() *Session {
	cp := *s
	if s.Pending != nil {
		p := *s.Pending
		cp.Pending = &p
	}
	cp.Alternatives = slices.Clone(s.Alternatives)
	return &cp
}
