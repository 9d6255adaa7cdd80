// Package dialog implements the conversational roles a call moves between.
package dialog

import (
	"slices"
	"strings"
)

// Role is the persona currently handling the caller.
type Role string

const (
	RoleGreeter     Role = "greeter"
	RoleOrder       Role = "order"
	RoleReservation Role = "reservation"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleGreeter, RoleOrder, RoleReservation:
		return true
	}
	return false
}

// FSM holds the allowed role hand-offs.
type FSM struct {
	transitions map[Role][]Role
}

// NewFSM creates an FSM where the greeter routes to either desk and each desk
// can hand the caller back or across.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[Role][]Role{
			RoleGreeter:     {RoleOrder, RoleReservation},
			RoleOrder:       {RoleGreeter, RoleReservation},
			RoleReservation: {RoleGreeter, RoleOrder},
		},
	}
}

// CanTransition checks if a hand-off is allowed.
func (f *FSM) CanTransition(from, to Role) bool {
	return slices.Contains(f.transitions[from], to)
}

// Transition returns the next role, or from unchanged with ok=false when the
// hand-off is not allowed.
func (f *FSM) Transition(from, to Role) (Role, bool) {
	if f.CanTransition(from, to) {
		return to, true
	}
	return from, false
}

var intentKeywords = []struct {
	role     Role
	keywords []string
}{
	{RoleReservation, []string{"reservation", "reserve", "booking", "book", "table"}},
	{RoleOrder, []string{"order", "food", "menu", "hungry", "buy"}},
}

// RouteIntent picks the desk an utterance asks for. Reservation keywords win
// when both appear, so "book a table to order food" reaches reservations.
func RouteIntent(utterance string) (Role, bool) {
	s := strings.ToLower(utterance)
	for _, ik := range intentKeywords {
		for _, kw := range ik.keywords {
			if strings.Contains(s, kw) {
				return ik.role, true
			}
		}
	}
	return "", false
}

// Greeting is the opening line spoken by each role.
var Greeting = map[Role]string{
	RoleGreeter:     "Welcome! Would you like to place an order or make a table reservation?",
	RoleOrder:       "I can help with your order. What would you like?",
	RoleReservation: "Welcome to our reservation service! May I have your name for the reservation?",
}
