// Package nlparse turns loosely phrased caller input into canonical dates, times,
// party sizes and phone numbers, and renders dates and times for speech.
package nlparse

import (
	"errors"
	"strings"
	"time"

	"tablebook/internal/models"
)

var (
	ErrDateParse = errors.New("unrecognized date")
	ErrPastDate  = errors.New("date is in the past")
)

var weekdays = []struct {
	name string
	day  time.Weekday
}{
	{"monday", time.Monday},
	{"tuesday", time.Tuesday},
	{"wednesday", time.Wednesday},
	{"thursday", time.Thursday},
	{"friday", time.Friday},
	{"saturday", time.Saturday},
	{"sunday", time.Sunday},
}

var dateLayouts = []string{
	"2006-1-2", // YYYY-MM-DD
	"1/2/2006", // MM/DD/YYYY
}

// Parser resolves relative dates against a clock in the restaurant's time zone.
type Parser struct {
	now func() time.Time
	loc *time.Location
}

// NewParser creates a parser anchored to the wall clock in loc.
func NewParser(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{now: time.Now, loc: loc}
}

// WithClock returns a copy of the parser that reads "now" from clock.
func (p *Parser) WithClock(clock func() time.Time) *Parser {
	cp := *p
	cp.now = clock
	return &cp
}

// Location returns the parser's time zone.
func (p *Parser) Location() *time.Location {
	return p.loc
}

// Today returns the current date at midnight in the parser's location.
func (p *Parser) Today() time.Time {
	return models.DateOnly(p.now().In(p.loc))
}

// ParseDate resolves input to a calendar date that is today or later.
func (p *Parser) ParseDate(input string) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	today := p.Today()

	date, ok := p.resolve(s, today)
	if !ok {
		return time.Time{}, ErrDateParse
	}
	if date.Before(today) {
		return time.Time{}, ErrPastDate
	}
	return date, nil
}

func (p *Parser) resolve(s string, today time.Time) (time.Time, bool) {
	switch s {
	case "today", "tonight":
		return today, true
	case "tomorrow":
		return today.AddDate(0, 0, 1), true
	}

	if strings.Contains(s, "next week") {
		return today.AddDate(0, 0, 7), true
	}

	for _, wd := range weekdays {
		if strings.Contains(s, wd.name) {
			ahead := (int(wd.day) - int(today.Weekday()) + 7) % 7
			if ahead == 0 {
				ahead = 7
			}
			return today.AddDate(0, 0, ahead), true
		}
	}

	for _, layout := range dateLayouts {
		if d, err := time.ParseInLocation(layout, s, p.loc); err == nil {
			return d, true
		}
	}

	return time.Time{}, false
}
