package reservation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoPending      = errors.New("no pending reservation")
	ErrNoAvailability = errors.New("no availability near the requested time")
	ErrSlotTaken      = errors.New("slot filled before confirmation")
	ErrPersistence    = errors.New("reservation not persisted")
	ErrTimeFallback   = errors.New("time not understood")
	ErrOutsideHours   = errors.New("time outside opening hours")
	ErrUnknownIntent  = errors.New("no matching desk for request")
)

// PartySizeError reports a party size outside the accepted range.
type PartySizeError struct {
	Size     int
	Limit    int
	TooLarge bool
}

func (e *PartySizeError) Error() string {
	if e.TooLarge {
		return fmt.Sprintf("party size %d above maximum %d", e.Size, e.Limit)
	}
	return fmt.Sprintf("party size %d below minimum %d", e.Size, e.Limit)
}

// IncompleteError lists the fields an operation still needs.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "missing " + strings.Join(e.Missing, ", ")
}
