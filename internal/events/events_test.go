package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_PublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []ReservationPayload
	bus.Subscribe(ReservationConfirmed, func(e Event) error {
		var p ReservationPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			return err
		}
		assert.False(t, e.CreatedAt.IsZero())
		got = append(got, p)
		return nil
	})
	bus.Subscribe(ReservationUnsaved, func(Event) error {
		t.Fatal("unexpected event type")
		return nil
	})

	err := bus.PublishJSON(ReservationConfirmed, ReservationPayload{BookingID: "b1", PartySize: 4, Time: "19:00"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b1", got[0].BookingID)
	assert.Equal(t, 4, got[0].PartySize)
}

func TestEventBus_HandlerError(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	bus.Subscribe(BookingStatusChanged, func(Event) error { calls++; return errors.New("boom") })
	bus.Subscribe(BookingStatusChanged, func(Event) error { calls++; return nil })

	err := bus.Publish(Event{Type: BookingStatusChanged})
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 2, calls)

	assert.NoError(t, bus.Publish(Event{Type: "unknown"}))
}
