package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"tablebook/internal/models"
	"tablebook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2026, 12, 4, 0, 0, 0, 0, time.UTC)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

// staticSource serves a fixed booking list.
type staticSource []models.Booking

func (s staticSource) BookingsOnDate(_ context.Context, _ time.Time) ([]models.Booking, error) {
	return s, nil
}

func booking(at string, party, duration int, status models.BookingStatus) models.Booking {
	return models.Booking{
		ID:             at,
		PartySize:      party,
		BookingDate:    testDate,
		BookingTime:    at,
		DiningDuration: duration,
		Status:         status,
	}
}

func tod(s string) models.TimeOfDay {
	t, err := models.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestEngine(src BookingSource) *Engine {
	logger := zerolog.Nop()
	return NewEngine(slots.DefaultRule(), src, DefaultOptions(), &logger)
}

func TestAvailableSeats(t *testing.T) {
	src := staticSource{
		booking("19:00", 10, 90, models.StatusConfirmed),
		booking("19:00", 8, 90, models.StatusCancelled),
		booking("12:00", 6, 90, models.StatusNoShow),
	}
	engine := newTestEngine(src)
	ctx := context.Background()

	tests := []struct {
		at   string
		want int
	}{
		{"19:00", 40},
		{"20:15", 40},
		{"20:30", 50},
		{"17:45", 40},
		{"17:30", 50},
		{"12:00", 50},
	}

	for _, tt := range tests {
		t.Run(tt.at, func(t *testing.T) {
			got, err := engine.AvailableSeats(ctx, testDate, tod(tt.at), 90)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAvailableSeats_Empty(t *testing.T) {
	engine := newTestEngine(staticSource{})
	got, err := engine.AvailableSeats(context.Background(), testDate, tod("19:00"), 0)
	require.NoError(t, err)
	assert.Equal(t, 50, got)
}

func TestAvailableSeats_Overbooked(t *testing.T) {
	engine := newTestEngine(staticSource{
		booking("19:00", 30, 90, models.StatusConfirmed),
		booking("19:30", 30, 90, models.StatusConfirmed),
	})

	got, err := engine.AvailableSeats(context.Background(), testDate, tod("19:15"), 90)
	require.NoError(t, err)
	assert.Equal(t, -10, got)
}

func TestAvailableSeats_NeverIncreasesAsBookingsAdded(t *testing.T) {
	ctx := context.Background()
	additions := []models.Booking{
		booking("19:00", 4, 90, models.StatusConfirmed),
		booking("18:00", 2, 90, models.StatusConfirmed),
		booking("19:45", 6, 90, models.StatusConfirmed),
		booking("17:30", 3, 90, models.StatusConfirmed), // ends 19:00, touches only
		booking("20:15", 8, 60, models.StatusConfirmed),
		booking("19:30", 20, 90, models.StatusConfirmed),
		booking("18:45", 15, 90, models.StatusConfirmed),
	}

	for _, at := range []string{"18:30", "19:00", "19:30", "20:00"} {
		var src staticSource
		prev, err := newTestEngine(src).AvailableSeats(ctx, testDate, tod(at), 90)
		require.NoError(t, err)

		for _, b := range additions {
			src = append(src, b)
			seats, err := newTestEngine(src).AvailableSeats(ctx, testDate, tod(at), 90)
			require.NoError(t, err)
			assert.LessOrEqual(t, seats, prev, "at %s after adding %s", at, b.BookingTime)
			prev = seats
		}
	}
}

func TestAvailableSeats_PeakCeiling(t *testing.T) {
	rule := slots.DefaultRule()
	rule.PeakCeiling = 0.8
	logger := zerolog.Nop()
	engine := NewEngine(rule, staticSource{booking("18:00", 10, 90, models.StatusConfirmed)}, DefaultOptions(), &logger)

	got, err := engine.AvailableSeats(context.Background(), testDate, tod("19:00"), 90)
	require.NoError(t, err)
	assert.Equal(t, 30, got)

	got, err = engine.AvailableSeats(context.Background(), testDate, tod("18:00"), 90)
	require.NoError(t, err)
	assert.Equal(t, 40, got)
}

func TestAvailableSeats_StoreError(t *testing.T) {
	src := new(mockSource)
	src.On("BookingsOnDate", mock.Anything, testDate).Return(nil, errors.New("connection refused")).Once()

	_, err := newTestEngine(src).AvailableSeats(context.Background(), testDate, tod("19:00"), 90)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	src.AssertExpectations(t)
}

func TestAvailableSeats_QueriesEveryCall(t *testing.T) {
	src := new(mockSource)
	src.On("BookingsOnDate", mock.Anything, testDate).Return([]models.Booking{}, nil).Twice()
	engine := newTestEngine(src)

	for i := 0; i < 2; i++ {
		_, err := engine.AvailableSeats(context.Background(), testDate, tod("19:00"), 90)
		require.NoError(t, err)
	}
	src.AssertNumberOfCalls(t, "BookingsOnDate", 2)
}

func TestFindAvailableSlots(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPreferenceReturnsWholeDay", func(t *testing.T) {
		got, err := newTestEngine(staticSource{}).FindAvailableSlots(ctx, testDate, 4, nil)
		require.NoError(t, err)
		assert.Len(t, got, 49)
		for _, c := range got {
			assert.Zero(t, c.Distance)
			assert.Equal(t, 50, c.AvailableSeats)
		}
	})

	t.Run("WindowIsInclusive", func(t *testing.T) {
		pref := tod("19:00")
		got, err := newTestEngine(staticSource{}).FindAvailableSlots(ctx, testDate, 4, &pref)
		require.NoError(t, err)
		require.Len(t, got, 9)
		assert.Equal(t, "18:00", got[0].Slot.Time.String())
		assert.Equal(t, 60, got[0].Distance)
		assert.Equal(t, "20:00", got[8].Slot.Time.String())
		assert.Equal(t, 60, got[8].Distance)
	})

	t.Run("FiltersBySeats", func(t *testing.T) {
		pref := tod("19:00")
		engine := newTestEngine(staticSource{booking("19:00", 50, 30, models.StatusConfirmed)})
		got, err := engine.FindAvailableSlots(ctx, testDate, 4, &pref)
		require.NoError(t, err)

		var times []string
		for _, c := range got {
			times = append(times, c.Slot.Time.String())
		}
		assert.Equal(t, []string{"19:30", "19:45", "20:00"}, times)
	})

	t.Run("FullyBookedWindow", func(t *testing.T) {
		pref := tod("19:00")
		engine := newTestEngine(staticSource{booking("19:00", 50, 90, models.StatusConfirmed)})
		got, err := engine.FindAvailableSlots(ctx, testDate, 4, &pref)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("StoreError", func(t *testing.T) {
		src := new(mockSource)
		src.On("BookingsOnDate", mock.Anything, testDate).Return(nil, errors.New("timeout")).Once()
		_, err := newTestEngine(src).FindAvailableSlots(ctx, testDate, 4, nil)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestDayOverview(t *testing.T) {
	rule := slots.DefaultRule()
	rule.PeakCeiling = 0.8
	logger := zerolog.Nop()
	engine := NewEngine(rule, staticSource{
		booking("19:00", 10, 90, models.StatusConfirmed),
		booking("12:00", 20, 90, models.StatusCancelled),
	}, DefaultOptions(), &logger)

	got, err := engine.DayOverview(context.Background(), testDate)
	require.NoError(t, err)
	require.Len(t, got, 49)

	byTime := make(map[string]SlotLoad, len(got))
	for _, l := range got {
		byTime[l.Slot.Time.String()] = l
	}

	assert.Equal(t, SlotLoad{Slot: models.TimeSlot{Date: testDate, Time: tod("11:00")}, MaxCapacity: 50, AvailableSeats: 50}, byTime["11:00"])
	assert.Equal(t, 50, byTime["12:00"].AvailableSeats)
	assert.Equal(t, 40, byTime["18:00"].AvailableSeats)
	assert.True(t, byTime["19:00"].Peak)
	assert.Equal(t, 40, byTime["19:00"].MaxCapacity)
	assert.Equal(t, 30, byTime["19:00"].AvailableSeats)
	assert.Equal(t, 50, byTime["21:00"].MaxCapacity)
	assert.Equal(t, 30, byTime["20:15"].AvailableSeats)
	assert.Equal(t, 40, byTime["20:30"].AvailableSeats)
}
