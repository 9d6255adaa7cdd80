package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/models"
	"tablebook/internal/nlparse"
	"tablebook/internal/reservation"
	"tablebook/internal/session"
	"tablebook/internal/slots"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBookings is an in-memory booking store.
type memBookings struct {
	mu       sync.Mutex
	bookings []models.Booking
	failSave bool
}

func (m *memBookings) BookingsOnDate(_ context.Context, date time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.BookingDate.Format(models.DateLayout) == date.Format(models.DateLayout) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) BookingsByPhone(_ context.Context, phone string) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.Phone == phone {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memBookings) SaveBooking(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("disk full")
	}
	m.bookings = append(m.bookings, *b)
	return nil
}

func (m *memBookings) seed(bookings ...models.Booking) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, bookings...)
}

func (m *memBookings) all() []models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Booking(nil), m.bookings...)
}

func (m *memBookings) UpsertCustomer(context.Context, models.Customer) error { return nil }

func (m *memBookings) UpdateBookingStatus(_ context.Context, id string, status models.BookingStatus) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.bookings {
		if m.bookings[i].ID != id {
			continue
		}
		if !m.bookings[i].Status.CanTransition(status) {
			return nil, fmt.Errorf("%w: %s -> %s", database.ErrInvalidTransition, m.bookings[i].Status, status)
		}
		m.bookings[i].Status = status
		b := m.bookings[i]
		return &b, nil
	}
	return nil, database.ErrBookingNotFound
}

type testEnv struct {
	srv      *httptest.Server
	store    *memBookings
	sessions *session.MemoryStore
	bus      *events.EventBus
}

var fixedNow = time.Date(2026, 12, 4, 10, 0, 0, 0, time.UTC) // Friday

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store := &memBookings{}
	parser := nlparse.NewParser(time.UTC).WithClock(func() time.Time { return fixedNow })
	engine := availability.NewEngine(slots.DefaultRule(), store, availability.DefaultOptions(), &logger)
	bus := events.NewEventBus()
	flow := reservation.NewService(engine, parser, store, reservation.DefaultRules(), &logger).WithPublisher(bus)
	sessions := session.NewMemoryStore(time.Hour)

	s := NewServer(sessions, flow, engine, parser, store, bus, cfg, &logger)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &testEnv{srv: srv, store: store, sessions: sessions, bus: bus}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) step(t *testing.T, id, name string, body any) flowResponse {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/"+name, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[flowResponse](t, resp)
}

func (e *testEnv) newSession(t *testing.T) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	out := decode[flowResponse](t, resp)
	require.NotNil(t, out.Session)
	return out.Session.ID
}

func TestReservationFlow(t *testing.T) {
	env := newTestEnv(t, Config{})

	var confirmed atomic.Int32
	env.bus.Subscribe(events.ReservationConfirmed, func(events.Event) error {
		confirmed.Add(1)
		return nil
	})

	id := env.newSession(t)

	out := env.step(t, id, "route", stepRequest{Text: "I'd like to book a table"})
	assert.Equal(t, "routed", out.Outcome)
	assert.Equal(t, "reservation", string(out.Session.Role))

	out = env.step(t, id, "name", stepRequest{Text: "Ana"})
	assert.Equal(t, "collected", out.Outcome)

	out = env.step(t, id, "phone", stepRequest{Text: "five five five 123 4567"})
	assert.Equal(t, "collected", out.Outcome)
	assert.Equal(t, "5551234567", out.Session.CustomerPhone)

	out = env.step(t, id, "date", stepRequest{Text: "tomorrow"})
	assert.Equal(t, "Perfect! So that's Saturday, December 5th. What time would you prefer?", out.Message)

	out = env.step(t, id, "time", stepRequest{Text: "7:30 pm"})
	assert.Equal(t, "19:30", out.Session.Time)

	four := 4
	out = env.step(t, id, "party-size", stepRequest{PartySize: &four})
	assert.Equal(t, 4, out.Session.PartySize)

	out = env.step(t, id, "availability", nil)
	assert.Equal(t, "available", out.Outcome)
	require.NotNil(t, out.Session.Pending)

	resp := env.do(t, http.MethodGet, "/api/v1/sessions/"+id+"/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[flowResponse](t, resp)
	assert.Equal(t, "summary", summary.Outcome)

	out = env.step(t, id, "confirm", nil)
	assert.Equal(t, "confirmed", out.Outcome)
	assert.NotEmpty(t, out.BookingID)
	assert.Nil(t, out.Session.Pending)

	saved := env.store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, out.BookingID, saved[0].ID)
	assert.Equal(t, int32(1), confirmed.Load())

	resp = env.do(t, http.MethodGet, "/api/v1/bookings?phone=555-123-4567", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]models.Booking](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "19:30", list[0].BookingTime)
}

func TestReservationFlow_FullSlotOffersAlternatives(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.seed(models.Booking{
		ID:             "walk-in",
		PartySize:      50,
		BookingDate:    time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
		BookingTime:    "19:00",
		DiningDuration: 60,
		Status:         models.StatusConfirmed,
	})

	id := env.newSession(t)
	env.step(t, id, "date", stepRequest{Text: "tomorrow"})
	env.step(t, id, "time", stepRequest{Text: "7 pm"})
	env.step(t, id, "party-size", stepRequest{Text: "four people"})

	out := env.step(t, id, "availability", nil)
	assert.Equal(t, "alternatives", out.Outcome)
	assert.Contains(t, out.Message, "fully booked")
	assert.Equal(t, []string{"20:00"}, out.Session.Alternatives)
}

func TestReservationFlow_PersistenceFailure(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.mu.Lock()
	env.store.failSave = true
	env.store.mu.Unlock()

	id := env.newSession(t)
	env.step(t, id, "name", stepRequest{Text: "Ana"})
	env.step(t, id, "phone", stepRequest{Text: "5551234567"})
	env.step(t, id, "date", stepRequest{Text: "tomorrow"})
	env.step(t, id, "time", stepRequest{Text: "lunch"})
	env.step(t, id, "party-size", stepRequest{Text: "2"})
	env.step(t, id, "availability", nil)

	out := env.step(t, id, "confirm", nil)
	assert.Equal(t, "confirmed_unsaved", out.Outcome)
	assert.Contains(t, out.Error, reservation.ErrPersistence.Error())
	assert.NotNil(t, out.Session.Pending)
}

func TestFlowStep_Errors(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp := env.do(t, http.MethodPost, "/api/v1/sessions/missing/name", stepRequest{Text: "Ana"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := env.newSession(t)
	resp = env.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/name", map[string]string{"nickname": "A"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	out := env.step(t, id, "date", stepRequest{Text: "2026-12-01"})
	assert.Equal(t, "reprompt", out.Outcome)
	assert.Equal(t, nlparse.ErrPastDate.Error(), out.Error)

	out = env.step(t, id, "availability", nil)
	assert.Equal(t, "reprompt", out.Outcome)
	assert.Equal(t, "missing date, time, party size", out.Error)
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t, Config{})
	id := env.newSession(t)

	resp := env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decode[session.Session](t, resp)
	assert.Equal(t, id, sess.ID)

	resp = env.do(t, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.seed(models.Booking{
		ID:             "b1",
		PartySize:      50,
		BookingDate:    time.Date(2026, 12, 5, 0, 0, 0, 0, time.UTC),
		BookingTime:    "19:00",
		DiningDuration: 60,
		Status:         models.StatusConfirmed,
	})

	t.Run("Preferred", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-05&party_size=4&time=7pm", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[availabilityResponse](t, resp)
		assert.Equal(t, "19:00", out.Preferred)
		require.Len(t, out.Slots, 1)
		assert.Equal(t, "20:00", out.Slots[0].Time)
		assert.Equal(t, 60, out.Slots[0].Distance)
		assert.Equal(t, "I have availability at 8 PM.", out.Message)
	})

	t.Run("AllSlots", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-06&party_size=2", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		out := decode[availabilityResponse](t, resp)
		assert.Len(t, out.Slots, 49)
		assert.Equal(t, "11:00", out.Slots[0].Time)
		assert.Equal(t, "I have availability at 11 AM, 11:15 AM, or 11:30 AM.", out.Message)
	})

	t.Run("BadInput", func(t *testing.T) {
		for _, q := range []string{
			"date=someday&party_size=2",
			"date=2026-12-05&party_size=zero",
			"date=2026-12-05&party_size=2&time=whenever",
		} {
			resp := env.do(t, http.MethodGet, "/api/v1/availability?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		}
	})

	t.Run("PartySizeAboveMaximum", func(t *testing.T) {
		resp := env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-06&party_size=60", nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
		out := decode[errorResponse](t, resp)
		assert.Equal(t, "party_size: party size 60 above maximum 50", out.Error)
	})
}

func TestAvailabilityEndpoint_ConfiguredPartyLimits(t *testing.T) {
	env := newTestEnv(t, Config{MinPartySize: 2, MaxPartySize: 8})

	resp := env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-06&party_size=1", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "party_size: party size 1 below minimum 2", decode[errorResponse](t, resp).Error)

	resp = env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-06&party_size=9", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "party_size: party size 9 above maximum 8", decode[errorResponse](t, resp).Error)

	resp = env.do(t, http.MethodGet, "/api/v1/availability?date=2026-12-06&party_size=8", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUpdateBookingStatus(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.store.seed(models.Booking{ID: "b1", Status: models.StatusConfirmed, BookingTime: "19:00"})

	var changed atomic.Int32
	env.bus.Subscribe(events.BookingStatusChanged, func(events.Event) error {
		changed.Add(1)
		return nil
	})

	resp := env.do(t, http.MethodPatch, "/api/v1/bookings/b1/status", statusRequest{Status: "Cancelled"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b := decode[models.Booking](t, resp)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, int32(1), changed.Load())

	resp = env.do(t, http.MethodPatch, "/api/v1/bookings/b1/status", statusRequest{Status: "completed"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/v1/bookings/nope/status", statusRequest{Status: "completed"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/api/v1/bookings/b1/status", statusRequest{Status: "eaten"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, Config{APIKey: "s3cret"})

	resp := env.do(t, http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/api/v1/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", "s3cret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, Config{RatePerSecond: 0.001, RateBurst: 2})

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, env.do(t, http.MethodPost, "/api/v1/sessions", nil).StatusCode)
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
}

func TestRateLimiterForgetsIdleVisitors(t *testing.T) {
	rl := newRateLimiter(1, 1)
	now := time.Now()
	rl.now = func() time.Time { return now }

	rl.getLimiter("1.2.3.4")
	rl.getLimiter("5.6.7.8")
	assert.Len(t, rl.visitors, 2)

	now = now.Add(11 * time.Minute)
	rl.getLimiter("5.6.7.8")
	assert.Len(t, rl.visitors, 1)
}

func TestHealthHandler(t *testing.T) {
	healthy := true
	h := HealthHandler(map[string]Pinger{
		"db": func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("down")
		},
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	healthy = false
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "db not ready")
}
