package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/metrics"
	"tablebook/internal/models"
	"tablebook/internal/nlparse"
	"tablebook/internal/reservation"

	"github.com/go-chi/chi/v5"
)

type slotResponse struct {
	Time           string `json:"time"`
	SpokenTime     string `json:"spoken_time"`
	AvailableSeats int    `json:"available_seats"`
	Distance       int    `json:"distance_minutes"`
}

type availabilityResponse struct {
	Date      string         `json:"date"`
	PartySize int            `json:"party_size"`
	Preferred string         `json:"preferred,omitempty"`
	Slots     []slotResponse `json:"slots"`
	Message   string         `json:"message"`
}

// availability handles GET /api/v1/availability?date=&party_size=&time=
// Without time every open slot is listed; with time the nearest ones are ranked.
func (s *Server) availability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("availability")

	q := r.URL.Query()

	date, err := s.parser.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date: "+err.Error())
		return
	}

	party, err := strconv.Atoi(q.Get("party_size"))
	if err != nil || party < 1 {
		writeError(w, http.StatusBadRequest, "party_size: must be a positive integer")
		return
	}
	if perr := s.checkPartySize(party); perr != nil {
		writeError(w, http.StatusBadRequest, "party_size: "+perr.Error())
		return
	}

	var preferred *models.TimeOfDay
	if raw := q.Get("time"); raw != "" {
		t, ok := nlparse.ParseTime(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "time: could not understand '"+raw+"'")
			return
		}
		preferred = &t
	}

	candidates, err := s.engine.FindAvailableSlots(r.Context(), date, party, preferred)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "availability lookup failed")
		return
	}

	limit := len(candidates)
	if preferred != nil {
		limit = s.cfg.MaxAlternatives
	}
	shortlist := availability.Rank(candidates, preferred, limit)

	resp := availabilityResponse{
		Date:      date.Format(models.DateLayout),
		PartySize: party,
		Slots:     make([]slotResponse, 0, len(shortlist.Candidates)),
	}
	if preferred != nil {
		resp.Preferred = preferred.String()
	}

	spoken := make([]string, 0, len(shortlist.Candidates))
	for _, c := range shortlist.Candidates {
		hhmm := c.Slot.Time.String()
		st := nlparse.FormatTimeForSpeech(hhmm)
		spoken = append(spoken, st)
		resp.Slots = append(resp.Slots, slotResponse{
			Time:           hhmm,
			SpokenTime:     st,
			AvailableSeats: c.AvailableSeats,
			Distance:       c.Distance,
		})
	}

	if shortlist.NoAlternatives() {
		resp.Message = "I'm sorry, we don't have any availability for that day. Would you like to try a different date?"
	} else {
		if len(spoken) > s.cfg.MaxAlternatives {
			spoken = spoken[:s.cfg.MaxAlternatives]
		}
		resp.Message = "I have availability at " + availability.JoinSpoken(spoken) + "."
	}

	writeJSON(w, http.StatusOK, resp)
}

// listBookings handles GET /api/v1/bookings?date= or ?phone=
func (s *Server) listBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	q := r.URL.Query()

	var (
		bookings []models.Booking
		err      error
	)
	switch {
	case q.Get("phone") != "":
		phone, perr := nlparse.NormalizePhone(q.Get("phone"))
		if perr != nil {
			writeError(w, http.StatusBadRequest, "phone: "+perr.Error())
			return
		}
		bookings, err = s.bookings.BookingsByPhone(r.Context(), phone)
	case q.Get("date") != "":
		date, derr := time.ParseInLocation(models.DateLayout, q.Get("date"), time.UTC)
		if derr != nil {
			writeError(w, http.StatusBadRequest, "date: expected YYYY-MM-DD")
			return
		}
		bookings, err = s.bookings.BookingsOnDate(r.Context(), date)
	default:
		writeError(w, http.StatusBadRequest, "date or phone is required")
		return
	}
	if err != nil {
		metrics.IncStoreError("list_bookings")
		s.logger.Error().Err(err).Msg("failed to list bookings")
		writeError(w, http.StatusServiceUnavailable, "booking store unavailable")
		return
	}

	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

type statusRequest struct {
	Status string `json:"status"`
}

// updateBookingStatus handles PATCH /api/v1/bookings/{id}/status
func (s *Server) updateBookingStatus(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_booking_status")

	id := chi.URLParam(r, "id")

	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	status := models.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "status: unknown value '"+req.Status+"'")
		return
	}

	b, err := s.bookings.UpdateBookingStatus(r.Context(), id, status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrBookingNotFound):
			writeError(w, http.StatusNotFound, "booking not found")
		case errors.Is(err, database.ErrInvalidTransition):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, database.ErrConcurrentModification):
			writeError(w, http.StatusConflict, "booking was modified concurrently, please retry")
		default:
			metrics.IncStoreError("update_booking_status")
			s.logger.Error().Err(err).Str("booking_id", id).Msg("failed to update booking status")
			writeError(w, http.StatusServiceUnavailable, "booking store unavailable")
		}
		return
	}

	metrics.IncBookingStatusChange(string(status))
	s.logger.Info().Str("booking_id", id).Str("status", string(status)).Msg("booking status changed")
	if s.publisher != nil {
		if err := s.publisher.PublishJSON(events.BookingStatusChanged, b); err != nil {
			s.logger.Warn().Err(err).Str("booking_id", id).Msg("status event handler failed")
		}
	}

	writeJSON(w, http.StatusOK, b)
}

func (s *Server) checkPartySize(n int) *reservation.PartySizeError {
	switch {
	case n < s.cfg.MinPartySize:
		return &reservation.PartySizeError{Size: n, Limit: s.cfg.MinPartySize}
	case n > s.cfg.MaxPartySize:
		return &reservation.PartySizeError{Size: n, Limit: s.cfg.MaxPartySize, TooLarge: true}
	}
	return nil
}
