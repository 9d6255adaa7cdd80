// Package api exposes the reservation flow to a conversational host over JSON/HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/models"
	"tablebook/internal/nlparse"
	"tablebook/internal/reservation"
	"tablebook/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// BookingStore is the booking lookup and lifecycle surface used by staff endpoints.
type BookingStore interface {
	BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error)
	BookingsByPhone(ctx context.Context, phone string) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error)
}

type Config struct {
	APIKey          string
	RatePerSecond   float64
	RateBurst       int
	MaxAlternatives int
	MinPartySize    int
	MaxPartySize    int
	Timeout         time.Duration
}

type Server struct {
	sessions  session.Store
	flow      *reservation.Service
	engine    *availability.Engine
	parser    *nlparse.Parser
	bookings  BookingStore
	publisher reservation.Publisher
	cfg       Config
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewServer(
	sessions session.Store,
	flow *reservation.Service,
	engine *availability.Engine,
	parser *nlparse.Parser,
	bookings BookingStore,
	publisher reservation.Publisher,
	cfg Config,
	logger *zerolog.Logger,
) *Server {
	if cfg.MaxAlternatives <= 0 {
		cfg.MaxAlternatives = availability.DefaultMaxAlternatives
	}
	if cfg.MinPartySize <= 0 || cfg.MaxPartySize < cfg.MinPartySize {
		rules := reservation.DefaultRules()
		cfg.MinPartySize, cfg.MaxPartySize = rules.MinPartySize, rules.MaxPartySize
	}
	return &Server{
		sessions:  sessions,
		flow:      flow,
		engine:    engine,
		parser:    parser,
		bookings:  bookings,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	if s.cfg.Timeout > 0 {
		r.Use(middleware.Timeout(s.cfg.Timeout))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.APIKey))
		if s.cfg.RatePerSecond > 0 {
			r.Use(newRateLimiter(s.cfg.RatePerSecond, s.cfg.RateBurst).Limit)
		}

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Get("/summary", s.flowStep("summary", s.summaryStep))
				r.Post("/route", s.flowStep("route", s.routeStep))
				r.Post("/name", s.flowStep("name", s.nameStep))
				r.Post("/phone", s.flowStep("phone", s.phoneStep))
				r.Post("/date", s.flowStep("date", s.dateStep))
				r.Post("/time", s.flowStep("time", s.timeStep))
				r.Post("/party-size", s.flowStep("party_size", s.partySizeStep))
				r.Post("/availability", s.flowStep("availability", s.checkAvailabilityStep))
				r.Post("/alternatives", s.flowStep("alternatives", s.alternativesStep))
				r.Post("/confirm", s.flowStep("confirm", s.confirmStep))
				r.Post("/restart", s.flowStep("restart", s.restartStep))
			})
		})

		r.Get("/availability", s.availability)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", s.listBookings)
			r.Patch("/{id}/status", s.updateBookingStatus)
		})
	})

	return r
}
