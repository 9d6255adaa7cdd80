package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/events"
	"tablebook/internal/nlparse"
	"tablebook/internal/reservation"

	"github.com/rs/zerolog"
)

// app holds the components shared by every command.
type app struct {
	cfg    *config.Config
	logger *zerolog.Logger
	store  database.Store
	engine *availability.Engine
	parser *nlparse.Parser
	flow   *reservation.Service
	bus    *events.EventBus
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Log.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// loadApp reads the config, opens storage and builds the flow.
func loadApp(ctx context.Context, configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := newLogger(cfg, logOut)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rule, err := cfg.CapacityRule()
	if err != nil {
		return nil, err
	}

	store, err := database.Open(ctx, cfg, &logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}

	parser := nlparse.NewParser(loc)
	engine := availability.NewEngine(rule, store, cfg.EngineOptions(), &logger)
	bus := events.NewEventBus()
	flow := reservation.NewService(engine, parser, store, cfg.Rules(), &logger).WithPublisher(bus)

	return &app{
		cfg:    cfg,
		logger: &logger,
		store:  store,
		engine: engine,
		parser: parser,
		flow:   flow,
		bus:    bus,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close store")
	}
}

// subscribeAuditLog logs every reservation event.
func (a *app) subscribeAuditLog() {
	a.bus.Subscribe(events.ReservationConfirmed, func(ev events.Event) error {
		a.logger.Info().RawJSON("payload", ev.Payload).Msg("reservation confirmed")
		return nil
	})
	a.bus.Subscribe(events.ReservationUnsaved, func(ev events.Event) error {
		a.logger.Error().RawJSON("payload", ev.Payload).Msg("reservation accepted but not persisted")
		return nil
	})
	a.bus.Subscribe(events.AvailabilityUnreachable, func(ev events.Event) error {
		a.logger.Warn().RawJSON("payload", ev.Payload).Msg("availability lookup unreachable")
		return nil
	})
	a.bus.Subscribe(events.BookingStatusChanged, func(ev events.Event) error {
		a.logger.Info().RawJSON("payload", ev.Payload).Msg("booking status changed")
		return nil
	})
}
