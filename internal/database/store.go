// Package database persists bookings and customers in MongoDB or SQLite.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
)

// Store is the persistence surface used by the service and the API.
type Store interface {
	BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error)
	BookingsByPhone(ctx context.Context, phone string) ([]models.Booking, error)
	SaveBooking(ctx context.Context, b *models.Booking) error
	UpsertCustomer(ctx context.Context, c models.Customer) error
	UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open connects the store selected by storage.driver.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverMongo:
		return NewMongoStore(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database, cfg.StorageTimeout(), logger)
	case config.DriverSQLite:
		return NewSQLiteStore(cfg.Storage.SQLite.Path, logger)
	default:
		return nil, fmt.Errorf("unknown storage driver '%s'", cfg.Storage.Driver)
	}
}

// dayBounds returns the UTC [start, end) range for the calendar date of t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
