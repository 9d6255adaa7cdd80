package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tablebook/internal/models"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// SQLiteStore keeps bookings and customers in a local SQLite file.
type SQLiteStore struct {
	*sql.DB
	path   string
	logger *zerolog.Logger
}

// NewSQLiteStore opens the database at path and creates tables if they don't exist.
func NewSQLiteStore(path string, logger *zerolog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &SQLiteStore{DB: db, path: path, logger: logger}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite store initialized")
	return s, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			booking_id TEXT PRIMARY KEY,
			phone TEXT NOT NULL,
			customer_name TEXT NOT NULL,
			party_size INTEGER NOT NULL,
			booking_date TEXT NOT NULL,
			booking_time TEXT NOT NULL,
			dining_duration INTEGER NOT NULL DEFAULT 90,
			status TEXT NOT NULL DEFAULT 'confirmed',
			special_requests TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			modified_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS customers (
			phone TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			reservation_count INTEGER NOT NULL DEFAULT 0,
			last_seen DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date_time ON bookings(booking_date, booking_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_phone ON bookings(phone)`,
	}

	for _, q := range queries {
		if _, err := s.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const bookingColumns = `booking_id, phone, customer_name, party_size, booking_date, booking_time,
	dining_duration, status, special_requests, created_at, modified_at`

func (s *SQLiteStore) BookingsOnDate(ctx context.Context, date time.Time) ([]models.Booking, error) {
	start, _ := dayBounds(date)
	return s.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_date = ? ORDER BY booking_time`,
		start.Format(models.DateLayout))
}

func (s *SQLiteStore) BookingsByPhone(ctx context.Context, phone string) ([]models.Booking, error) {
	return s.query(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE phone = ? ORDER BY booking_date DESC, booking_time DESC`,
		phone)
}

func (s *SQLiteStore) query(ctx context.Context, q string, args ...any) ([]models.Booking, error) {
	rows, err := s.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var date, status string
	if err := row.Scan(&b.ID, &b.Phone, &b.CustomerName, &b.PartySize, &date, &b.BookingTime,
		&b.DiningDuration, &status, &b.SpecialRequests, &b.CreatedAt, &b.ModifiedAt); err != nil {
		return nil, err
	}
	d, err := time.ParseInLocation(models.DateLayout, date, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("booking %s: bad booking_date '%s': %w", b.ID, date, err)
	}
	b.BookingDate = d
	b.Status = models.BookingStatus(status)
	return &b, nil
}

func (s *SQLiteStore) SaveBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.ModifiedAt = now

	_, err := s.ExecContext(ctx,
		`INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Phone, b.CustomerName, b.PartySize, b.BookingDate.UTC().Format(models.DateLayout),
		b.BookingTime, b.DiningDuration, string(b.Status), b.SpecialRequests, b.CreatedAt, b.ModifiedAt)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", b.ID, err)
	}
	s.logger.Debug().Str("booking_id", b.ID).Msg("Booking saved")
	return nil
}

func (s *SQLiteStore) UpsertCustomer(ctx context.Context, c models.Customer) error {
	now := time.Now().UTC()
	_, err := s.ExecContext(ctx, `
		INSERT INTO customers (phone, name, reservation_count, last_seen, created_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			name = excluded.name,
			reservation_count = customers.reservation_count + 1,
			last_seen = excluded.last_seen`,
		c.Phone, c.Name, now, now)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.Booking, error) {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := scanBooking(tx.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE booking_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}

	if !current.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, modified_at = ? WHERE booking_id = ? AND status = ?`,
		string(status), now, id, string(current.Status))
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrConcurrentModification
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	current.Status = status
	current.ModifiedAt = now
	return current, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.PingContext(ctx)
}
