package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"tablebook/internal/availability"
	"tablebook/internal/models"
	"tablebook/internal/reservation"
	"tablebook/internal/slots"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

type PeakConfig struct {
	Start   string  `yaml:"start"`   // "19:00"
	End     string  `yaml:"end"`     // "21:00"
	Ceiling float64 `yaml:"ceiling"` // 0 < c <= 1
}

type ReservationConfig struct {
	TotalCapacity            int        `yaml:"total_capacity"`
	OpeningTime              string     `yaml:"opening_time"`
	ClosingTime              string     `yaml:"closing_time"`
	SlotIntervalMinutes      int        `yaml:"slot_interval_minutes"`
	DefaultDiningDuration    int        `yaml:"default_dining_duration"`
	Peak                     PeakConfig `yaml:"peak"`
	OffPeakCeiling           float64    `yaml:"off_peak_ceiling"`
	MinPartySize             int        `yaml:"min_party_size"`
	MaxPartySize             int        `yaml:"max_party_size"`
	AlternativeWindowMinutes int        `yaml:"alternative_window_minutes"`
	MaxAlternatives          int        `yaml:"max_alternatives"`
	TimeFallback             bool       `yaml:"time_fallback"`
	QueryTimeoutSeconds      int        `yaml:"query_timeout_seconds"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type Config struct {
	Restaurant struct {
		Name     string `yaml:"name"`
		Timezone string `yaml:"timezone"`
	} `yaml:"restaurant"`

	Reservation ReservationConfig `yaml:"reservation"`

	Storage struct {
		Driver string `yaml:"driver"`
		Mongo  struct {
			URI            string `yaml:"uri"`
			Database       string `yaml:"database"`
			TimeoutSeconds int    `yaml:"timeout_seconds"`
		} `yaml:"mongo"`
		SQLite struct {
			Path string `yaml:"path"`
		} `yaml:"sqlite"`
	} `yaml:"storage"`

	Backup BackupConfig `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Session struct {
		TimeoutMinutes          int `yaml:"timeout_minutes"`
		CleanupIntervalSeconds  int `yaml:"cleanup_interval_seconds"`
		RecoveryIntervalSeconds int `yaml:"recovery_interval_seconds"`
	} `yaml:"session"`

	HTTP struct {
		Port           int     `yaml:"port"`
		APIKey         string  `yaml:"api_key"`
		RatePerSecond  float64 `yaml:"rate_per_second"`
		RateBurst      int     `yaml:"rate_burst"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
	} `yaml:"http"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"log"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders.
// Variables from .env.local, when present, are loaded first.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(".env.local"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env.local: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	return Parse(data)
}

// Parse decodes config bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	if cfg.Storage.Driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	r := &c.Reservation
	if r.TotalCapacity == 0 {
		r.TotalCapacity = 50
	}
	if r.OpeningTime == "" {
		r.OpeningTime = "11:00"
	}
	if r.ClosingTime == "" {
		r.ClosingTime = "23:00"
	}
	if r.SlotIntervalMinutes == 0 {
		r.SlotIntervalMinutes = 15
	}
	if r.DefaultDiningDuration == 0 {
		r.DefaultDiningDuration = models.DefaultDiningDuration
	}
	if r.Peak.Start == "" {
		r.Peak.Start = "19:00"
	}
	if r.Peak.End == "" {
		r.Peak.End = "21:00"
	}
	if r.Peak.Ceiling == 0 {
		r.Peak.Ceiling = 1.0
	}
	if r.OffPeakCeiling == 0 {
		r.OffPeakCeiling = 1.0
	}
	if r.MinPartySize == 0 {
		r.MinPartySize = 1
	}
	if r.MaxPartySize == 0 {
		r.MaxPartySize = 50
	}
	if r.AlternativeWindowMinutes == 0 {
		r.AlternativeWindowMinutes = 60
	}
	if r.MaxAlternatives == 0 {
		r.MaxAlternatives = availability.DefaultMaxAlternatives
	}
	if r.QueryTimeoutSeconds == 0 {
		r.QueryTimeoutSeconds = 5
	}

	if c.Restaurant.Timezone == "" {
		c.Restaurant.Timezone = "Local"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.SQLite.Path == "" {
		c.Storage.SQLite.Path = "data/tablebook.db"
	}
	if c.Storage.Mongo.Database == "" {
		c.Storage.Mongo.Database = "restaurant"
	}
	if c.Storage.Mongo.TimeoutSeconds == 0 {
		c.Storage.Mongo.TimeoutSeconds = 10
	}
	if c.Session.TimeoutMinutes == 0 {
		c.Session.TimeoutMinutes = 30
	}
	if c.Session.CleanupIntervalSeconds == 0 {
		c.Session.CleanupIntervalSeconds = 60
	}
	if c.Session.RecoveryIntervalSeconds == 0 {
		c.Session.RecoveryIntervalSeconds = 60
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RatePerSecond == 0 {
		c.HTTP.RatePerSecond = 5
	}
	if c.HTTP.RateBurst == 0 {
		c.HTTP.RateBurst = 10
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 15
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8090
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Backup.IntervalHours == 0 {
		c.Backup.IntervalHours = 24
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	r := c.Reservation

	for field, value := range map[string]string{
		"reservation.opening_time": r.OpeningTime,
		"reservation.closing_time": r.ClosingTime,
		"reservation.peak.start":   r.Peak.Start,
		"reservation.peak.end":     r.Peak.End,
	} {
		if _, err := models.ParseTimeOfDay(value); err != nil {
			return fmt.Errorf("%s: invalid format '%s', expected HH:MM", field, value)
		}
	}

	rule, err := c.CapacityRule()
	if err != nil {
		return err
	}
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("reservation.%w", err)
	}

	if r.DefaultDiningDuration <= 0 {
		return fmt.Errorf("reservation.default_dining_duration: must be positive, got %d", r.DefaultDiningDuration)
	}
	if r.MinPartySize < 1 || r.MaxPartySize < r.MinPartySize {
		return fmt.Errorf("reservation: party size range %d..%d is invalid", r.MinPartySize, r.MaxPartySize)
	}
	if r.AlternativeWindowMinutes < 0 {
		return fmt.Errorf("reservation.alternative_window_minutes: must not be negative")
	}
	if r.MaxAlternatives < 0 {
		return fmt.Errorf("reservation.max_alternatives: must not be negative")
	}

	if _, err := c.Location(); err != nil {
		return fmt.Errorf("restaurant.timezone: %w", err)
	}

	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverMongo:
		if c.Storage.Mongo.URI == "" {
			return fmt.Errorf("storage.mongo.uri: required when storage.driver is mongo")
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver '%s'", c.Storage.Driver)
	}

	if c.Backup.Enabled && c.Storage.Driver != DriverSQLite {
		return fmt.Errorf("backup.enabled: file backups require the sqlite driver")
	}

	return nil
}

// Location resolves the restaurant time zone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Restaurant.Timezone)
}

// CapacityRule builds the slot grid and seating ceilings.
func (c *Config) CapacityRule() (slots.CapacityRule, error) {
	r := c.Reservation
	var rule slots.CapacityRule
	var err error

	parse := func(s string) models.TimeOfDay {
		if err != nil {
			return 0
		}
		var t models.TimeOfDay
		t, err = models.ParseTimeOfDay(s)
		return t
	}

	rule = slots.CapacityRule{
		TotalCapacity:  r.TotalCapacity,
		Open:           parse(r.OpeningTime),
		Close:          parse(r.ClosingTime),
		Granularity:    r.SlotIntervalMinutes,
		PeakStart:      parse(r.Peak.Start),
		PeakEnd:        parse(r.Peak.End),
		PeakCeiling:    r.Peak.Ceiling,
		OffPeakCeiling: r.OffPeakCeiling,
	}
	if err != nil {
		return slots.CapacityRule{}, fmt.Errorf("reservation: %w", err)
	}
	return rule, nil
}

// EngineOptions returns the availability engine tuning.
func (c *Config) EngineOptions() availability.Options {
	return availability.Options{
		DiningDuration: c.Reservation.DefaultDiningDuration,
		WindowMinutes:  c.Reservation.AlternativeWindowMinutes,
		QueryTimeout:   time.Duration(c.Reservation.QueryTimeoutSeconds) * time.Second,
	}
}

// Rules returns the reservation flow limits.
func (c *Config) Rules() reservation.Rules {
	return reservation.Rules{
		MinPartySize:    c.Reservation.MinPartySize,
		MaxPartySize:    c.Reservation.MaxPartySize,
		MaxAlternatives: c.Reservation.MaxAlternatives,
		TimeFallback:    c.Reservation.TimeFallback,
	}
}

func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// SessionRecoveryInterval is how long a failed Redis session store is bypassed before it is retried.
func (c *Config) SessionRecoveryInterval() time.Duration {
	return time.Duration(c.Session.RecoveryIntervalSeconds) * time.Second
}

func (c *Config) StorageTimeout() time.Duration {
	return time.Duration(c.Storage.Mongo.TimeoutSeconds) * time.Second
}
