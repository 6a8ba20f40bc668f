package postgres

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds connection and pool settings for the server backend.
// Grounded on the teacher's pkg/database.Config/LoadConfigFromEnv
// (production defaults: 25 max open, 10 max idle).
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// URL, when set, is used verbatim as the connection string (e.g.
	// from --postgres-url) instead of the Host/Port/... fields below.
	URL string

	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// FromURL builds a Config that connects using url verbatim, with the
// teacher's production pool defaults (25 max open, 10 max idle).
func FromURL(url string) Config {
	return Config{
		URL:             url,
		MaxConns:        25,
		MinConns:        10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	}
}

// LoadConfigFromEnv loads Config from MNEMO_DB_* environment variables
// with the teacher's validated-defaults pattern.
func LoadConfigFromEnv() (Config, error) {
	port, err := strconv.Atoi(getEnvOrDefault("MNEMO_DB_PORT", "5432"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MNEMO_DB_PORT: %w", err)
	}
	maxConns, _ := strconv.Atoi(getEnvOrDefault("MNEMO_DB_MAX_CONNS", "25"))
	minConns, _ := strconv.Atoi(getEnvOrDefault("MNEMO_DB_MIN_CONNS", "10"))

	maxLifetime, err := time.ParseDuration(getEnvOrDefault("MNEMO_DB_CONN_MAX_LIFETIME", "1h"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MNEMO_DB_CONN_MAX_LIFETIME: %w", err)
	}
	maxIdleTime, err := time.ParseDuration(getEnvOrDefault("MNEMO_DB_CONN_MAX_IDLE_TIME", "15m"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid MNEMO_DB_CONN_MAX_IDLE_TIME: %w", err)
	}

	cfg := Config{
		Host:            getEnvOrDefault("MNEMO_DB_HOST", "localhost"),
		Port:            port,
		User:            getEnvOrDefault("MNEMO_DB_USER", "mnemo"),
		Password:        os.Getenv("MNEMO_DB_PASSWORD"),
		Database:        getEnvOrDefault("MNEMO_DB_NAME", "mnemo"),
		SSLMode:         getEnvOrDefault("MNEMO_DB_SSLMODE", "disable"),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		ConnMaxLifetime: maxLifetime,
		ConnMaxIdleTime: maxIdleTime,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks Config for internal consistency.
func (c Config) Validate() error {
	if c.URL == "" && c.Password == "" {
		return fmt.Errorf("MNEMO_DB_PASSWORD is required")
	}
	if c.MinConns > c.MaxConns {
		return fmt.Errorf("MNEMO_DB_MIN_CONNS (%d) cannot exceed MNEMO_DB_MAX_CONNS (%d)", c.MinConns, c.MaxConns)
	}
	if c.MaxConns < 1 {
		return fmt.Errorf("MNEMO_DB_MAX_CONNS must be at least 1")
	}
	return nil
}

// DSN renders the libpq connection string pgx's stdlib driver consumes.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
