package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is the key-value file read next to the application.
const DefaultEnvFile = ".env.local"

// Config is constructed once at process start and passed to both engines.
type Config struct {
	Database Database
	Logging  Logging
	Seed     Seed

	// MetricsTextfile, when set, receives the run metrics in text format.
	MetricsTextfile string `env:"METRICS_TEXTFILE"`
}

// Database holds connection parameters for the target server.
type Database struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	Name     string `env:"DB_NAME" envDefault:"alma_platform"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	// Maintenance is the database used to drop and create Name.
	Maintenance string `env:"DB_MAINTENANCE_NAME" envDefault:"postgres"`
}

// Logging selects level and format of the shared logger.
type Logging struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"auto"`
}

// Seed configures credential fixtures.
type Seed struct {
	DefaultPIN string `env:"SEED_DEFAULT_PIN" envDefault:"1234"`
	PINCost    int    `env:"PIN_HASH_COST" envDefault:"12"`
}

// Load reads the key-value file at path (missing file is fine) into the
// process environment without overriding variables already set, then parses
// the environment into a Config.
func Load(path string) (Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv parses configuration from environment variables only.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate ensures the values needed to reach the server are present.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Database.Host) == "":
		return errors.New("DB_HOST is required")
	case c.Database.Port <= 0 || c.Database.Port > 65535:
		return fmt.Errorf("DB_PORT %d is out of range", c.Database.Port)
	case strings.TrimSpace(c.Database.Name) == "":
		return errors.New("DB_NAME is required")
	case strings.TrimSpace(c.Database.User) == "":
		return errors.New("DB_USER is required")
	case c.Database.Name == c.Database.Maintenance:
		return fmt.Errorf("DB_NAME must differ from DB_MAINTENANCE_NAME (%s)", c.Database.Maintenance)
	case c.Seed.PINCost < 4 || c.Seed.PINCost > 31:
		return fmt.Errorf("PIN_HASH_COST %d is out of range", c.Seed.PINCost)
	}
	return nil
}

// DSN returns a PostgreSQL URL for the given database on the configured server.
func (d Database) DSN(database string) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(d.Host, fmt.Sprint(d.Port)),
		Path:   "/" + database,
	}
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	q.Set("application_name", "almadb")
	u.RawQuery = q.Encode()
	return u.String()
}

// Address is host:port for banners and diagnostics.
func (d Database) Address() string {
	return net.JoinHostPort(d.Host, fmt.Sprint(d.Port))
}
