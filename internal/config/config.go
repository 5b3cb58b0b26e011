package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"station-review/internal/reconcile"
	"station-review/pkg/logging"
)

// Snapshot sources
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

// Config holds runtime configuration for the review server and CLI
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Metadata MetadataConfig
	Review   ReviewConfig
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig configures the optional PostgreSQL snapshot source
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string
}

// MetadataConfig configures the metadata service client
type MetadataConfig struct {
	BaseURL          string
	Token            string
	Timeout          time.Duration
	IntervalPageSize int
}

// ReviewConfig configures review sessions
type ReviewConfig struct {
	// Source is where snapshots are read from: "http" or "postgres"
	Source           string
	PageSize         int
	UngovernedPolicy reconcile.UngovernedPolicy
}

// env reads typed values from the environment, keeping the first parse error
type env struct {
	err error
}

func (e *env) str(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (e *env) int(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return n
}

func (e *env) duration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("invalid %s: %w", key, err))
		return fallback
	}
	return d
}

func (e *env) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

// LoadConfig reads configuration from environment variables, loading a .env
// file first when one exists
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	var e env
	cfg := &Config{
		Server: ServerConfig{
			Host:         e.str("SERVER_HOST", "0.0.0.0"),
			Port:         e.int("SERVER_PORT", 8080),
			ReadTimeout:  e.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: e.duration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  e.duration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Host:            e.str("DB_HOST", "localhost"),
			Port:            e.int("DB_PORT", 5432),
			User:            e.str("DB_USER", "gnss_reader"),
			Password:        e.str("DB_PASSWORD", ""),
			Database:        e.str("DB_NAME", "gnss_data"),
			SSLMode:         e.str("DB_SSLMODE", "disable"),
			MaxOpenConns:    e.int("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    e.int("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: e.duration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level: e.str("LOG_LEVEL", "info"),
		},
		Metadata: MetadataConfig{
			BaseURL:          strings.TrimRight(e.str("METADATA_BASE_URL", "http://localhost:8000"), "/"),
			Token:            e.str("METADATA_TOKEN", ""),
			Timeout:          e.duration("METADATA_TIMEOUT", 30*time.Second),
			IntervalPageSize: e.int("METADATA_INTERVAL_PAGE_SIZE", 100),
		},
		Review: ReviewConfig{
			Source:   strings.ToLower(e.str("REVIEW_SOURCE", SourceHTTP)),
			PageSize: e.int("REVIEW_PAGE_SIZE", 15),
		},
	}

	policy, err := reconcile.ParseUngovernedPolicy(e.str("REVIEW_UNGOVERNED_POLICY", string(reconcile.MergeUngoverned)))
	if err != nil {
		e.fail(fmt.Errorf("invalid REVIEW_UNGOVERNED_POLICY: %w", err))
	}
	cfg.Review.UngovernedPolicy = policy

	if e.err != nil {
		return nil, e.err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for values the server cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Review.PageSize < 0 {
		errs = append(errs, errors.New("review page size must not be negative"))
	}

	switch c.Review.Source {
	case SourceHTTP:
		if u, err := url.Parse(c.Metadata.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("metadata base url %q is not absolute", c.Metadata.BaseURL))
		}
	case SourcePostgres:
		if c.Database.Host == "" || c.Database.Database == "" {
			errs = append(errs, errors.New("database host and name are required for the postgres source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown review source %q", c.Review.Source))
	}

	// Repair actions always go through the metadata service
	if c.Metadata.IntervalPageSize <= 0 {
		errs = append(errs, errors.New("metadata interval page size must be positive"))
	}

	return errors.Join(errs...)
}
