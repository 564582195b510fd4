package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	AuthDev = "dev"
	AuthJWT = "jwt"
)

// Config holds the configuration for the bucket service and the demo
// items server. Environment variables carry the VIBE30_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"11600"`

	// Storage: "auto" picks postgres when a DSN is set, sqlite otherwise.
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"./data/vibe30.db"`

	// Authentication
	AuthMode  string `envconfig:"AUTH_MODE" default:"dev"`
	JWTSecret string `envconfig:"JWT_SECRET" default:""`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"vibe30"`

	// Domain events; no brokers means events go to the log.
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS" default:""`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"vibe30.bucket-events"`
	EventBuffer  int      `envconfig:"EVENT_BUFFER" default:"256"`

	// Durable outbox: the server parks events in Postgres and the outbox
	// worker delivers them. Requires DB_DRIVER=postgres.
	EventOutbox          bool `envconfig:"EVENT_OUTBOX" default:"false"`
	OutboxBatchSize      int  `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	OutboxIntervalMillis int  `envconfig:"OUTBOX_INTERVAL_MS" default:"2000"`

	// Health and lifecycle
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"5"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
	BootstrapTimeoutSeconds   int `envconfig:"BOOTSTRAP_TIMEOUT_SECONDS" default:"5"`
	ShutdownTimeoutSeconds    int `envconfig:"SHUTDOWN_TIMEOUT_SECONDS" default:"10"`

	// Demo items server
	ItemsHTTPPort   int    `envconfig:"ITEMS_HTTP_PORT" default:"5000"`
	ItemsSQLitePath string `envconfig:"ITEMS_SQLITE_PATH" default:"./data/items.sqlite"`
}

// ResolveDefaults derives DBDriver when "auto" and validates the driver and
// auth settings.
func (c *Config) ResolveDefaults() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = DriverSQLite
		if c.PostgresDSN != "" {
			c.DBDriver = DriverPostgres
		}
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for DB_DRIVER=sqlite")
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	switch c.AuthMode {
	case AuthDev:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE=dev is not allowed in production")
		}
	case AuthJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unsupported AUTH_MODE: %s", c.AuthMode)
	}

	if c.EventOutbox && c.DBDriver != DriverPostgres {
		return fmt.Errorf("EVENT_OUTBOX requires DB_DRIVER=postgres")
	}

	// an empty VIBE30_KAFKA_BROKERS parses as one empty element
	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
	return nil
}

// New creates a Config from VIBE30_ environment variables.
// Example: VIBE30_HTTP_PORT, VIBE30_POSTGRES_DSN
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("VIBE30", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Str("sqlite_path", cfg.SQLitePath).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Str("auth_mode", cfg.AuthMode).
		Int("port", cfg.HTTPPort).
		Strs("kafka_brokers", cfg.KafkaBrokers).
		Str("kafka_topic", cfg.KafkaTopic).
		Bool("event_outbox", cfg.EventOutbox).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting returns a resolved config backed by SQLite at path.
func NewForTesting(sqlitePath string) *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		LogLevel:                  "debug",
		HTTPPort:                  0,
		DBDriver:                  DriverSQLite,
		SQLitePath:                sqlitePath,
		AuthMode:                  AuthDev,
		JWTIssuer:                 "vibe30",
		KafkaTopic:                "vibe30.bucket-events",
		EventBuffer:               64,
		OutboxBatchSize:           10,
		OutboxIntervalMillis:      50,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		BootstrapTimeoutSeconds:   5,
		ShutdownTimeoutSeconds:    1,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetItemsHTTPAddr returns the demo items server address
func (c *Config) GetItemsHTTPAddr() string {
	return fmt.Sprintf(":%d", c.ItemsHTTPPort)
}

func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.HealthIntervalSeconds) * time.Second
}

func (c *Config) HealthProbeTimeout() time.Duration {
	return time.Duration(c.HealthProbeTimeoutSeconds) * time.Second
}

func (c *Config) BootstrapTimeout() time.Duration {
	return time.Duration(c.BootstrapTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

func (c *Config) OutboxInterval() time.Duration {
	return time.Duration(c.OutboxIntervalMillis) * time.Millisecond
}
