package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Record store backends.
const (
	StoreFile     = "file"
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Detection service
	DetectorBaseURL string        `env:"DETECTOR_BASE_URL" envDefault:"http://localhost:5000"`
	DetectorTimeout time.Duration `env:"DETECTOR_TIMEOUT" envDefault:"5s"`

	// System log persistence
	RecordStore string `env:"RECORD_STORE" envDefault:"file"`
	DataDir     string `env:"DATA_DIR" envDefault:"./data"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./data/loginguard.db"`

	// Database (RECORD_STORE=postgres)
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"loginguard"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"loginguard"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"loginguard"`

	// JWT
	JWTSecret         string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAccountExpiry  time.Duration `env:"JWT_ACCOUNT_EXPIRY" envDefault:"24h"`
	JWTOperatorExpiry time.Duration `env:"JWT_OPERATOR_EXPIRY" envDefault:"8h"`
	OperatorKey       string        `env:"OPERATOR_KEY"`

	// Kafka telemetry mirror
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Auth pipeline
	ResetDelay      time.Duration `env:"RESET_DELAY" envDefault:"100ms"`
	SessionTick     time.Duration `env:"SESSION_TICK" envDefault:"1s"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"20"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
	SeedDemoAccount bool          `env:"SEED_DEMO_ACCOUNT" envDefault:"false"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// External services
	RandomOrgAPIKey string `env:"RANDOM_ORG_API_KEY"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration. Insecure secrets are rejected unless
// ALLOW_INSECURE_DEFAULTS=true (local dev only).
func (c *Config) Validate() error {
	switch c.RecordStore {
	case StoreFile, StoreMemory, StoreSQLite, StorePostgres:
	default:
		return fmt.Errorf("RECORD_STORE %q is not one of file, memory, sqlite, postgres", c.RecordStore)
	}
	if c.ResetDelay < 0 {
		return fmt.Errorf("RESET_DELAY must not be negative")
	}

	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
