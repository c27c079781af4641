package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
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

const envPrefix = "SWEETY"

// DefaultSecretKey is the development signing key. Production refuses it.
const DefaultSecretKey = "fallback-secret-key-change-in-production"

// Config holds the configuration for the chat service.
// Environment variables are parsed with the SWEETY_ prefix.
type Config struct {
	// Build target selects high-level environment: local, cloud
	BuildTarget string      `envconfig:"BUILD_TARGET" default:"local"`
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	HTTPPort int `envconfig:"HTTP_PORT" default:"5000"`

	// Identity store
	DBDriver    string `envconfig:"DB_DRIVER" default:"auto"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:""`
	DataDir     string `envconfig:"DATA_DIR" default:"instance"`

	// Transcript store: db keeps transcripts next to users, file writes one JSONL log per session.
	TranscriptBackend string `envconfig:"TRANSCRIPT_BACKEND" default:"auto"`
	TranscriptDir     string `envconfig:"TRANSCRIPT_DIR" default:""`

	// Session cookie
	SecretKey    string        `envconfig:"SECRET_KEY" default:"fallback-secret-key-change-in-production"`
	SessionTTL   time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	CookieSecure bool          `envconfig:"COOKIE_SECURE" default:"false"`

	// Model collaborator (OpenAI-compatible endpoint)
	ModelAPIKey      string        `envconfig:"MODEL_API_KEY" default:""`
	ModelBaseURL     string        `envconfig:"MODEL_BASE_URL" default:"https://api.groq.com/openai/v1"`
	ModelName        string        `envconfig:"MODEL_NAME" default:"llama-3.3-70b-versatile"`
	ModelTemperature float32       `envconfig:"MODEL_TEMPERATURE" default:"0.85"`
	ModelMaxTokens   int           `envconfig:"MODEL_MAX_TOKENS" default:"100"`
	ModelTimeout     time.Duration `envconfig:"MODEL_TIMEOUT" default:"10s"`
	PersonaFile      string        `envconfig:"PERSONA_FILE" default:""`

	// Chat windows
	ContextLimit   int `envconfig:"CONTEXT_LIMIT" default:"10"`
	HistoryLimit   int `envconfig:"HISTORY_LIMIT" default:"20"`
	MinPasswordLen int `envconfig:"MIN_PASSWORD_LEN" default:"6"`

	// Login alerts
	EmailUser        string        `envconfig:"EMAIL_USER" default:""`
	EmailPassword    string        `envconfig:"EMAIL_PASSWORD" default:""`
	SMTPHost         string        `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort         int           `envconfig:"SMTP_PORT" default:"587"`
	NotifyQueueSize  int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"64"`
	NotifyMaxElapsed time.Duration `envconfig:"NOTIFY_MAX_ELAPSED" default:"2m"`

	// Health
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates BuildTarget and derives DBDriver, SQLitePath and TranscriptBackend
// when left on "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDB string
	switch c.BuildTarget {
	case "local":
		defaultDB = "sqlite"
	case "cloud":
		defaultDB = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.DBDriver == "" || c.DBDriver == "auto" {
		c.DBDriver = defaultDB
	}
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			c.SQLitePath = filepath.Join(c.DataDir, "database.db")
		}
	case "postgres":
		if c.PostgresDSN == "" && !c.IsTesting() {
			return fmt.Errorf("%s_POSTGRES_DSN is required when DB_DRIVER=postgres", envPrefix)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER: %s", c.DBDriver)
	}

	if c.TranscriptBackend == "" || c.TranscriptBackend == "auto" {
		c.TranscriptBackend = "db"
	}
	switch c.TranscriptBackend {
	case "db":
	case "file":
		if c.TranscriptDir == "" {
			c.TranscriptDir = filepath.Join(c.DataDir, "chat_sessions")
		}
	default:
		return fmt.Errorf("unsupported TRANSCRIPT_BACKEND: %s", c.TranscriptBackend)
	}

	if c.ContextLimit <= 0 || c.HistoryLimit <= 0 {
		return fmt.Errorf("CONTEXT_LIMIT and HISTORY_LIMIT must be positive")
	}
	if c.MinPasswordLen <= 0 {
		return fmt.Errorf("MIN_PASSWORD_LEN must be positive")
	}
	if c.IsProduction() && (c.SecretKey == "" || c.SecretKey == DefaultSecretKey) {
		return fmt.Errorf("%s_SECRET_KEY must be set to a non-default value in production", envPrefix)
	}
	return nil
}

// New creates a new Config from an optional .env file and SWEETY_ environment variables.
// Example: SWEETY_HTTP_PORT, SWEETY_MODEL_API_KEY
func New() (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("environment", string(cfg.Environment)).
		Str("db_driver", cfg.DBDriver).
		Str("transcript_backend", cfg.TranscriptBackend).
		Int("port", cfg.HTTPPort).
		Str("model", cfg.ModelName).
		Bool("model_key_present", cfg.ModelAPIKey != "").
		Dur("model_timeout", cfg.ModelTimeout).
		Bool("postgres_dsn_present", cfg.PostgresDSN != "").
		Bool("login_alerts", cfg.LoginAlertsEnabled()).
		Msg("Configuration loaded")

	return &cfg, nil
}

// loadDotEnv populates unset variables from path. A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	cfg := &Config{
		Environment: EnvTesting,
		BuildTarget: "local",
		HTTPPort:    5000,
	}

	cfg.DBDriver = "sqlite"
	cfg.SQLitePath = ":memory:"
	cfg.TranscriptBackend = "db"

	cfg.SecretKey = "test-secret"
	cfg.SessionTTL = time.Hour

	cfg.ModelName = "llama-3.3-70b-versatile"
	cfg.ModelTemperature = 0.85
	cfg.ModelMaxTokens = 100
	cfg.ModelTimeout = time.Second

	cfg.ContextLimit = 10
	cfg.HistoryLimit = 20
	cfg.MinPasswordLen = 6

	cfg.NotifyQueueSize = 8
	cfg.NotifyMaxElapsed = time.Second

	cfg.HealthIntervalSeconds = 1
	cfg.HealthProbeTimeoutSeconds = 1
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

// LoginAlertsEnabled reports whether SMTP credentials are configured.
func (c *Config) LoginAlertsEnabled() bool {
	return c.EmailUser != "" && c.EmailPassword != ""
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// GetSMTPAddr returns host:port of the mail relay.
func (c *Config) GetSMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}
