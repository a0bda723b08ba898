package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Ledger and tracker backend names.
const (
	BackendMemory   = "memory"
	BackendSQL      = "sql"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendRedis    = "redis"
)

// Config holds every runtime setting of the redemption server.
type Config struct {
	// Server
	Port           string   `env:"PORT" envDefault:"8080"`
	GinMode        string   `env:"GIN_MODE"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Storage
	LedgerBackend  string `env:"LEDGER_BACKEND" envDefault:"sql"`
	TrackerBackend string `env:"TRACKER_BACKEND" envDefault:"memory"`
	SQLDSN         string `env:"SQL_DSN" envDefault:"file:data/redemption.db"`
	DatabaseURL    string `env:"DATABASE_URL"`
	RunMigrations  bool   `env:"RUN_MIGRATIONS" envDefault:"true"`
	MongoURI       string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDB        string `env:"MONGO_DB" envDefault:"redemption"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`

	// Admission control
	LockTimeout              time.Duration `env:"LOCK_TIMEOUT" envDefault:"3s"`
	ScoreThreshold           int           `env:"SCORE_THRESHOLD" envDefault:"10"`
	IPRateLimit              int           `env:"IP_RATE_LIMIT" envDefault:"10"`
	IPRateWindow             time.Duration `env:"IP_RATE_WINDOW" envDefault:"10m"`
	MaxWalletsPerFingerprint int           `env:"MAX_WALLETS_PER_FINGERPRINT" envDefault:"1"`

	// External collaborators
	RecaptchaSecret        string `env:"RECAPTCHA_SECRET"`
	RecaptchaVerifyURL     string `env:"RECAPTCHA_VERIFY_URL" envDefault:"https://www.google.com/recaptcha/api/siteverify"`
	WalletConnectProjectID string `env:"WALLET_CONNECT_PROJECT_ID"`

	// Admin
	AdminToken string `env:"ADMIN_TOKEN"`
	SeedFile   string `env:"SEED_FILE"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// Load parses the configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make admission control meaningless.
func (c *Config) Validate() error {
	c.LedgerBackend = strings.ToLower(strings.TrimSpace(c.LedgerBackend))
	c.TrackerBackend = strings.ToLower(strings.TrimSpace(c.TrackerBackend))

	switch c.LedgerBackend {
	case BackendMemory, BackendSQL, BackendPostgres, BackendMongo:
	default:
		return fmt.Errorf("config: unsupported LEDGER_BACKEND %q", c.LedgerBackend)
	}
	switch c.TrackerBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return fmt.Errorf("config: unsupported TRACKER_BACKEND %q", c.TrackerBackend)
	}
	if (c.LedgerBackend == BackendPostgres || c.TrackerBackend == BackendPostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required for the postgres backend")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("config: LOCK_TIMEOUT must be positive")
	}
	if c.IPRateLimit <= 0 || c.IPRateWindow <= 0 {
		return fmt.Errorf("config: IP_RATE_LIMIT and IP_RATE_WINDOW must be positive")
	}
	if c.MaxWalletsPerFingerprint <= 0 {
		return fmt.Errorf("config: MAX_WALLETS_PER_FINGERPRINT must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a fallback.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
