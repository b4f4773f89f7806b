// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// AuthTokenSecret signs actor tokens (HS256). Must be at least 32 characters when set.
	AuthTokenSecret string `mapstructure:"AUTH_TOKEN_SECRET"`
	// AuthTokenTTL is the actor token lifetime (e.g. "12h").
	AuthTokenTTL string `mapstructure:"AUTH_TOKEN_TTL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12. Used by the seeder.
	BcryptCost int `mapstructure:"BCRYPT_COST"`

	// LedgerSource tags every ledger entry payload with the writing system (default "makerflow").
	LedgerSource string `mapstructure:"LEDGER_SOURCE"`
	// LedgerSummaryLimit caps stored summaries in runes (default 500).
	LedgerSummaryLimit int `mapstructure:"LEDGER_SUMMARY_LIMIT"`

	// Ledger stream (optional). When Kafka brokers are set, committed ledger entries are published to Kafka.
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// LedgerKafkaTopic is the Kafka topic for ledger events (default makerflow-ledger).
	LedgerKafkaTopic string `mapstructure:"LEDGER_KAFKA_TOPIC"`

	// Worker-only: Loki URL for the ledger worker to push events (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the ledger worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// OTLPEndpoint is the OTLP gRPC endpoint for traces and metrics; empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`

	// DefaultOrgSlug is the slug of the organization the seeder creates (default "default").
	DefaultOrgSlug string `mapstructure:"MAKERFLOW_DEFAULT_ORG_SLUG"`
	// AdminEmail is the seeded admin account (default admin@makerflow.local).
	AdminEmail string `mapstructure:"MAKERFLOW_ADMIN_EMAIL"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("AUTH_TOKEN_SECRET", "")
	v.SetDefault("AUTH_TOKEN_TTL", "12h")
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("LEDGER_SOURCE", "makerflow")
	v.SetDefault("LEDGER_SUMMARY_LIMIT", 500)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("LEDGER_KAFKA_TOPIC", "makerflow-ledger")
	v.SetDefault("LOKI_URL", "")
	v.SetDefault("KAFKA_GROUP_ID", "makerflow-ledger-worker")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("MAKERFLOW_DEFAULT_ORG_SLUG", "default")
	v.SetDefault("MAKERFLOW_ADMIN_EMAIL", "admin@makerflow.local")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.AuthTokenSecret != "" && len(cfg.AuthTokenSecret) < 32 {
		return nil, errors.New("config: AUTH_TOKEN_SECRET must be at least 32 characters")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.LedgerSummaryLimit <= 0 {
		return nil, errors.New("config: LEDGER_SUMMARY_LIMIT must be positive")
	}

	return &cfg, nil
}

// TokenTTL parses AuthTokenTTL as a time.Duration. Returns 12h if unset or invalid.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.AuthTokenTTL)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the ledger stream is enabled (non-empty list) and to create the producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
