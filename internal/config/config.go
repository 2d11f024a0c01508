// Package config loads and validates client config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverMemory   = "memory"
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
)

// Config holds client configuration loaded from the environment.
type Config struct {
	// APIBaseURL is the backend REST base URL (e.g. http://localhost:5000).
	APIBaseURL string `mapstructure:"API_BASE_URL"`
	// Env is the application environment (local, dev, prod). Selects the log handler.
	Env string `mapstructure:"APP_ENV"`

	// StoreDriver selects the persisted store: memory, sqlite or postgres.
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	// StorePath is the sqlite file used when StoreDriver is sqlite.
	StorePath string `mapstructure:"STORE_PATH"`
	// DatabaseURL is the Postgres DSN; required when StoreDriver is postgres.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// StorePassphrase, when set, seals every persisted value.
	StorePassphrase string `mapstructure:"STORE_PASSPHRASE"`

	// HTTPTimeout is the per-request backend timeout (e.g. "15s"); "0" disables it.
	HTTPTimeout string `mapstructure:"HTTP_TIMEOUT"`

	// NotificationPollInterval is the notification polling cadence (e.g. "5s").
	NotificationPollInterval string `mapstructure:"NOTIFICATION_POLL_INTERVAL"`
	// NotificationDedupWindow is how long an identical title+message is suppressed.
	NotificationDedupWindow string `mapstructure:"NOTIFICATION_DEDUP_WINDOW"`
	// NotificationSuccessTTL is the auto-dismiss delay for success notifications.
	NotificationSuccessTTL string `mapstructure:"NOTIFICATION_SUCCESS_TTL"`
	// NotificationPendingTTL bounds how long unconfirmed local mutations are re-applied over polls.
	NotificationPendingTTL string `mapstructure:"NOTIFICATION_PENDING_TTL"`
	// SecurityAlertMarker is the reserved title marker for security alerts.
	SecurityAlertMarker string `mapstructure:"SECURITY_ALERT_MARKER"`

	// ValidationInterval is the validator throttle window and periodic tick (e.g. "10m").
	ValidationInterval string `mapstructure:"VALIDATION_INTERVAL"`
	// ValidationInitialDelay delays the first validation after start.
	ValidationInitialDelay string `mapstructure:"VALIDATION_INITIAL_DELAY"`
	// RequiredRole is the role the agent's protected pages require; empty means any role.
	RequiredRole string `mapstructure:"REQUIRED_ROLE"`
	// RoutePolicyFile is an optional Rego file replacing the default role/status gate.
	RoutePolicyFile string `mapstructure:"ROUTE_POLICY_FILE"`

	// AgentEmail and AgentPassword are used by the agent when no stored session exists.
	AgentEmail    string `mapstructure:"AGENT_EMAIL"`
	AgentPassword string `mapstructure:"AGENT_PASSWORD"`

	// HealthAddr is the gRPC health listener address; empty disables it.
	HealthAddr string `mapstructure:"HEALTH_ADDR"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty yields no-op providers.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTLPInsecure forces an insecure OTLP connection.
	OTLPInsecure bool `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	// TelemetryKafkaBrokers is a comma-separated list of Kafka brokers; empty disables the producer.
	TelemetryKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// TelemetryKafkaTopic is the Kafka topic for client telemetry events.
	TelemetryKafkaTopic string `mapstructure:"TELEMETRY_KAFKA_TOPIC"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored. Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("API_BASE_URL", "http://localhost:5000")
	v.SetDefault("APP_ENV", "local")
	v.SetDefault("STORE_DRIVER", StoreDriverSQLite)
	v.SetDefault("STORE_PATH", "medconnect.db")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("STORE_PASSPHRASE", "")
	v.SetDefault("HTTP_TIMEOUT", "15s")
	v.SetDefault("NOTIFICATION_POLL_INTERVAL", "5s")
	v.SetDefault("NOTIFICATION_DEDUP_WINDOW", "5m")
	v.SetDefault("NOTIFICATION_SUCCESS_TTL", "5s")
	v.SetDefault("NOTIFICATION_PENDING_TTL", "1m")
	v.SetDefault("SECURITY_ALERT_MARKER", "SECURITY ALERT")
	v.SetDefault("VALIDATION_INTERVAL", "10m")
	v.SetDefault("VALIDATION_INITIAL_DELAY", "1s")
	v.SetDefault("REQUIRED_ROLE", "")
	v.SetDefault("ROUTE_POLICY_FILE", "")
	v.SetDefault("AGENT_EMAIL", "")
	v.SetDefault("AGENT_PASSWORD", "")
	v.SetDefault("HEALTH_ADDR", ":8090")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("TELEMETRY_KAFKA_TOPIC", "medconnect-client-telemetry")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	if cfg.APIBaseURL == "" {
		return nil, errors.New("config: API_BASE_URL must be set")
	}
	u, err := url.Parse(cfg.APIBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("config: API_BASE_URL %q must be an absolute http(s) URL", cfg.APIBaseURL)
	}

	switch cfg.StoreDriver {
	case StoreDriverMemory, StoreDriverSQLite, StoreDriverPostgres:
	default:
		return nil, fmt.Errorf("config: STORE_DRIVER must be one of memory, sqlite, postgres; got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StoreDriverPostgres && cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set when STORE_DRIVER=postgres")
	}
	if cfg.StoreDriver == StoreDriverSQLite && strings.TrimSpace(cfg.StorePath) == "" {
		return nil, errors.New("config: STORE_PATH must be set when STORE_DRIVER=sqlite")
	}

	switch cfg.RequiredRole {
	case "", "patient", "doctor", "admin":
	default:
		return nil, fmt.Errorf("config: REQUIRED_ROLE must be patient, doctor or admin; got %q", cfg.RequiredRole)
	}

	return &cfg, nil
}

// HTTPClientTimeout parses HTTPTimeout. Returns 0 for "0", 15s if unset or invalid.
func (c *Config) HTTPClientTimeout() time.Duration {
	if strings.TrimSpace(c.HTTPTimeout) == "0" {
		return 0
	}
	return parsePositive(c.HTTPTimeout, 15*time.Second)
}

// PollInterval parses NotificationPollInterval. Returns 5s if unset or invalid.
func (c *Config) PollInterval() time.Duration {
	return parsePositive(c.NotificationPollInterval, 5*time.Second)
}

// DedupWindow parses NotificationDedupWindow. Returns 5m if unset or invalid.
func (c *Config) DedupWindow() time.Duration {
	return parsePositive(c.NotificationDedupWindow, 5*time.Minute)
}

// SuccessTTL parses NotificationSuccessTTL. Returns 5s if unset or invalid.
func (c *Config) SuccessTTL() time.Duration {
	return parsePositive(c.NotificationSuccessTTL, 5*time.Second)
}

// PendingTTL parses NotificationPendingTTL. Returns 1m if unset or invalid.
func (c *Config) PendingTTL() time.Duration {
	return parsePositive(c.NotificationPendingTTL, time.Minute)
}

// ValidationEvery parses ValidationInterval. Returns 10m if unset or invalid.
func (c *Config) ValidationEvery() time.Duration {
	return parsePositive(c.ValidationInterval, 10*time.Minute)
}

// ValidationDelay parses ValidationInitialDelay. Returns 1s if unset or invalid.
func (c *Config) ValidationDelay() time.Duration {
	return parsePositive(c.ValidationInitialDelay, time.Second)
}

// TelemetryKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
func (c *Config) TelemetryKafkaBrokersList() []string {
	if c == nil || c.TelemetryKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.TelemetryKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parsePositive(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
