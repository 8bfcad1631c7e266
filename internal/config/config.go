// Package config loads and validates the gallery configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the GALLERY_ prefix (e.g. GALLERY_DATABASE_HOST
// overrides database.host in the YAML), so the same binary runs with a config.yaml
// in local development and with pure environment variables in containers.
//
// The JWT signing secret is not part of this struct; it is read from GALLERY_JWT_SECRET
// by the auth package.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/package-gallery/gallery/internal/audit"
)

// Config holds all application configuration
type Config struct {
	Server          ServerConfig          `mapstructure:"server"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Auth            AuthConfig            `mapstructure:"auth"`
	Logging         LoggingConfig         `mapstructure:"logging"`
	Telemetry       TelemetryConfig       `mapstructure:"telemetry"`
	Audit           AuditConfig           `mapstructure:"audit"`
	AccountDeletion AccountDeletionConfig `mapstructure:"account_deletion"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
	// RunMigrations applies pending migrations when the server starts
	RunMigrations bool `mapstructure:"run_migrations"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys APIKeyConfig `mapstructure:"api_keys"`
	// TokenTTL is the lifetime of JWTs minted by the CLI
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// APIKeyConfig holds API key authentication configuration
type APIKeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// AuditConfig holds audit logging configuration
type AuditConfig struct {
	// Sinks receive a copy of every audit record (SIEM webhook, JSON lines file)
	Sinks []audit.SinkConfig `mapstructure:"sinks"`
}

// AccountDeletionConfig holds the defaults of account deletion and its background processor
type AccountDeletionConfig struct {
	// OrphanPolicy is the default for admin requests that omit one: deny, unlist or keep
	OrphanPolicy        string          `mapstructure:"orphan_policy"`
	CommitAsTransaction bool            `mapstructure:"commit_as_transaction"`
	Processor           ProcessorConfig `mapstructure:"processor"`
}

// ProcessorConfig configures the job that works through self-service deletion requests
type ProcessorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	OrphanPolicy    string `mapstructure:"orphan_policy"`
	// AdminUsername is the account recorded as having executed processor deletions
	AdminUsername string `mapstructure:"admin_username"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// AutomaticEnv() alone is not consulted by Unmarshal for nested keys.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",
		"database.run_migrations",

		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.shutdown_timeout",

		// Auth
		"auth.api_keys.enabled",
		"auth.api_keys.prefix",
		"auth.token_ttl",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.enabled",
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",

		// Account deletion
		"account_deletion.orphan_policy",
		"account_deletion.commit_as_transaction",
		"account_deletion.processor.enabled",
		"account_deletion.processor.interval_minutes",
		"account_deletion.processor.orphan_policy",
		"account_deletion.processor.admin_username",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/package-gallery")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("GALLERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	cfg.Database.Password = expandEnv(cfg.Database.Password)
	for i := range cfg.Audit.Sinks {
		if wh := cfg.Audit.Sinks[i].Webhook; wh != nil {
			for k, val := range wh.Headers {
				wh.Headers[k] = expandEnv(val)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "15s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "gallery")
	v.SetDefault("database.user", "gallery")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)
	v.SetDefault("database.run_migrations", true)

	// Auth defaults
	v.SetDefault("auth.api_keys.enabled", true)
	v.SetDefault("auth.api_keys.prefix", "gal")
	v.SetDefault("auth.token_ttl", "1h")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.service_name", "package-gallery")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)

	// Account deletion defaults
	v.SetDefault("account_deletion.orphan_policy", "deny")
	v.SetDefault("account_deletion.commit_as_transaction", true)
	v.SetDefault("account_deletion.processor.enabled", false)
	v.SetDefault("account_deletion.processor.interval_minutes", 60)
	v.SetDefault("account_deletion.processor.orphan_policy", "unlist")
	v.SetDefault("account_deletion.processor.admin_username", "")
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

var validOrphanPolicies = map[string]bool{"deny": true, "unlist": true, "keep": true}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	if c.Auth.APIKeys.Enabled && c.Auth.APIKeys.Prefix == "" {
		return fmt.Errorf("auth.api_keys.prefix is required when API keys are enabled")
	}

	if c.Telemetry.Metrics.Enabled {
		p := c.Telemetry.Metrics.PrometheusPort
		if p < 1 || p > 65535 {
			return fmt.Errorf("invalid telemetry.metrics.prometheus_port: %d", p)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	ad := c.AccountDeletion
	if !validOrphanPolicies[strings.ToLower(ad.OrphanPolicy)] {
		return fmt.Errorf("invalid account_deletion.orphan_policy: %q (must be deny, unlist, or keep)", ad.OrphanPolicy)
	}
	if ad.Processor.Enabled {
		if ad.Processor.IntervalMinutes < 1 {
			return fmt.Errorf("account_deletion.processor.interval_minutes must be positive")
		}
		if !validOrphanPolicies[strings.ToLower(ad.Processor.OrphanPolicy)] {
			return fmt.Errorf("invalid account_deletion.processor.orphan_policy: %q (must be deny, unlist, or keep)", ad.Processor.OrphanPolicy)
		}
		if ad.Processor.AdminUsername == "" {
			return fmt.Errorf("account_deletion.processor.admin_username is required when the processor is enabled")
		}
	}

	for i, s := range c.Audit.Sinks {
		if !s.Enabled {
			continue
		}
		switch s.Type {
		case audit.SinkWebhook:
			if s.Webhook == nil || s.Webhook.URL == "" {
				return fmt.Errorf("audit.sinks[%d]: webhook.url is required", i)
			}
		case audit.SinkFile:
			if s.File == nil || s.File.Path == "" {
				return fmt.Errorf("audit.sinks[%d]: file.path is required", i)
			}
		default:
			return fmt.Errorf("audit.sinks[%d]: unknown type %q (must be webhook or file)", i, s.Type)
		}
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
