// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Credentials CredentialsConfig `yaml:"credentials"`
	Endpoint    EndpointConfig    `yaml:"endpoint"`
	Retry       RetryConfig       `yaml:"retry"`
	Throttle    ThrottleConfig    `yaml:"throttle"`
	App         AppConfig         `yaml:"app"`
	Catalog     CatalogConfig     `yaml:"catalog"`
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// CredentialsConfig holds the seller credentials used to sign calls.
// They are only required when a call is made, so validation does not
// insist on them.
type CredentialsConfig struct {
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	MerchantID      string `yaml:"merchant_id"`
	AuthToken       string `yaml:"auth_token,omitempty"` // delegated access
}

// Complete reports whether every required credential is set.
func (c CredentialsConfig) Complete() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != "" && c.MerchantID != ""
}

// EndpointConfig selects the service endpoint.
// Host overrides the host of Region when both are set.
type EndpointConfig struct {
	Region        string        `yaml:"region"`
	Host          string        `yaml:"host"`
	Scheme        string        `yaml:"scheme"`
	MarketplaceID string        `yaml:"marketplace_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

// RetryConfig configures repeated attempts of retryable failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
}

// ThrottleConfig enables pacing calls by the quotas declared in the catalog.
type ThrottleConfig struct {
	Enabled bool `yaml:"enabled"`
}

// AppConfig identifies the calling application in the User-Agent.
type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// CatalogConfig locates the action catalog.
type CatalogConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"` // reload on file change
}

// ServerConfig configures the relay HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// TokenHash is the bcrypt hash of the relay access token. Empty
	// leaves the relay open.
	TokenHash string `yaml:"token_hash"`
}

// DatabaseConfig configures call history storage.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "memory"
	DSN    string `yaml:"dsn"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// Address returns the relay listen address.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds configuration from YAML bytes. ${VAR} references are
// expanded, then MWS_* environment variables override file values.
func Parse(data []byte) (*Config, error) {
	data = expandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)

	if err := setDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// envRef matches ${VAR}. Bare $ is left alone so bcrypt hashes survive.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(m []byte) []byte {
		return []byte(os.Getenv(string(m[2 : len(m)-1])))
	})
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	MWS_ACCESS_KEY_ID       - Access key id
//	MWS_SECRET_ACCESS_KEY   - Secret access key
//	MWS_MERCHANT_ID         - Merchant (seller) id
//	MWS_AUTH_TOKEN          - Delegated access token (optional)
//	MWS_REGION              - Marketplace region code (default: us)
//	MWS_HOST                - Endpoint host override
//	MWS_SCHEME              - https or http (default: https)
//	MWS_MARKETPLACE_ID      - Marketplace id override
//	MWS_TIMEOUT             - Per-attempt HTTP timeout (default: 30s)
//	MWS_RETRY_MAX_ATTEMPTS  - Attempts per call (default: 1)
//	MWS_RETRY_BACKOFF       - Wait before the second attempt (default: 1s)
//	MWS_THROTTLE_ENABLED    - Pace calls by catalog quotas
//	MWS_APP_NAME            - Application name for the User-Agent
//	MWS_APP_VERSION         - Application version for the User-Agent
//	MWS_CATALOG_PATH        - Action catalog file
//	MWS_CATALOG_WATCH       - Reload the catalog on change
//	MWS_SERVER_HOST         - Relay host (default: 127.0.0.1)
//	MWS_SERVER_PORT         - Relay port (default: 8080)
//	MWS_SERVER_TOKEN_HASH   - Bcrypt hash of the relay access token
//	MWS_DATABASE_DRIVER     - sqlite or memory (default: sqlite)
//	MWS_DATABASE_DSN        - Call log database path (default: mws.db)
//	MWS_LOG_LEVEL           - Log level: debug, info, warn, error (default: info)
//	MWS_LOG_FORMAT          - Log format: json or console (default: json)
//	MWS_METRICS_ENABLED     - Enable /metrics endpoint
//	MWS_METRICS_PATH        - Metrics path (default: /metrics)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	if err := setDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if HasEnvConfig() {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set MWS_ACCESS_KEY_ID")
}

// HasEnvConfig returns true if credentials are supplied by the environment.
func HasEnvConfig() bool {
	return os.Getenv("MWS_ACCESS_KEY_ID") != ""
}

// applyEnvOverrides applies MWS_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Credentials
	setString(&cfg.Credentials.AccessKeyID, "MWS_ACCESS_KEY_ID")
	setString(&cfg.Credentials.SecretAccessKey, "MWS_SECRET_ACCESS_KEY")
	setString(&cfg.Credentials.MerchantID, "MWS_MERCHANT_ID")
	setString(&cfg.Credentials.AuthToken, "MWS_AUTH_TOKEN")

	// Endpoint
	setString(&cfg.Endpoint.Region, "MWS_REGION")
	setString(&cfg.Endpoint.Host, "MWS_HOST")
	setString(&cfg.Endpoint.Scheme, "MWS_SCHEME")
	setString(&cfg.Endpoint.MarketplaceID, "MWS_MARKETPLACE_ID")
	setDuration(&cfg.Endpoint.Timeout, "MWS_TIMEOUT")

	// Retry
	setInt(&cfg.Retry.MaxAttempts, "MWS_RETRY_MAX_ATTEMPTS")
	setDuration(&cfg.Retry.Backoff, "MWS_RETRY_BACKOFF")
	if v := os.Getenv("MWS_THROTTLE_ENABLED"); v != "" {
		cfg.Throttle.Enabled = parseBool(v)
	}

	// App identity
	setString(&cfg.App.Name, "MWS_APP_NAME")
	setString(&cfg.App.Version, "MWS_APP_VERSION")

	// Catalog
	setString(&cfg.Catalog.Path, "MWS_CATALOG_PATH")
	if v := os.Getenv("MWS_CATALOG_WATCH"); v != "" {
		cfg.Catalog.Watch = parseBool(v)
	}

	// Server
	setString(&cfg.Server.Host, "MWS_SERVER_HOST")
	setInt(&cfg.Server.Port, "MWS_SERVER_PORT")
	setString(&cfg.Server.TokenHash, "MWS_SERVER_TOKEN_HASH")

	// Database
	setString(&cfg.Database.Driver, "MWS_DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "MWS_DATABASE_DSN")

	// Logging
	setString(&cfg.Logging.Level, "MWS_LOG_LEVEL")
	setString(&cfg.Logging.Format, "MWS_LOG_FORMAT")

	// Metrics
	if v := os.Getenv("MWS_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	setString(&cfg.Metrics.Path, "MWS_METRICS_PATH")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

// setDefaults fills unset fields. The endpoint host and marketplace come
// from the region, which fails for an unknown region code.
func setDefaults(cfg *Config) error {
	if cfg.Endpoint.Region == "" {
		cfg.Endpoint.Region = "us"
	}
	region, err := LookupRegion(cfg.Endpoint.Region)
	if err != nil {
		return fmt.Errorf("endpoint.region: %w", err)
	}
	cfg.Endpoint.Region = region.Code
	if cfg.Endpoint.Host == "" {
		cfg.Endpoint.Host = region.Host
	}
	if cfg.Endpoint.MarketplaceID == "" {
		cfg.Endpoint.MarketplaceID = region.MarketplaceID
	}
	if cfg.Endpoint.Scheme == "" {
		cfg.Endpoint.Scheme = "https"
	}
	if cfg.Endpoint.Timeout == 0 {
		cfg.Endpoint.Timeout = 30 * time.Second
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.Backoff == 0 {
		cfg.Retry.Backoff = time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}

	if cfg.App.Name == "" {
		cfg.App.Name = "mws-go"
	}
	if cfg.App.Version == "" {
		cfg.App.Version = "0.1.0"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// A relayed call may retry; leave room for it.
		cfg.Server.WriteTimeout = 2 * time.Minute
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == "sqlite" {
		cfg.Database.DSN = "mws.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	return nil
}

func validate(cfg *Config) error {
	validSchemes := map[string]bool{"https": true, "http": true}
	if !validSchemes[cfg.Endpoint.Scheme] {
		return fmt.Errorf("endpoint.scheme must be 'https' or 'http', got %q", cfg.Endpoint.Scheme)
	}
	if strings.Contains(cfg.Endpoint.Host, "/") {
		return fmt.Errorf("endpoint.host must be a bare host, got %q", cfg.Endpoint.Host)
	}
	if cfg.Endpoint.Timeout < 0 {
		return fmt.Errorf("endpoint.timeout must not be negative")
	}

	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Retry.Backoff < 0 || cfg.Retry.MaxBackoff < 0 {
		return fmt.Errorf("retry backoff must not be negative")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	if cfg.Server.TokenHash != "" && !strings.HasPrefix(cfg.Server.TokenHash, "$2") {
		return fmt.Errorf("server.token_hash must be a bcrypt hash")
	}

	validDrivers := map[string]bool{"sqlite": true, "memory": true}
	if !validDrivers[cfg.Database.Driver] {
		return fmt.Errorf("database.driver must be 'sqlite' or 'memory', got %q", cfg.Database.Driver)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
