package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"ascnd/transport"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds the complete configuration of the client tools and the
// reference service.
type Config struct {
	Environment Environment `json:"environment" yaml:"environment" toml:"environment" env:"ASCND_ENV"`
	Profile     string      `json:"profile" yaml:"profile" toml:"profile" env:"ASCND_PROFILE"`

	// Client is used by the SDK, the CLI and the examples.
	Client transport.Config `json:"client" yaml:"client" toml:"client"`

	Server   ServerConfig   `json:"server" yaml:"server" toml:"server"`
	Storage  StorageConfig  `json:"storage" yaml:"storage" toml:"storage"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging" toml:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics" toml:"metrics"`
	Security SecurityConfig `json:"security" yaml:"security" toml:"security"`
	Webhooks WebhookConfig  `json:"webhooks" yaml:"webhooks" toml:"webhooks"`

	// Leaderboards served by the reference service. When empty the server
	// falls back to a single all-time "high-scores" board.
	Leaderboards []BoardConfig `json:"leaderboards,omitempty" yaml:"leaderboards,omitempty" toml:"leaderboards,omitempty"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Address           string        `json:"address" yaml:"address" toml:"address" env:"ASCND_SERVER_ADDR"`
	ReadTimeout       time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" env:"ASCND_SERVER_READ_TIMEOUT"`
	WriteTimeout      time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" env:"ASCND_SERVER_WRITE_TIMEOUT"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout" toml:"idle_timeout" env:"ASCND_SERVER_IDLE_TIMEOUT"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout" toml:"read_header_timeout" env:"ASCND_SERVER_READ_HEADER_TIMEOUT"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout" env:"ASCND_SERVER_SHUTDOWN_TIMEOUT"`
	// IdempotencyTTL is how long submissions are remembered for replay.
	IdempotencyTTL time.Duration `json:"idempotency_ttl" yaml:"idempotency_ttl" toml:"idempotency_ttl" env:"ASCND_SERVER_IDEMPOTENCY_TTL"`
}

// StorageConfig holds storage adapter configuration
type StorageConfig struct {
	Adapter string      `json:"adapter" yaml:"adapter" toml:"adapter" env:"ASCND_STORAGE_ADAPTER"`
	Redis   RedisConfig `json:"redis,omitempty" yaml:"redis,omitempty" toml:"redis,omitempty"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string        `json:"addr" yaml:"addr" toml:"addr" env:"ASCND_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" yaml:"password,omitempty" toml:"password,omitempty" env:"ASCND_REDIS_PASSWORD"`
	DB           int           `json:"db" yaml:"db" toml:"db" env:"ASCND_REDIS_DB"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size" toml:"pool_size" env:"ASCND_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" yaml:"min_idle_conns" toml:"min_idle_conns" env:"ASCND_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout" toml:"dial_timeout" env:"ASCND_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" env:"ASCND_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" env:"ASCND_REDIS_WRITE_TIMEOUT"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix" toml:"key_prefix" env:"ASCND_REDIS_KEY_PREFIX"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string            `json:"level" yaml:"level" toml:"level" env:"ASCND_LOG_LEVEL"`
	Format     string            `json:"format" yaml:"format" toml:"format" env:"ASCND_LOG_FORMAT"`
	Output     string            `json:"output" yaml:"output" toml:"output" env:"ASCND_LOG_OUTPUT"`
	Attributes map[string]string `json:"attributes,omitempty" yaml:"attributes,omitempty" toml:"attributes,omitempty" env:"ASCND_LOG_ATTRIBUTES"`
}

// MetricsConfig toggles the Prometheus registry served at /metrics.
type MetricsConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled" env:"ASCND_METRICS_ENABLED"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys         []string        `json:"api_keys,omitempty" yaml:"api_keys,omitempty" toml:"api_keys,omitempty" env:"ASCND_SECURITY_API_KEYS"`
	EnableRateLimit bool            `json:"enable_rate_limit" yaml:"enable_rate_limit" toml:"enable_rate_limit" env:"ASCND_SECURITY_RATE_LIMIT_ENABLED"`
	RateLimit       RateLimitConfig `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty" toml:"rate_limit,omitempty"`
	AllowedOrigins  []string        `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty" toml:"allowed_origins,omitempty" env:"ASCND_SECURITY_ALLOWED_ORIGINS"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute" toml:"requests_per_minute" env:"ASCND_SECURITY_RATE_LIMIT_RPM"`
	BurstSize         int `json:"burst_size" yaml:"burst_size" toml:"burst_size" env:"ASCND_SECURITY_RATE_LIMIT_BURST"`
}

// WebhookConfig lists endpoints that receive score events.
type WebhookConfig struct {
	Endpoints []string      `json:"endpoints,omitempty" yaml:"endpoints,omitempty" toml:"endpoints,omitempty" env:"ASCND_WEBHOOK_URLS"`
	Secret    string        `json:"secret,omitempty" yaml:"secret,omitempty" toml:"secret,omitempty" env:"ASCND_WEBHOOK_SECRET"`
	Events    []string      `json:"events,omitempty" yaml:"events,omitempty" toml:"events,omitempty" env:"ASCND_WEBHOOK_EVENTS"`
	Timeout   time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" env:"ASCND_WEBHOOK_TIMEOUT"`
}

// BoardConfig defines one leaderboard of the reference service.
type BoardConfig struct {
	ID            string          `json:"id" yaml:"id" toml:"id"`
	Name          string          `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	ResetInterval time.Duration   `json:"reset_interval,omitempty" yaml:"reset_interval,omitempty" toml:"reset_interval,omitempty"`
	Anticheat     AnticheatConfig `json:"anticheat,omitempty" yaml:"anticheat,omitempty" toml:"anticheat,omitempty"`
	Brackets      []BracketConfig `json:"brackets,omitempty" yaml:"brackets,omitempty" toml:"brackets,omitempty"`
	Views         []ViewConfig    `json:"views,omitempty" yaml:"views,omitempty" toml:"views,omitempty"`
}

// AnticheatConfig configures score checks for a board.
type AnticheatConfig struct {
	Enabled               bool          `json:"enabled" yaml:"enabled" toml:"enabled"`
	MinScore              *int64        `json:"min_score,omitempty" yaml:"min_score,omitempty" toml:"min_score,omitempty"`
	MaxScore              *int64        `json:"max_score,omitempty" yaml:"max_score,omitempty" toml:"max_score,omitempty"`
	MaxSubmissions        int64         `json:"max_submissions,omitempty" yaml:"max_submissions,omitempty" toml:"max_submissions,omitempty"`
	Window                time.Duration `json:"window,omitempty" yaml:"window,omitempty" toml:"window,omitempty"`
	RequireIdempotencyKey bool          `json:"require_idempotency_key,omitempty" yaml:"require_idempotency_key,omitempty" toml:"require_idempotency_key,omitempty"`
	Action                string        `json:"action,omitempty" yaml:"action,omitempty" toml:"action,omitempty"`
}

// BracketConfig labels players at or above a percentile.
type BracketConfig struct {
	Name          string  `json:"name" yaml:"name" toml:"name"`
	Color         string  `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	MinPercentile float64 `json:"min_percentile" yaml:"min_percentile" toml:"min_percentile"`
}

// ViewConfig filters a board by one metadata key.
type ViewConfig struct {
	Slug  string `json:"slug" yaml:"slug" toml:"slug"`
	Name  string `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Key   string `json:"key" yaml:"key" toml:"key"`
	Value string `json:"value" yaml:"value" toml:"value"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ClientFromEnv reads the client connection settings from ASCND_ENDPOINT,
// ASCND_API_KEY, ASCND_TIMEOUT and ASCND_PROTOCOL. Validation is left to
// transport.Build.
func ClientFromEnv() (transport.Config, error) {
	var cfg transport.Config
	if err := loadFromEnvRecursive(&cfg, ""); err != nil {
		return transport.Config{}, fmt.Errorf("failed to load client config from environment: %w", err)
	}
	return cfg, nil
}

var supportedExtensions = []string{".json", ".yaml", ".yml", ".toml"}

// validateConfigPath validates that the config file path is safe
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("config file path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	supported := false
	for _, e := range supportedExtensions {
		if ext == e {
			supported = true
			break
		}
	}
	if !supported {
		return fmt.Errorf("config file must have one of the extensions: %s", strings.Join(supportedExtensions, ", "))
	}

	if _, err := os.Stat(cleanPath); err != nil {
		return fmt.Errorf("config file not accessible: %w", err)
	}

	return nil
}

// LoadFromFile loads configuration from a JSON, YAML or TOML file, picked by
// extension. ${VAR} references in YAML files are expanded first.
// Environment variables override file values.
func LoadFromFile(path string) (*Config, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config file path: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - Path validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(expandEnvVars(string(data))), cfg)
	case ".toml":
		_, err := toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the empty
// string when unset.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// DefaultConfig returns a configuration with sensible defaults for development
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Profile:     "default",
		Client: transport.Config{
			Endpoint: "http://localhost:8080",
			Timeout:  transport.DefaultTimeout,
			Protocol: transport.ProtocolConnect,
		},
		Server: ServerConfig{
			Address:           ":8080",
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			IdempotencyTTL:    24 * time.Hour,
		},
		Storage: StorageConfig{
			Adapter: "memory",
			Redis: RedisConfig{
				Addr:         "localhost:6379",
				PoolSize:     10,
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
				KeyPrefix:    "ascnd",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 600,
				BurstSize:         50,
			},
			APIKeys: []string{},
		},
		Webhooks: WebhookConfig{
			Timeout: 5 * time.Second,
		},
	}
}

// Validate validates the configuration and returns detailed error messages
func (c *Config) Validate() error {
	var errs []string

	if c.Environment == "" {
		errs = append(errs, "environment cannot be empty")
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("storage config: %v", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("logging config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Webhooks.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("webhook config: %v", err))
	}

	if err := validateBoards(c.Leaderboards); err != nil {
		errs = append(errs, fmt.Sprintf("leaderboards: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// String returns a JSON representation of the config (with secrets redacted)
func (c *Config) String() string {
	cfg := *c

	cfg.Client = cfg.Client.Redacted()
	if cfg.Storage.Redis.Password != "" {
		cfg.Storage.Redis.Password = "[REDACTED]"
	}
	if cfg.Webhooks.Secret != "" {
		cfg.Webhooks.Secret = "[REDACTED]"
	}
	if len(cfg.Security.APIKeys) > 0 {
		redacted := make([]string, len(cfg.Security.APIKeys))
		for i := range redacted {
			redacted[i] = "[REDACTED]"
		}
		cfg.Security.APIKeys = redacted
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	return string(data)
}
