package config

import (
	"fmt"
	"time"
)

// LoadProfile returns the preset for a deployment environment. Presets are
// starting points; environment variables still override them.
func LoadProfile(name string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.Profile = name

	switch Environment(name) {
	case EnvDevelopment:
		cfg.Environment = EnvDevelopment
		cfg.Logging.Level = "debug"
		cfg.Logging.Format = "text"
		cfg.Security.AllowedOrigins = []string{"*"}

	case EnvTesting:
		cfg.Environment = EnvTesting
		cfg.Server.Address = "127.0.0.1:0"
		cfg.Server.ShutdownTimeout = 5 * time.Second
		cfg.Server.IdempotencyTTL = time.Hour
		cfg.Logging.Level = "warn"
		cfg.Logging.Format = "text"

	case EnvStaging:
		cfg.Environment = EnvStaging
		cfg.Storage.Adapter = "redis"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true

	case EnvProduction:
		cfg.Environment = EnvProduction
		cfg.Storage.Adapter = "redis"
		cfg.Logging.Level = "info"
		cfg.Logging.Format = "json"
		cfg.Metrics.Enabled = true
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit = RateLimitConfig{RequestsPerMinute: 300, BurstSize: 30}
		cfg.Server.ReadTimeout = 5 * time.Second
		cfg.Server.WriteTimeout = 5 * time.Second

	default:
		return nil, fmt.Errorf("unknown profile %q", name)
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from environment: %w", err)
	}
	return cfg, nil
}
