package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"ascnd/core"
)

// Validate validates server configuration
func (s *ServerConfig) Validate() error {
	var errs []string

	if s.Address == "" {
		errs = append(errs, "address cannot be empty")
	}
	if s.ReadTimeout <= 0 {
		errs = append(errs, "read_timeout must be positive")
	}
	if s.WriteTimeout <= 0 {
		errs = append(errs, "write_timeout must be positive")
	}
	if s.IdleTimeout <= 0 {
		errs = append(errs, "idle_timeout must be positive")
	}
	if s.ReadHeaderTimeout <= 0 {
		errs = append(errs, "read_header_timeout must be positive")
	}
	if s.ShutdownTimeout <= 0 {
		errs = append(errs, "shutdown_timeout must be positive")
	}
	if s.IdempotencyTTL < 0 {
		errs = append(errs, "idempotency_ttl must not be negative")
	}

	return joinErrors(errs)
}

var validAdapters = []string{"memory", "redis"}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	var errs []string

	if !slices.Contains(validAdapters, s.Adapter) {
		errs = append(errs, fmt.Sprintf("adapter must be one of: %s", strings.Join(validAdapters, ", ")))
	}
	if s.Adapter == "redis" && s.Redis.Addr == "" {
		errs = append(errs, "redis.addr cannot be empty")
	}

	return joinErrors(errs)
}

var (
	validLevels  = []string{"debug", "info", "warn", "error"}
	validFormats = []string{"json", "text"}
	validOutputs = []string{"stdout", "stderr"}
)

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	var errs []string

	if !slices.Contains(validLevels, l.Level) {
		errs = append(errs, fmt.Sprintf("level must be one of: %s", strings.Join(validLevels, ", ")))
	}
	if !slices.Contains(validFormats, l.Format) {
		errs = append(errs, fmt.Sprintf("format must be one of: %s", strings.Join(validFormats, ", ")))
	}
	if !slices.Contains(validOutputs, l.Output) {
		errs = append(errs, fmt.Sprintf("output must be one of: %s", strings.Join(validOutputs, ", ")))
	}

	return joinErrors(errs)
}

// Validate validates security settings.
func (s *SecurityConfig) Validate() error {
	var errs []string

	if s.EnableRateLimit {
		if s.RateLimit.RequestsPerMinute <= 0 {
			errs = append(errs, "rate_limit.requests_per_minute must be > 0 when rate limiting is enabled")
		}
		if s.RateLimit.BurstSize <= 0 {
			errs = append(errs, "rate_limit.burst_size must be > 0 when rate limiting is enabled")
		}
	}
	for i, key := range s.APIKeys {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, fmt.Sprintf("api_keys[%d] is empty", i))
		}
	}

	return joinErrors(errs)
}

// Validate validates webhook settings.
func (w *WebhookConfig) Validate() error {
	var errs []string

	for i, u := range w.Endpoints {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Sprintf("endpoints[%d] must be an http(s) URL", i))
		}
	}
	for _, e := range w.Events {
		if !core.EventType(e).Valid() {
			errs = append(errs, fmt.Sprintf("unknown event type %q", e))
		}
	}
	if w.Timeout < 0 {
		errs = append(errs, "timeout must not be negative")
	}

	return joinErrors(errs)
}

func validateBoards(boards []BoardConfig) error {
	var errs []string
	seen := make(map[string]bool, len(boards))

	for i, b := range boards {
		if b.ID == "" {
			errs = append(errs, fmt.Sprintf("[%d].id cannot be empty", i))
			continue
		}
		if seen[b.ID] {
			errs = append(errs, fmt.Sprintf("duplicate leaderboard %s", b.ID))
		}
		seen[b.ID] = true

		if b.ResetInterval < 0 {
			errs = append(errs, fmt.Sprintf("%s: reset_interval must not be negative", b.ID))
		}
		if a := b.Anticheat.Action; a != "" && !core.AnticheatAction(a).Valid() {
			errs = append(errs, fmt.Sprintf("%s: anticheat action %q is not valid", b.ID, a))
		}
		for _, br := range b.Brackets {
			if br.Color != "" && !core.ValidHexColor(br.Color) {
				errs = append(errs, fmt.Sprintf("%s: bracket %s color %q is not a hex color", b.ID, br.Name, br.Color))
			}
			if br.MinPercentile < 0 || br.MinPercentile > 100 {
				errs = append(errs, fmt.Sprintf("%s: bracket %s min_percentile must be within 0..100", b.ID, br.Name))
			}
		}
		for _, v := range b.Views {
			if v.Slug == "" || v.Key == "" {
				errs = append(errs, fmt.Sprintf("%s: view slug and key cannot be empty", b.ID))
			}
		}
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}
