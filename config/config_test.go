package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascnd/transport"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 24*time.Hour, cfg.Server.IdempotencyTTL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ASCND_SERVER_ADDR", ":9999")
	t.Setenv("ASCND_STORAGE_ADAPTER", "redis")
	t.Setenv("ASCND_REDIS_ADDR", "cache:6379")
	t.Setenv("ASCND_SECURITY_API_KEYS", "a, b,")
	t.Setenv("ASCND_SERVER_SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("ASCND_LOG_ATTRIBUTES", "service=ascnd,region=eu")
	t.Setenv("ASCND_ENDPOINT", "https://api.ascnd.gg")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Address)
	assert.Equal(t, "redis", cfg.Storage.Adapter)
	assert.Equal(t, "cache:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, []string{"a", "b"}, cfg.Security.APIKeys)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, map[string]string{"service": "ascnd", "region": "eu"}, cfg.Logging.Attributes)
	assert.Equal(t, "https://api.ascnd.gg", cfg.Client.Endpoint)
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("ASCND_METRICS_ENABLED", "maybe")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASCND_METRICS_ENABLED")
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := writeFile(t, "ascnd.json", `{
		"environment": "testing",
		"server": {"address": ":9090"},
		"storage": {"adapter": "memory"},
		"leaderboards": [
			{"id": "weekly", "reset_interval": 604800000000000,
			 "brackets": [{"name": "Gold", "color": "#FFD700", "min_percentile": 90}]}
		]
	}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	require.Len(t, cfg.Leaderboards, 1)
	assert.Equal(t, 7*24*time.Hour, cfg.Leaderboards[0].ResetInterval)
	assert.Equal(t, "Gold", cfg.Leaderboards[0].Brackets[0].Name)
}

func TestLoadFromFile_YAML(t *testing.T) {
	t.Setenv("TEST_ASCND_KEY", "yaml-secret")
	path := writeFile(t, "ascnd.yaml", `
environment: staging
client:
  endpoint: https://api.ascnd.gg
  api_key: ${TEST_ASCND_KEY}
  timeout: 5s
server:
  address: ":7070"
leaderboards:
  - id: daily
    reset_interval: 24h
    anticheat:
      enabled: true
      max_score: 1000000
      max_submissions: 10
      window: 1m
      action: reject
    views:
      - slug: eu
        key: region
        value: eu
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, "yaml-secret", cfg.Client.APIKey)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.Equal(t, ":7070", cfg.Server.Address)
	require.Len(t, cfg.Leaderboards, 1)
	b := cfg.Leaderboards[0]
	assert.Equal(t, 24*time.Hour, b.ResetInterval)
	require.NotNil(t, b.Anticheat.MaxScore)
	assert.Equal(t, int64(1000000), *b.Anticheat.MaxScore)
	assert.Equal(t, time.Minute, b.Anticheat.Window)
	assert.Equal(t, "reject", b.Anticheat.Action)
	assert.Equal(t, "region", b.Views[0].Key)
}

func TestLoadFromFile_TOML(t *testing.T) {
	path := writeFile(t, "ascnd.toml", `
environment = "production"

[server]
address = ":6060"
shutdown_timeout = "10s"

[security]
api_keys = ["k1", "k2"]

[[leaderboards]]
id = "season"
name = "Season"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, ":6060", cfg.Server.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Security.APIKeys)
	require.Len(t, cfg.Leaderboards, 1)
	assert.Equal(t, "Season", cfg.Leaderboards[0].Name)
}

func TestLoadFromFile_InvalidBoards(t *testing.T) {
	path := writeFile(t, "ascnd.yaml", `
leaderboards:
  - id: a
    brackets:
      - name: Gold
        color: gold
  - id: a
    anticheat:
      action: ban
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a hex color")
	assert.Contains(t, err.Error(), "duplicate leaderboard a")
	assert.Contains(t, err.Error(), `anticheat action "ban"`)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "invalid environment", mutate: func(c *Config) { c.Environment = "" }, expectError: "environment cannot be empty"},
		{name: "invalid server timeout", mutate: func(c *Config) { c.Server.ReadTimeout = 0 }, expectError: "read_timeout must be positive"},
		{name: "unknown adapter", mutate: func(c *Config) { c.Storage.Adapter = "sql" }, expectError: "adapter must be one of"},
		{name: "bad log level", mutate: func(c *Config) { c.Logging.Level = "trace" }, expectError: "level must be one of"},
		{
			name: "rate limit without budget",
			mutate: func(c *Config) {
				c.Security.EnableRateLimit = true
				c.Security.RateLimit.RequestsPerMinute = 0
			},
			expectError: "requests_per_minute",
		},
		{name: "blank api key", mutate: func(c *Config) { c.Security.APIKeys = []string{" "} }, expectError: "api_keys[0] is empty"},
		{name: "bad webhook url", mutate: func(c *Config) { c.Webhooks.Endpoints = []string{"ftp://x"} }, expectError: "endpoints[0]"},
		{name: "bad webhook event", mutate: func(c *Config) { c.Webhooks.Events = []string{"score"} }, expectError: `unknown event type "score"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment = ""
	cfg.Storage.Adapter = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "environment cannot be empty; storage config:")
}

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		profileName  string
		expectConfig bool
		environment  Environment
	}{
		{"development", "development", true, EnvDevelopment},
		{"testing", "testing", true, EnvTesting},
		{"staging", "staging", true, EnvStaging},
		{"production", "production", true, EnvProduction},
		{"unknown", "unknown", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadProfile(tt.profileName)
			if !tt.expectConfig {
				assert.Error(t, err)
				assert.Nil(t, cfg)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
			assert.Equal(t, tt.environment, cfg.Environment)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestClientFromEnv(t *testing.T) {
	t.Setenv("ASCND_ENDPOINT", "https://api.ascnd.gg")
	t.Setenv("ASCND_API_KEY", "key")
	t.Setenv("ASCND_TIMEOUT", "2s")
	t.Setenv("ASCND_PROTOCOL", "grpcweb")

	cfg, err := ClientFromEnv()
	require.NoError(t, err)
	assert.Equal(t, transport.Config{
		Endpoint: "https://api.ascnd.gg",
		APIKey:   "key",
		Timeout:  2 * time.Second,
		Protocol: transport.ProtocolGRPCWeb,
	}, cfg)

	t.Setenv("ASCND_TIMEOUT", "soon")
	_, err = ClientFromEnv()
	assert.Error(t, err)
}

func TestString_RedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Client.APIKey = "client-secret"
	cfg.Storage.Redis.Password = "redis-secret"
	cfg.Webhooks.Secret = "hook-secret"
	cfg.Security.APIKeys = []string{"server-secret"}

	out := cfg.String()
	for _, secret := range []string{"client-secret", "redis-secret", "hook-secret", "server-secret"} {
		assert.NotContains(t, out, secret)
	}
	assert.Contains(t, out, "[REDACTED]")
	assert.Equal(t, []string{"server-secret"}, cfg.Security.APIKeys)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_ASCND_HOST", "redis.internal")
	assert.Equal(t, "addr: redis.internal:6379", expandEnvVars("addr: ${TEST_ASCND_HOST}:6379"))
	assert.Equal(t, "key: ", expandEnvVars("key: ${TEST_ASCND_UNSET_VAR}"))
	assert.Equal(t, "plain", expandEnvVars("plain"))
}

func TestValidateConfigPath(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "ok.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte("{}"), 0o600))
	txtPath := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(txtPath, []byte("{}"), 0o600))

	tests := []struct {
		name        string
		path        string
		expectError bool
	}{
		{"valid json file", jsonPath, false},
		{"empty path", "", true},
		{"path traversal", "../../../etc/passwd", true},
		{"unsupported extension", txtPath, true},
		{"nonexistent file", filepath.Join(dir, "missing.yaml"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfigPath(tt.path)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
