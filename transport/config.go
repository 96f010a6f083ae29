package transport

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds every call when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Protocol selects the wire framing used to reach the service.
type Protocol string

const (
	// ProtocolConnect is the Connect protocol; the default.
	ProtocolConnect Protocol = "connect"
	// ProtocolGRPCWeb frames calls as gRPC-Web.
	ProtocolGRPCWeb Protocol = "grpcweb"
)

// Config is the user-supplied client configuration.
type Config struct {
	// Endpoint is the service base URL, e.g. https://api.ascnd.gg.
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint" env:"ASCND_ENDPOINT"`
	// APIKey is sent as the x-api-key header on every call.
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key" env:"ASCND_API_KEY"`
	// Timeout caps each call. Zero means DefaultTimeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout" env:"ASCND_TIMEOUT"`
	// Protocol defaults to ProtocolConnect.
	Protocol Protocol `json:"protocol,omitempty" yaml:"protocol,omitempty" toml:"protocol,omitempty" env:"ASCND_PROTOCOL"`
}

// ConfigurationError reports a client configuration that cannot be used.
// It is returned synchronously by Build, before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("ascnd: invalid configuration: %s %s", e.Field, e.Reason)
}

// Validate checks the configuration and returns a *ConfigurationError on the first problem.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return &ConfigurationError{Field: "endpoint", Reason: "is required"}
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return &ConfigurationError{Field: "api_key", Reason: "is required"}
	}
	if c.Timeout < 0 {
		return &ConfigurationError{Field: "timeout", Reason: "must be positive"}
	}
	switch c.Protocol {
	case "", ProtocolConnect, ProtocolGRPCWeb:
	default:
		return &ConfigurationError{Field: "protocol", Reason: fmt.Sprintf("must be %q or %q", ProtocolConnect, ProtocolGRPCWeb)}
	}
	return nil
}

// Redacted returns a copy safe for logging.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "[REDACTED]"
	}
	return c
}

func (c Config) withDefaults() Config {
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolConnect
	}
	return c
}
