package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid marks configuration that cannot be used to serve requests
var ErrInvalid = errors.New("invalid configuration")

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides for deployment-specific values
	if endpoint := os.Getenv("COMPLETIONS_REMOTE_ENDPOINT"); endpoint != "" {
		cfg.Remote.Endpoint = endpoint
	}
	if mode := os.Getenv("COMPLETIONS_INFERENCE_MODE"); mode != "" {
		cfg.Inference.Mode = mode
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return invalid("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Prefix != "" && !strings.HasPrefix(c.Server.Prefix, "/") {
		return invalid("server.prefix must start with '/': %s", c.Server.Prefix)
	}

	switch c.Inference.Mode {
	case ModeRemote, ModeGPU:
		if c.Remote.Endpoint == "" {
			return invalid("remote.endpoint is required in %s mode", c.Inference.Mode)
		}
		u, err := url.Parse(c.Remote.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return invalid("remote.endpoint is not an absolute URL: %s", c.Remote.Endpoint)
		}
		if c.Remote.TimeoutSeconds < 0 {
			return invalid("remote.timeout_seconds must not be negative")
		}
	case ModeLocal:
		if c.Local.ModelPath == "" {
			return invalid("local.model_path is required in local mode")
		}
		if c.Local.Binary == "" {
			return invalid("local.binary is required in local mode")
		}
		if c.Local.Port <= 0 || c.Local.Port > 65535 {
			return invalid("local.port must be between 1 and 65535, got %d", c.Local.Port)
		}
		if c.Local.StartupTimeoutSeconds <= 0 {
			return invalid("local.startup_timeout_seconds must be positive")
		}
	default:
		return invalid("inference.mode must be one of %q, %q or %q, got %q", ModeLocal, ModeRemote, ModeGPU, c.Inference.Mode)
	}

	// Validate rate limits
	rl := c.RateLimits
	if rl.RequestsPerMinute < 0 || rl.RequestsPerHour < 0 || rl.TokensPerPeriod < 0 {
		return invalid("rate_limits values must not be negative")
	}
	if rl.TokensPerPeriod > 0 && rl.PeriodHours <= 0 {
		return invalid("rate_limits.period_hours is required when tokens_per_period is set")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
