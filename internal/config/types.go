package config

import (
	"time"
)

// Inference modes
const (
	ModeLocal  = "local"
	ModeRemote = "remote"
	// ModeGPU is the legacy name for the remote mode
	ModeGPU = "gpu"
)

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Inference  InferenceConfig `yaml:"inference"`
	Remote     RemoteConfig    `yaml:"remote"`
	Local      LocalConfig     `yaml:"local"`
	Usage      UsageConfig     `yaml:"usage"`
	Redis      RedisConfig     `yaml:"redis"`
	RateLimits RateLimit       `yaml:"rate_limits"`
	Logging    LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Prefix string `yaml:"prefix"`
}

// Addr returns the listen address
func (s *ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// InferenceConfig selects the backend that answers completion requests
type InferenceConfig struct {
	Mode  string `yaml:"mode"`
	Model string `yaml:"model"`
}

// IsRemote reports whether completions go to the remote inference service
func (i *InferenceConfig) IsRemote() bool {
	return i.Mode == ModeRemote || i.Mode == ModeGPU
}

// RemoteConfig holds settings for the remote inference service
type RemoteConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKeyEnv      string `yaml:"api_key_env"`
	TimeoutSeconds int    `yaml:"timeout_seconds"` // 0 keeps the transport default
}

// Timeout returns the per-call HTTP timeout, zero meaning none
func (r *RemoteConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSeconds) * time.Second
}

// LocalConfig holds settings for the locally hosted model runtime
type LocalConfig struct {
	Binary                string `yaml:"binary"`
	ModelPath             string `yaml:"model_path"`
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	ContextSize           int    `yaml:"context_size"`
	StartupTimeoutSeconds int    `yaml:"startup_timeout_seconds"`
	RepeatLastN           int    `yaml:"repeat_last_n"`
	NBatch                int    `yaml:"n_batch"`
	// LegacySampling pins top_k, repeat_penalty and repeat_last_n to the
	// values the first release of the service used instead of the request's.
	LegacySampling bool `yaml:"legacy_sampling"`
	Verbose        bool `yaml:"verbose"`
}

// StartupTimeout returns how long to wait for the runtime to become ready
func (l *LocalConfig) StartupTimeout() time.Duration {
	return time.Duration(l.StartupTimeoutSeconds) * time.Second
}

// BaseURL returns the runtime's loopback URL
func (l *LocalConfig) BaseURL() string {
	return "http://" + joinHostPort(l.Host, l.Port)
}

// UsageConfig controls token accounting in responses
type UsageConfig struct {
	CountTokens bool   `yaml:"count_tokens"`
	Encoding    string `yaml:"encoding"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address     string `yaml:"address"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// Enabled reports whether a Redis server is configured
func (r *RedisConfig) Enabled() bool {
	return r.Address != ""
}

// RateLimit defines per-client limits applied to the completions endpoint
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
	RequestsPerHour   int `yaml:"requests_per_hour"`
	TokensPerPeriod   int `yaml:"tokens_per_period,omitempty"`
	PeriodHours       int `yaml:"period_hours,omitempty"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
