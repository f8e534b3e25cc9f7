package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("COMPLETIONS_REMOTE_ENDPOINT", "")
	t.Setenv("COMPLETIONS_INFERENCE_MODE", "")

	path := writeConfig(t, `
server:
  port: 8000
inference:
  mode: gpu
  model: gpt4all-j
remote:
  endpoint: http://tgi:80/generate
  timeout_seconds: 30
usage:
  count_tokens: true
rate_limits:
  requests_per_minute: 10
logging:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Expected server.port 8000, got %d", cfg.Server.Port)
	}
	// Defaults survive the overlay
	if cfg.Server.Prefix != "/v1" {
		t.Errorf("Expected default prefix /v1, got %s", cfg.Server.Prefix)
	}
	if !cfg.Inference.IsRemote() {
		t.Error("Expected gpu mode to select the remote backend")
	}
	if cfg.Remote.Timeout().Seconds() != 30 {
		t.Errorf("Expected 30s remote timeout, got %v", cfg.Remote.Timeout())
	}
	if cfg.Usage.Encoding != "cl100k_base" {
		t.Errorf("Expected default encoding, got %s", cfg.Usage.Encoding)
	}
	if cfg.RateLimits.RequestsPerMinute != 10 {
		t.Errorf("Expected 10 requests per minute, got %d", cfg.RateLimits.RequestsPerMinute)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("COMPLETIONS_INFERENCE_MODE", "remote")
	t.Setenv("COMPLETIONS_REMOTE_ENDPOINT", "http://override:8080")

	path := writeConfig(t, `
inference:
  mode: local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Inference.Mode != ModeRemote {
		t.Errorf("Mode = %s, want remote", cfg.Inference.Mode)
	}
	if cfg.Remote.Endpoint != "http://override:8080" {
		t.Errorf("Endpoint = %s, want override", cfg.Remote.Endpoint)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name: "valid local",
			mutate: func(c *Config) {
				c.Local.ModelPath = "/models/ggml.bin"
			},
		},
		{
			name: "valid remote",
			mutate: func(c *Config) {
				c.Inference.Mode = ModeRemote
				c.Remote.Endpoint = "http://localhost:8080"
			},
		},
		{
			name:    "local without model path",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name: "remote without endpoint",
			mutate: func(c *Config) {
				c.Inference.Mode = ModeRemote
			},
			wantErr: true,
		},
		{
			name: "remote with relative endpoint",
			mutate: func(c *Config) {
				c.Inference.Mode = ModeRemote
				c.Remote.Endpoint = "localhost/generate"
			},
			wantErr: true,
		},
		{
			name: "unknown mode",
			mutate: func(c *Config) {
				c.Inference.Mode = "tpu"
			},
			wantErr: true,
		},
		{
			name: "token limit without period",
			mutate: func(c *Config) {
				c.Local.ModelPath = "/models/ggml.bin"
				c.RateLimits.TokensPerPeriod = 1000
				c.RateLimits.PeriodHours = 0
			},
			wantErr: true,
		},
		{
			name: "local without startup timeout",
			mutate: func(c *Config) {
				c.Local.ModelPath = "/models/ggml.bin"
				c.Local.StartupTimeoutSeconds = 0
			},
			wantErr: true,
		},
		{
			name: "gpu alias",
			mutate: func(c *Config) {
				c.Inference.Mode = ModeGPU
				c.Remote.Endpoint = "http://gpu:80/"
			},
		},
		{
			name: "bad log format",
			mutate: func(c *Config) {
				c.Local.ModelPath = "/models/ggml.bin"
				c.Logging.Format = "xml"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLocalBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.Local.BaseURL(); got != "http://127.0.0.1:39741" {
		t.Errorf("BaseURL() = %s", got)
	}
	if got := cfg.Server.Addr(); got != "0.0.0.0:4891" {
		t.Errorf("Addr() = %s", got)
	}
}
