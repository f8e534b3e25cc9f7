package config

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:   "0.0.0.0",
			Port:   4891,
			Prefix: "/v1",
		},
		Inference: InferenceConfig{
			Mode: ModeLocal,
		},
		Local: LocalConfig{
			Binary:                "llama-server",
			Host:                  "127.0.0.1",
			Port:                  39741,
			ContextSize:           2048,
			StartupTimeoutSeconds: 300,
			RepeatLastN:           64,
			NBatch:                1024,
		},
		Usage: UsageConfig{
			Encoding: "cl100k_base",
		},
		Redis: RedisConfig{
			DB:        0,
			KeyPrefix: "completions:",
		},
		RateLimits: RateLimit{
			PeriodHours: 24,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
