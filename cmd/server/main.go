package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/s33g/completions-gateway/internal/completion"
	"github.com/s33g/completions-gateway/internal/config"
	"github.com/s33g/completions-gateway/internal/llm"
	"github.com/s33g/completions-gateway/internal/localmodel"
	"github.com/s33g/completions-gateway/internal/ratelimit"
	"github.com/s33g/completions-gateway/internal/server"
	"github.com/s33g/completions-gateway/internal/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Parse flags
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	flag.Parse()

	// Console logging until the configuration says otherwise
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	logger := log.With().Str("component", "main").Logger()

	// Load configuration
	logger.Info().Str("path", *configPath).Msg("Loading configuration...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.Logging)
	logger = log.With().Str("component", "main").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The local runtime is only started when the configured mode needs it
	var (
		runtime *localmodel.Runtime
		model   llm.Generator
	)
	if cfg.Inference.Mode == config.ModeLocal {
		logger.Info().Str("model", cfg.Local.ModelPath).Msg("Starting local model runtime...")
		runtime = localmodel.New(cfg.Local, cfg.Inference.Model, log.Logger)
		if err := runtime.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start local model runtime")
		}
		model = runtime
	}

	registry, err := llm.NewRegistry(cfg, model, log.Logger.With().Str("component", "llm").Logger())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to select inference backend")
	}

	// Rate limiting is optional; run without it when Redis is unreachable
	var (
		redisClient *storage.Client
		limiter     server.Limiter
	)
	if cfg.Redis.Enabled() {
		redisClient, err = storage.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
		} else {
			l, err := ratelimit.NewLimiter(ctx, redisClient)
			if err != nil {
				logger.Warn().Err(err).Msg("Failed to load rate limit scripts, rate limiting disabled")
			} else {
				limiter = l
			}
		}
	}

	var counter *completion.TokenCounter
	if cfg.Usage.CountTokens {
		counter = completion.NewTokenCounter(cfg.Usage.Encoding)
	}

	service := completion.NewService(
		registry,
		completion.NewDispatcher(log.Logger),
		completion.NewAssembler(counter),
		log.Logger.With().Str("component", "completion").Logger(),
	)

	srv := server.New(cfg, service, limiter, counter, log.Logger)

	watcher, err := config.NewWatcher(*configPath, log.Logger, registry.Reload, srv.Reload)
	if err != nil {
		logger.Warn().Err(err).Msg("Config hot reload disabled")
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("mode", cfg.Inference.Mode).
		Msg("Completions server is running. Press Ctrl+C to exit.")

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("HTTP server failed")
		}
	}

	// Cleanup
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if runtime != nil {
		runtime.Stop()
	}
	if redisClient != nil {
		redisClient.Close()
	}
}

// setupLogger configures the global logger from the logging section
func setupLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
