package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/completion"
	"github.com/s33g/completions-gateway/internal/config"
	"github.com/s33g/completions-gateway/internal/ratelimit"
)

// Completer answers completion requests
type Completer interface {
	Complete(ctx context.Context, req *completion.CompletionRequest) (*completion.CompletionResponse, error)
}

// Limiter enforces per-client budgets
type Limiter interface {
	CheckRequests(ctx context.Context, clientID string, limits config.RateLimit) (*ratelimit.RequestResult, error)
	ChargeTokens(ctx context.Context, clientID string, limits config.RateLimit, tokens int) (*ratelimit.TokenResult, error)
}

// Server is the HTTP surface of the completions service
type Server struct {
	http      *http.Server
	router    *gin.Engine
	completer Completer
	limiter   Limiter // nil disables limiting
	counter   *completion.TokenCounter // nil estimates
	logger    zerolog.Logger

	mu     sync.RWMutex
	model  string
	limits config.RateLimit
}

// New builds the router for cfg. limiter and counter may be nil.
func New(cfg *config.Config, completer Completer, limiter Limiter, counter *completion.TokenCounter, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		completer: completer,
		limiter:   limiter,
		counter:   counter,
		logger:    logger.With().Str("component", "server").Logger(),
		model:     cfg.Inference.Model,
		limits:    cfg.RateLimits,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))

	router.GET("/health", s.handleHealth)

	api := router.Group(cfg.Server.Prefix)
	api.GET("/models", s.handleModels)

	completions := api.Group("/completions")
	completions.Use(s.rateLimit())
	completions.POST("", s.handleCompletions)
	completions.POST("/", s.handleCompletions)

	s.router = router
	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Reload applies the model name and rate limits of a reloaded config
func (s *Server) Reload(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = cfg.Inference.Model
	s.limits = cfg.RateLimits
	return nil
}

func (s *Server) settings() (string, config.RateLimit) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.model, s.limits
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.http.Addr).Msg("Starting HTTP server")

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP server")
	return s.http.Shutdown(ctx)
}
