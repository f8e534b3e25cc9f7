package llm

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
)

// Registry holds the backend selected by the current configuration
type Registry struct {
	backend Backend
	model   Generator // nil unless a local runtime was started
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// NewRegistry selects the backend named by cfg.Inference.Mode. model may be
// nil when no local runtime is running; selecting local mode then fails.
func NewRegistry(cfg *config.Config, model Generator, logger zerolog.Logger) (*Registry, error) {
	r := &Registry{
		model:  model,
		logger: logger,
	}

	backend, err := r.build(cfg)
	if err != nil {
		return nil, err
	}
	r.backend = backend

	return r, nil
}

// Backend returns the currently selected backend
func (r *Registry) Backend() Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.backend
}

// Reload reselects the backend after a config reload
func (r *Registry) Reload(cfg *config.Config) error {
	backend, err := r.build(cfg)
	if err != nil {
		return err
	}

	r.mu.Lock()
	previous := r.backend.Name()
	r.backend = backend
	r.mu.Unlock()

	if previous != backend.Name() {
		r.logger.Info().Str("from", previous).Str("to", backend.Name()).Msg("Switched inference backend")
	}

	return nil
}

func (r *Registry) build(cfg *config.Config) (Backend, error) {
	switch {
	case cfg.Inference.IsRemote():
		return NewRemoteBackend(cfg.Remote, r.logger)
	case cfg.Inference.Mode == config.ModeLocal:
		return NewLocalBackend(r.model, cfg.Local, r.logger)
	default:
		return nil, fmt.Errorf("%w: unknown inference mode %q", ErrConfiguration, cfg.Inference.Mode)
	}
}
