package completion

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/llm"
)

// BackendSource supplies the backend selected by the current configuration
type BackendSource interface {
	Backend() llm.Backend
}

// Service validates, dispatches and assembles completion requests
type Service struct {
	backends   BackendSource
	dispatcher *Dispatcher
	assembler  *Assembler
	logger     zerolog.Logger
}

// NewService creates a completion service
func NewService(backends BackendSource, dispatcher *Dispatcher, assembler *Assembler, logger zerolog.Logger) *Service {
	return &Service{
		backends:   backends,
		dispatcher: dispatcher,
		assembler:  assembler,
		logger:     logger,
	}
}

// Complete answers req. Individual prompt failures are reported in their
// choice; the request only fails when validation fails, no backend is
// configured, or every prompt failed.
func (s *Service) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	backend := s.backends.Backend()
	if backend == nil {
		return nil, fmt.Errorf("%w: no inference backend selected", llm.ErrConfiguration)
	}

	prompts := req.Prompt.Values()
	slots := s.dispatcher.Dispatch(ctx, backend, prompts, req.Params())

	failed := 0
	for _, slot := range slots {
		if !slot.OK() {
			failed++
		}
	}
	if len(slots) > 0 && failed == len(slots) {
		return nil, fmt.Errorf("%w: %w", ErrAllSlotsFailed, slots[0].Err)
	}

	resp := s.assembler.Assemble(req.Model, prompts, slots)

	s.logger.Info().
		Str("id", resp.ID).
		Str("model", req.Model).
		Str("backend", backend.Name()).
		Int("prompts", len(prompts)).
		Int("failed", failed).
		Msg("Completion served")

	return resp, nil
}
