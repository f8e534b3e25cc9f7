package llm

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
)

// Sampling values used when legacy sampling is enabled
const (
	legacyTopK          = 20
	legacyRepeatPenalty = 1.2
	legacyRepeatLastN   = 10
)

// Generator is a locally hosted model that produces text synchronously
type Generator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
}

// LocalBackend runs prompts through a locally hosted model
type LocalBackend struct {
	model  Generator
	cfg    config.LocalConfig
	logger zerolog.Logger
}

// NewLocalBackend wraps model as a Backend
func NewLocalBackend(model Generator, cfg config.LocalConfig, logger zerolog.Logger) (*LocalBackend, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: local model is not running", ErrConfiguration)
	}

	return &LocalBackend{
		model:  model,
		cfg:    cfg,
		logger: logger.With().Str("component", "local").Logger(),
	}, nil
}

// Name implements Backend
func (b *LocalBackend) Name() string {
	return "local"
}

// Concurrent implements Backend. The runtime generates one sequence at a time.
func (b *LocalBackend) Concurrent() bool {
	return false
}

// Complete implements Backend. The local model never reports a score.
func (b *LocalBackend) Complete(ctx context.Context, prompt string, params GenerationParams) (Output, error) {
	opts := b.options(params)

	text, err := b.model.Generate(ctx, prompt, opts)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrBackendInvocation, err)
	}

	b.logger.Debug().
		Int("n_predict", opts.NPredict).
		Int("top_k", opts.TopK).
		Int("text_len", len(text)).
		Msg("Local generation finished")

	return Output{Text: text}, nil
}

// options maps request params onto runtime options; n, beams, do_sample and scores are dropped
func (b *LocalBackend) options(p GenerationParams) GenerateOptions {
	opts := GenerateOptions{
		NPredict:      p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		RepeatPenalty: p.RepeatPenalty,
		RepeatLastN:   b.cfg.RepeatLastN,
		NBatch:        b.cfg.NBatch,
	}

	if b.cfg.LegacySampling {
		opts.TopK = legacyTopK
		opts.RepeatPenalty = legacyRepeatPenalty
		opts.RepeatLastN = legacyRepeatLastN
	}

	return opts
}
