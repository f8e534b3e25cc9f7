package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/llm"
)

// Slot is the result reserved for one prompt, in request order
type Slot struct {
	Output llm.Output
	Err    error
}

// OK reports whether the backend call succeeded
func (s Slot) OK() bool {
	return s.Err == nil
}

// Dispatcher issues one backend call per prompt
type Dispatcher struct {
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		logger: logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch runs backend once per prompt and returns one slot per prompt in
// the same order. Backends that are safe for concurrent use are called in
// parallel and all calls are awaited; others are called one after another.
// A failed call only affects its own slot.
func (d *Dispatcher) Dispatch(ctx context.Context, backend llm.Backend, prompts []string, params llm.GenerationParams) []Slot {
	slots := make([]Slot, len(prompts))
	start := time.Now()

	if backend.Concurrent() && len(prompts) > 1 {
		var wg sync.WaitGroup
		for i, prompt := range prompts {
			i, prompt := i, prompt
			wg.Add(1)
			go func() {
				defer wg.Done()
				slots[i] = d.call(ctx, backend, i, prompt, params)
			}()
		}
		wg.Wait()
	} else {
		for i, prompt := range prompts {
			slots[i] = d.call(ctx, backend, i, prompt, params)
		}
	}

	d.logger.Debug().
		Str("backend", backend.Name()).
		Int("prompts", len(prompts)).
		Dur("elapsed", time.Since(start)).
		Msg("Dispatch finished")

	return slots
}

// call runs a single prompt, turning a panic into a slot error
func (d *Dispatcher) call(ctx context.Context, backend llm.Backend, index int, prompt string, params llm.GenerationParams) (slot Slot) {
	defer func() {
		if r := recover(); r != nil {
			slot = Slot{Err: fmt.Errorf("%w: panic: %v", llm.ErrBackendInvocation, r)}
			d.logSlotError(backend, index, slot.Err)
		}
	}()

	out, err := backend.Complete(ctx, prompt, params)
	if err != nil {
		d.logSlotError(backend, index, err)
		return Slot{Err: err}
	}
	return Slot{Output: out}
}

func (d *Dispatcher) logSlotError(backend llm.Backend, index int, err error) {
	d.logger.Error().
		Err(err).
		Str("backend", backend.Name()).
		Int("slot", index).
		Msg("Backend call failed")
}
