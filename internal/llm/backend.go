package llm

import (
	"context"
	"errors"
)

// Backend error categories. Backends wrap one of these so callers can tell
// why a single prompt produced no text.
var (
	ErrBackendTransport  = errors.New("backend transport error")
	ErrBackendDecode     = errors.New("backend decode error")
	ErrBackendInvocation = errors.New("backend invocation error")
	ErrConfiguration     = errors.New("backend configuration error")
)

// Backend generates text for a single prompt
type Backend interface {
	// Name identifies the backend in logs and responses
	Name() string

	// Complete runs one generation for prompt
	Complete(ctx context.Context, prompt string, params GenerationParams) (Output, error)

	// Concurrent reports whether Complete may be called from several goroutines at once
	Concurrent() bool
}
