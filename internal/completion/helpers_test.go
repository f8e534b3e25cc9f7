package completion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/s33g/completions-gateway/internal/llm"
)

var errBoom = errors.New("boom")

// fakeBackend echoes prompts back, failing the ones listed in fail
type fakeBackend struct {
	concurrent bool
	fail       map[string]error
	delay      func(prompt string) time.Duration
	score      *float64

	calls    atomic.Int32
	inFlight atomic.Int32
	maxMu    sync.Mutex
	maxSeen  int32
}

func (f *fakeBackend) Name() string     { return "fake" }
func (f *fakeBackend) Concurrent() bool { return f.concurrent }

func (f *fakeBackend) Complete(_ context.Context, prompt string, _ llm.GenerationParams) (llm.Output, error) {
	f.calls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	f.maxMu.Lock()
	if n > f.maxSeen {
		f.maxSeen = n
	}
	f.maxMu.Unlock()

	if f.delay != nil {
		time.Sleep(f.delay(prompt))
	}
	if err, ok := f.fail[prompt]; ok {
		return llm.Output{}, err
	}
	if prompt == "panic" {
		panic("generator crashed")
	}
	return llm.Output{Text: "completed " + strings.ToLower(prompt), Score: f.score}, nil
}

func (f *fakeBackend) maxConcurrent() int32 {
	f.maxMu.Lock()
	defer f.maxMu.Unlock()
	return f.maxSeen
}

// staticSource always returns the same backend
type staticSource struct {
	backend llm.Backend
}

func (s staticSource) Backend() llm.Backend { return s.backend }
