package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
)

type recordingGenerator struct {
	opts  []GenerateOptions
	reply string
	err   error
}

func (g *recordingGenerator) Generate(_ context.Context, prompt string, opts GenerateOptions) (string, error) {
	g.opts = append(g.opts, opts)
	if g.err != nil {
		return "", g.err
	}
	return prompt + g.reply, nil
}

func TestLocalBackend_PassesRequestValues(t *testing.T) {
	gen := &recordingGenerator{reply: "!"}
	backend, err := NewLocalBackend(gen, config.LocalConfig{RepeatLastN: 64, NBatch: 512}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewLocalBackend() error = %v", err)
	}

	out, err := backend.Complete(context.Background(), "Hello", GenerationParams{
		MaxTokens:     7,
		Temperature:   0.3,
		TopP:          0.9,
		TopK:          50,
		RepeatPenalty: 1.1,
		N:             3,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if out.Text != "Hello!" {
		t.Errorf("Text = %q, want Hello!", out.Text)
	}
	if out.Score != nil {
		t.Error("Local backend should not report a score")
	}

	want := GenerateOptions{
		NPredict:      7,
		Temperature:   0.3,
		TopP:          0.9,
		TopK:          50,
		RepeatPenalty: 1.1,
		RepeatLastN:   64,
		NBatch:        512,
	}
	if gen.opts[0] != want {
		t.Errorf("options = %+v, want %+v", gen.opts[0], want)
	}
}

func TestLocalBackend_LegacySampling(t *testing.T) {
	gen := &recordingGenerator{}
	backend, _ := NewLocalBackend(gen, config.LocalConfig{RepeatLastN: 64, NBatch: 1024, LegacySampling: true}, zerolog.Nop())

	if _, err := backend.Complete(context.Background(), "x", GenerationParams{TopK: 50, RepeatPenalty: 1.0, TopP: 0.5}); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	got := gen.opts[0]
	if got.TopK != 20 || got.RepeatPenalty != 1.2 || got.RepeatLastN != 10 {
		t.Errorf("legacy options = %+v, want top_k 20, repeat_penalty 1.2, repeat_last_n 10", got)
	}
	if got.TopP != 0.5 {
		t.Errorf("TopP = %v, want request value 0.5", got.TopP)
	}
}

func TestLocalBackend_InvocationError(t *testing.T) {
	gen := &recordingGenerator{err: errors.New("out of memory")}
	backend, _ := NewLocalBackend(gen, config.LocalConfig{}, zerolog.Nop())

	_, err := backend.Complete(context.Background(), "x", GenerationParams{})
	if !errors.Is(err, ErrBackendInvocation) {
		t.Errorf("Complete() error = %v, want ErrBackendInvocation", err)
	}
	if backend.Concurrent() {
		t.Error("Local backend must not be called concurrently")
	}
}

func TestRegistry_SelectAndReload(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Local.ModelPath = "/models/ggml.bin"

	registry, err := NewRegistry(cfg, &recordingGenerator{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	if got := registry.Backend().Name(); got != "local" {
		t.Errorf("Backend() = %s, want local", got)
	}

	remoteCfg := config.DefaultConfig()
	remoteCfg.Inference.Mode = config.ModeGPU
	remoteCfg.Remote.Endpoint = "http://localhost:8080"

	if err := registry.Reload(remoteCfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := registry.Backend().Name(); got != "remote" {
		t.Errorf("Backend() = %s, want remote", got)
	}

	// A broken config keeps the current backend
	broken := config.DefaultConfig()
	broken.Inference.Mode = config.ModeRemote
	if err := registry.Reload(broken); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Reload() error = %v, want ErrConfiguration", err)
	}
	if got := registry.Backend().Name(); got != "remote" {
		t.Errorf("Backend() = %s after failed reload, want remote", got)
	}
}

func TestRegistry_LocalWithoutRuntime(t *testing.T) {
	cfg := config.DefaultConfig()

	if _, err := NewRegistry(cfg, nil, zerolog.Nop()); !errors.Is(err, ErrConfiguration) {
		t.Errorf("NewRegistry() error = %v, want ErrConfiguration", err)
	}
}
