package localmodel

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
	"github.com/s33g/completions-gateway/internal/llm"
)

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/completion" {
			t.Errorf("Expected /completion, got %s", r.URL.Path)
		}

		var req completionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}
		if req.Prompt != "Hello" || req.NPredict != 7 || req.TopK != 20 || req.RepeatLastN != 10 {
			t.Errorf("unexpected request %+v", req)
		}
		if req.Stream {
			t.Error("Runtime requests must not stream")
		}

		json.NewEncoder(w).Encode(completionResponse{Content: ", world"})
	}))
	defer server.Close()

	text, err := generate(context.Background(), server.Client(), server.URL, "Hello", llm.GenerateOptions{
		NPredict:    7,
		TopK:        20,
		RepeatLastN: 10,
	})
	if err != nil {
		t.Fatalf("generate() error = %v", err)
	}
	if text != ", world" {
		t.Errorf("text = %q, want ', world'", text)
	}
}

func TestGenerateError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error": {"message": "Loading model"}}`))
	}))
	defer server.Close()

	_, err := generate(context.Background(), server.Client(), server.URL, "x", llm.GenerateOptions{})
	if err == nil {
		t.Fatal("Expected error from unavailable runtime")
	}
}

func TestRuntime_GenerateWhenStopped(t *testing.T) {
	rt := New(config.DefaultConfig().Local, "test", zerolog.Nop())

	if _, err := rt.Generate(context.Background(), "x", llm.GenerateOptions{}); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Generate() error = %v, want ErrNotRunning", err)
	}
}

func TestRuntime_StartMissingModel(t *testing.T) {
	cfg := config.DefaultConfig().Local
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.gguf")

	err := New(cfg, "test", zerolog.Nop()).Start(context.Background())
	if !errors.Is(err, llm.ErrConfiguration) {
		t.Errorf("Start() error = %v, want ErrConfiguration", err)
	}
}

func TestRuntime_WaitReady(t *testing.T) {
	ready := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ready:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer server.Close()

	rt := New(config.DefaultConfig().Local, "test", zerolog.Nop())
	rt.baseURL = server.URL

	time.AfterFunc(100*time.Millisecond, func() { close(ready) })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rt.waitReady(ctx, make(chan struct{})); err != nil {
		t.Fatalf("waitReady() error = %v", err)
	}
}

func TestRuntime_WaitReadyProcessExited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	rt := New(config.DefaultConfig().Local, "test", zerolog.Nop())
	rt.baseURL = server.URL

	exited := make(chan struct{})
	close(exited)

	if err := rt.waitReady(context.Background(), exited); !errors.Is(err, llm.ErrConfiguration) {
		t.Errorf("waitReady() error = %v, want ErrConfiguration", err)
	}
}
