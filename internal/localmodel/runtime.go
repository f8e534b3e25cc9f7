// Package localmodel supervises a llama.cpp server bound to loopback and
// exposes it as a synchronous text generator.
package localmodel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
	"github.com/s33g/completions-gateway/internal/llm"
)

const healthPollInterval = 500 * time.Millisecond

// ErrNotRunning is returned when generation is attempted on a stopped runtime
var ErrNotRunning = errors.New("local model runtime is not running")

// Runtime manages the llama-server child process
type Runtime struct {
	cfg        config.LocalConfig
	modelName  string
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// New creates a runtime for the configured model; call Start to launch it
func New(cfg config.LocalConfig, modelName string, logger zerolog.Logger) *Runtime {
	return &Runtime{
		cfg:        cfg,
		modelName:  modelName,
		baseURL:    cfg.BaseURL(),
		httpClient: &http.Client{},
		logger:     logger.With().Str("component", "localmodel").Logger(),
	}
}

// Start launches llama-server with the configured model and waits until it is ready
func (r *Runtime) Start(ctx context.Context) error {
	if _, err := os.Stat(r.cfg.ModelPath); err != nil {
		return fmt.Errorf("%w: model file: %w", llm.ErrConfiguration, err)
	}

	args := []string{
		"-m", r.cfg.ModelPath,
		"--host", r.cfg.Host,
		"--port", strconv.Itoa(r.cfg.Port),
		"-c", strconv.Itoa(r.cfg.ContextSize),
		"-b", strconv.Itoa(r.cfg.NBatch),
		"--parallel", "1",
	}
	if r.modelName != "" {
		args = append(args, "--alias", r.modelName)
	}

	cmd := exec.Command(r.cfg.Binary, args...)
	if r.cfg.Verbose {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	r.logger.Info().
		Str("binary", r.cfg.Binary).
		Str("model", r.cfg.ModelPath).
		Str("url", r.baseURL).
		Msg("Starting local model runtime")

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: starting llama-server: %w", llm.ErrConfiguration, err)
	}

	exited := make(chan struct{})
	go func() {
		err := cmd.Wait()
		r.logger.Warn().Err(err).Msg("Local model runtime exited")
		close(exited)
	}()

	r.mu.Lock()
	r.cmd = cmd
	r.exited = exited
	r.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.StartupTimeout())
	defer cancel()

	if err := r.waitReady(waitCtx, exited); err != nil {
		r.Stop()
		return err
	}

	r.logger.Info().Msg("Local model runtime ready")
	return nil
}

// waitReady polls the health endpoint until it responds OK
func (r *Runtime) waitReady(ctx context.Context, exited <-chan struct{}) error {
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()

	for {
		if r.healthy(ctx) {
			return nil
		}

		select {
		case <-exited:
			return fmt.Errorf("%w: llama-server exited during startup", llm.ErrConfiguration)
		case <-ctx.Done():
			return fmt.Errorf("local model runtime not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (r *Runtime) healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Stop kills the runtime process
func (r *Runtime) Stop() {
	r.mu.Lock()
	cmd, exited := r.cmd, r.exited
	r.cmd = nil
	r.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	cmd.Process.Kill()
	<-exited
}

type completionRequest struct {
	Prompt        string  `json:"prompt"`
	NPredict      int     `json:"n_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	RepeatLastN   int     `json:"repeat_last_n"`
	Stream        bool    `json:"stream"`
	CachePrompt   bool    `json:"cache_prompt"`
}

type completionResponse struct {
	Content string `json:"content"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements llm.Generator. n_batch is fixed when the process starts.
func (r *Runtime) Generate(ctx context.Context, prompt string, opts llm.GenerateOptions) (string, error) {
	r.mu.Lock()
	running := r.cmd != nil
	r.mu.Unlock()
	if !running {
		return "", ErrNotRunning
	}

	return generate(ctx, r.httpClient, r.baseURL, prompt, opts)
}

// generate posts one prompt to a llama-server /completion endpoint
func generate(ctx context.Context, client *http.Client, baseURL, prompt string, opts llm.GenerateOptions) (string, error) {
	body, err := json.Marshal(completionRequest{
		Prompt:        prompt,
		NPredict:      opts.NPredict,
		Temperature:   opts.Temperature,
		TopP:          opts.TopP,
		TopK:          opts.TopK,
		RepeatPenalty: opts.RepeatPenalty,
		RepeatLastN:   opts.RepeatLastN,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/completion", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp errorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("runtime error (%d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return "", fmt.Errorf("runtime error (%d)", resp.StatusCode)
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return out.Content, nil
}
