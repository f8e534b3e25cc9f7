package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/s33g/completions-gateway/internal/config"
)

// maxErrorBody bounds how much of a failed response is echoed into errors
const maxErrorBody = 512

// RemoteBackend sends one HTTP request per prompt to a text-generation server
type RemoteBackend struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	logger     zerolog.Logger
}

// NewRemoteBackend creates a backend for the configured inference endpoint
func NewRemoteBackend(cfg config.RemoteConfig, logger zerolog.Logger) (*RemoteBackend, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("%w: remote endpoint is not set", ErrConfiguration)
	}

	// API key is optional (e.g., for a sidecar server)
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}

	return &RemoteBackend{
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		endpoint:   cfg.Endpoint,
		apiKey:     apiKey,
		logger:     logger.With().Str("component", "remote").Logger(),
	}, nil
}

// Name implements Backend
func (b *RemoteBackend) Name() string {
	return "remote"
}

// Concurrent implements Backend
func (b *RemoteBackend) Concurrent() bool {
	return true
}

// Complete implements Backend
func (b *RemoteBackend) Complete(ctx context.Context, prompt string, params GenerationParams) (Output, error) {
	body, err := json.Marshal(InferRequest{
		Inputs:     prompt,
		Parameters: mapRemoteParams(params),
	})
	if err != nil {
		return Output{}, fmt.Errorf("%w: failed to marshal request: %w", ErrBackendInvocation, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return Output{}, fmt.Errorf("%w: failed to create request: %w", ErrConfiguration, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Output{}, fmt.Errorf("%w: request failed: %w", ErrBackendTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Output{}, fmt.Errorf("%w: failed to read response: %w", ErrBackendTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return Output{}, fmt.Errorf("%w: server error (%d): %s", ErrBackendTransport, resp.StatusCode, errResp.Error)
		}
		return Output{}, fmt.Errorf("%w: server error (%d): %s", ErrBackendTransport, resp.StatusCode, truncate(respBody, maxErrorBody))
	}

	out, err := decodeInferResponse(respBody)
	if err != nil {
		return Output{}, err
	}

	b.logger.Debug().
		Int("prompt_len", len(prompt)).
		Int("text_len", len(out.Text)).
		Bool("scored", out.Score != nil).
		Msg("Remote generation finished")

	return out, nil
}

// mapRemoteParams renames max_tokens and n to the server's names and forwards the rest as-is
func mapRemoteParams(p GenerationParams) InferParameters {
	return InferParameters{
		MaxNewTokens:       p.MaxTokens,
		NumReturnSequences: p.N,
		Temperature:        p.Temperature,
		TopP:               p.TopP,
		TopK:               p.TopK,
		RepeatPenalty:      p.RepeatPenalty,
		DoSample:           p.DoSample,
		NumBeams:           p.NumBeams,
		OutputScores:       p.OutputScores,
	}
}

type inferResponse struct {
	GeneratedText *string         `json:"generated_text"`
	Scores        json.RawMessage `json:"scores"`
}

// decodeInferResponse accepts either an object or the one-element list some servers return
func decodeInferResponse(body []byte) (Output, error) {
	trimmed := bytes.TrimSpace(body)

	var parsed inferResponse
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []inferResponse
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return Output{}, fmt.Errorf("%w: %w", ErrBackendDecode, err)
		}
		if len(list) == 0 {
			return Output{}, fmt.Errorf("%w: empty response list", ErrBackendDecode)
		}
		parsed = list[0]
	} else if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrBackendDecode, err)
	}

	if parsed.GeneratedText == nil {
		return Output{}, fmt.Errorf("%w: response has no generated_text", ErrBackendDecode)
	}

	out := Output{Text: *parsed.GeneratedText}

	// Anything other than a plain number is treated as not reported
	var score float64
	if len(parsed.Scores) > 0 && string(parsed.Scores) != "null" && json.Unmarshal(parsed.Scores, &score) == nil {
		out.Score = &score
	}

	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
