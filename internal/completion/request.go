package completion

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/s33g/completions-gateway/internal/llm"
)

// Prompt is either a single string or an ordered list of strings
type Prompt struct {
	values []string
	batch  bool
	set    bool
}

// SinglePrompt builds a one-string prompt
func SinglePrompt(s string) Prompt {
	return Prompt{values: []string{s}, set: true}
}

// BatchPrompt builds a list prompt
func BatchPrompt(s ...string) Prompt {
	return Prompt{values: append([]string(nil), s...), batch: true, set: true}
}

// Values returns the prompts in request order
func (p Prompt) Values() []string {
	return p.values
}

// IsBatch reports whether the prompt was sent as a list
func (p Prompt) IsBatch() bool {
	return p.batch
}

// IsSet reports whether the prompt field was present
func (p Prompt) IsSet() bool {
	return p.set
}

// UnmarshalJSON accepts a string or an array of strings
func (p *Prompt) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*p = Prompt{}
		return nil
	}

	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("prompt must be a string or a list of strings: %w", err)
		}
		*p = BatchPrompt(list...)
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return fmt.Errorf("prompt must be a string or a list of strings: %w", err)
	}
	*p = SinglePrompt(s)
	return nil
}

// MarshalJSON writes the prompt back in the shape it was received
func (p Prompt) MarshalJSON() ([]byte, error) {
	if !p.set {
		return []byte("null"), nil
	}
	if p.batch {
		return json.Marshal(p.values)
	}
	return json.Marshal(p.values[0])
}

// CompletionRequest is the body of POST /completions
type CompletionRequest struct {
	Model         string  `json:"model"`
	Prompt        Prompt  `json:"prompt"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	N             int     `json:"n"`
	Stream        bool    `json:"stream"`
	OutputScores  bool    `json:"output_scores"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	DoSample      bool    `json:"do_sample"`
	NumBeams      int     `json:"num_beams"`
}

// NewRequest returns a request with every optional field at its default
func NewRequest(model string, prompt Prompt) CompletionRequest {
	return CompletionRequest{
		Model:         model,
		Prompt:        prompt,
		MaxTokens:     7,
		Temperature:   0,
		TopP:          1.0,
		TopK:          50,
		N:             1,
		RepeatPenalty: 1.0,
		DoSample:      true,
		NumBeams:      1,
	}
}

// UnmarshalJSON fills defaults for fields absent from the body
func (r *CompletionRequest) UnmarshalJSON(data []byte) error {
	type plain CompletionRequest
	req := plain(NewRequest("", Prompt{}))
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	*r = CompletionRequest(req)
	return nil
}

// Params extracts the backend-agnostic generation parameters
func (r *CompletionRequest) Params() llm.GenerationParams {
	return llm.GenerationParams{
		MaxTokens:     r.MaxTokens,
		Temperature:   r.Temperature,
		TopP:          r.TopP,
		TopK:          r.TopK,
		RepeatPenalty: r.RepeatPenalty,
		N:             r.N,
		NumBeams:      r.NumBeams,
		DoSample:      r.DoSample,
		OutputScores:  r.OutputScores,
	}
}
