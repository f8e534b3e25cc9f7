package completion

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/s33g/completions-gateway/internal/llm"
)

// Assembler builds response envelopes from dispatch results
type Assembler struct {
	// counter is nil when token counting is disabled; usage is then all zeros
	counter *TokenCounter
	now     func() time.Time
	newID   func() string
}

// NewAssembler creates an assembler; pass a nil counter to report zero usage
func NewAssembler(counter *TokenCounter) *Assembler {
	return &Assembler{
		counter: counter,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Assemble builds the response for model from slots, which must be in prompt order
func (a *Assembler) Assemble(model string, prompts []string, slots []Slot) *CompletionResponse {
	resp := &CompletionResponse{
		ID:      a.newID(),
		Object:  ObjectTextCompletion,
		Created: a.now().Unix(),
		Model:   model,
		Choices: make([]CompletionChoice, len(slots)),
	}

	for i, slot := range slots {
		if !slot.OK() {
			resp.Choices[i] = CompletionChoice{
				Index:        i,
				Logprobs:     NoScore,
				FinishReason: FinishReasonError,
				Error: &ChoiceError{
					Message: slot.Err.Error(),
					Type:    errorType(slot.Err),
				},
			}
			continue
		}

		score := NoScore
		if slot.Output.Score != nil {
			score = *slot.Output.Score
		}
		resp.Choices[i] = CompletionChoice{
			Text:         slot.Output.Text,
			Index:        i,
			Logprobs:     score,
			FinishReason: FinishReasonStop,
		}
	}

	if a.counter != nil {
		resp.Usage = a.usage(prompts, resp.Choices)
	}

	return resp
}

func (a *Assembler) usage(prompts []string, choices []CompletionChoice) CompletionUsage {
	u := CompletionUsage{PromptTokens: a.counter.CountAll(prompts)}
	for _, c := range choices {
		if c.Error == nil {
			u.CompletionTokens += a.counter.Count(c.Text)
		}
	}
	u.TotalTokens = u.PromptTokens + u.CompletionTokens
	return u
}

// errorType names the failure category of a slot
func errorType(err error) string {
	switch {
	case errors.Is(err, llm.ErrBackendTransport):
		return "backend_transport_error"
	case errors.Is(err, llm.ErrBackendDecode):
		return "backend_decode_error"
	case errors.Is(err, llm.ErrBackendInvocation):
		return "backend_invocation_error"
	default:
		return "backend_error"
	}
}
