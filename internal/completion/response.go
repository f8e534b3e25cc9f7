package completion

const (
	// ObjectTextCompletion is the object tag of every response
	ObjectTextCompletion = "text_completion"

	FinishReasonStop  = "stop"
	FinishReasonError = "error"

	// NoScore is reported when the backend gave no score
	NoScore = -1.0
)

// CompletionChoice is one generated result
type CompletionChoice struct {
	Text         string       `json:"text"`
	Index        int          `json:"index"`
	Logprobs     float64      `json:"logprobs"`
	FinishReason string       `json:"finish_reason"`
	Error        *ChoiceError `json:"error,omitempty"`
}

// ChoiceError marks a slot whose backend call failed
type ChoiceError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// CompletionUsage holds token accounting
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// CompletionResponse is the normalized completion envelope
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   CompletionUsage    `json:"usage"`
}

// Failed reports how many choices carry an error
func (r *CompletionResponse) Failed() int {
	n := 0
	for _, c := range r.Choices {
		if c.Error != nil {
			n++
		}
	}
	return n
}
