package llm

// GenerationParams are the backend-agnostic sampling knobs of a completion
// request. Each backend maps the subset it understands onto its own names.
type GenerationParams struct {
	MaxTokens     int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	N             int
	NumBeams      int
	DoSample      bool
	OutputScores  bool
}

// Output is the raw result of one backend call
type Output struct {
	Text string
	// Score is nil when the backend did not report one
	Score *float64
}

// GenerateOptions are the parameters the local model runtime accepts
type GenerateOptions struct {
	NPredict      int
	Temperature   float64
	TopP          float64
	TopK          int
	RepeatPenalty float64
	RepeatLastN   int
	NBatch        int
}

// Request types for the remote inference service

// InferRequest is the body POSTed to the remote endpoint
type InferRequest struct {
	Inputs     string          `json:"inputs"`
	Parameters InferParameters `json:"parameters"`
}

// InferParameters carries the mapped generation parameters
type InferParameters struct {
	MaxNewTokens       int     `json:"max_new_tokens"`
	NumReturnSequences int     `json:"num_return_sequences"`
	Temperature        float64 `json:"temperature"`
	TopP               float64 `json:"top_p"`
	TopK               int     `json:"top_k"`
	RepeatPenalty      float64 `json:"repeat_penalty"`
	DoSample           bool    `json:"do_sample"`
	NumBeams           int     `json:"num_beams"`
	OutputScores       bool    `json:"output_scores"`
}

// ErrorResponse is the error body returned by text-generation servers
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type,omitempty"`
}
