package completion

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with a tiktoken encoding
type TokenCounter struct {
	encoding string

	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
	failed  bool
}

// NewTokenCounter creates a counter for the named encoding (e.g. cl100k_base)
func NewTokenCounter(encoding string) *TokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TokenCounter{encoding: encoding}
}

// Count returns the number of tokens in text. A nil counter estimates.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil {
		return estimateTokens(text)
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	encoder := tc.load()
	if encoder == nil {
		return estimateTokens(text)
	}
	return len(encoder.Encode(text, nil, nil))
}

// CountAll sums Count over texts
func (tc *TokenCounter) CountAll(texts []string) int {
	total := 0
	for _, text := range texts {
		total += tc.Count(text)
	}
	return total
}

// load fetches the encoder once; a failed load falls back to estimation for good.
// Callers hold tc.mu.
func (tc *TokenCounter) load() *tiktoken.Tiktoken {
	if tc.encoder == nil && !tc.failed {
		encoder, err := tiktoken.GetEncoding(tc.encoding)
		if err != nil {
			tc.failed = true
			return nil
		}
		tc.encoder = encoder
	}
	return tc.encoder
}

// estimateTokens provides a rough token estimate (chars/4)
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
