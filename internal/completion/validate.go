package completion

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFeature is returned for request shapes this service does not serve
	ErrUnsupportedFeature = errors.New("unsupported feature")

	// ErrAllSlotsFailed is returned when no prompt of a request produced text
	ErrAllSlotsFailed = errors.New("all backend calls failed")
)

// Validate rejects requests that must not reach a backend. Numeric ranges
// are left to the backends.
func Validate(req *CompletionRequest) error {
	if req.Stream {
		return fmt.Errorf("%w: streaming is not implemented", ErrUnsupportedFeature)
	}
	return nil
}
