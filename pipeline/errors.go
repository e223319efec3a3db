package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformedOutput marks detector output that is inconsistent with its own
// label table.
var ErrMalformedOutput = errors.New("malformed detector output")

// DetectionFailure reports a detector invocation that failed. No partial
// result accompanies it.
type DetectionFailure struct {
	// Index of the pass and of the member within it.
	Pass   int
	Member int
	// Name of the failing detector.
	Detector string
	// The underlying error, as returned by the detector.
	Err error
}

func (e *DetectionFailure) Error() string {
	return fmt.Sprintf("detection failed in pass %d (%s): %v", e.Pass, e.Detector, e.Err)
}

// Unwrap returns the underlying error.
func (e *DetectionFailure) Unwrap() error {
	return e.Err
}
