// Package postprocess - Postprocessing utilities for detector outputs.
package postprocess

import (
	"fmt"

	"github.com/FTsune/kape/images"
)

// Box represents a single detected region produced by one detector pass.
type Box struct {
	// The bounding box of the region in source image pixels.
	Rect images.Rect
	// The confidence score of the region in [0, 1].
	Score float32
	// The predicted class index into the pass label table.
	Class int
}

func (b Box) String() string {
	return fmt.Sprintf("Box class=%d (score %f): %s", b.Class, b.Score, b.Rect)
}
