// Package inference - Detector interface consumed by the aggregation pipeline.
package inference

import (
	"context"
	"image"

	"github.com/FTsune/kape/models/postprocess"
)

// Prediction is the raw output of one detector invocation.
type Prediction struct {
	// Boxes are in source image pixel coordinates. Class indexes Labels.
	Boxes []postprocess.Box
	// Labels is the label table of the model that produced the boxes.
	Labels []string
}

// Detector runs an object detection model over an image.
type Detector interface {
	// Name identifies the detector in logs and errors.
	Name() string
	// Predict returns every box scoring at least confidenceFloor.
	Predict(ctx context.Context, img image.Image, confidenceFloor float32) (*Prediction, error)
}

// Closer is implemented by detectors holding native resources.
type Closer interface {
	Close() error
}

// DetectorFunc adapts a function into a Detector.
type DetectorFunc struct {
	ID string
	Fn func(ctx context.Context, img image.Image, confidenceFloor float32) (*Prediction, error)
}

// Name returns the ID of the detector.
func (d DetectorFunc) Name() string { return d.ID }

// Predict calls the wrapped function.
func (d DetectorFunc) Predict(ctx context.Context, img image.Image, confidenceFloor float32) (*Prediction, error) {
	return d.Fn(ctx, img, confidenceFloor)
}
