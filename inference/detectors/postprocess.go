package detectors

import (
	"image"

	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// OutputLayout describes a YOLOv8 style output tensor of shape
// (1, 4+classes, anchors): rows are cx, cy, w, h followed by one score row
// per class.
type OutputLayout struct {
	Classes int
	Anchors int
}

// DecodeArgs holds the parameters to map raw output back onto the source image.
type DecodeArgs struct {
	Layout          OutputLayout
	ConfidenceFloor float32
	// Factors mapping network coordinates to source pixels.
	ScaleX, ScaleY float32
	// Bounds of the source image. Boxes are clamped to it.
	Bounds image.Rectangle
}

// DecodeOutput converts the raw output tensor into boxes.
//
// The output is transposed to one row per anchor so each candidate reads
// contiguously. Every anchor whose best class score reaches the confidence
// floor becomes a box in source image coordinates.
//
// Arguments:
//   - output: The raw output data. It is not modified.
//   - args: Layout and scaling parameters.
//
// Returns:
//   - []postprocess.Box: The candidate boxes, before NMS.
//   - error: An error if the output does not match the layout.
func DecodeOutput(output []float32, args DecodeArgs) ([]postprocess.Box, error) {
	rows := 4 + args.Layout.Classes
	cols := args.Layout.Anchors
	if args.Layout.Classes <= 0 || cols <= 0 {
		return nil, errors.Errorf("invalid output layout: %d classes, %d anchors", args.Layout.Classes, cols)
	}
	if len(output) != rows*cols {
		return nil, errors.Errorf("output holds %d values, layout needs %d x %d", len(output), rows, cols)
	}

	backing := make([]float32, len(output))
	copy(backing, output)
	t := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to materialize transposed output")
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.New("unexpected tensor data type")
	}

	boxes := make([]postprocess.Box, 0, 16)
	for a := 0; a < cols; a++ {
		row := data[a*rows : (a+1)*rows]

		classID, score := -1, float32(-1)
		for c, s := range row[4:] {
			if s > score {
				classID, score = c, s
			}
		}
		if score < args.ConfidenceFloor {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		rect := images.Rect{
			X1: (cx - w/2) * args.ScaleX,
			Y1: (cy - h/2) * args.ScaleY,
			X2: (cx + w/2) * args.ScaleX,
			Y2: (cy + h/2) * args.ScaleY,
		}
		if !args.Bounds.Empty() {
			rect = rect.Clamp(args.Bounds)
		}

		boxes = append(boxes, postprocess.Box{Rect: rect, Score: score, Class: classID})
	}

	return boxes, nil
}
