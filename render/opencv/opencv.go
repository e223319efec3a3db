// Package opencv - Box renderer backed by OpenCV through gocv.
package opencv

import (
	"image"
	"image/draw"

	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/FTsune/kape/render"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Renderer draws boxes with OpenCV rectangles and Hershey captions.
type Renderer struct{}

var _ render.Renderer = (*Renderer)(nil)

// NewRenderer creates an OpenCV renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Draw draws every box and caption onto canvas.
//
// Arguments:
//   - canvas: The image drawn onto.
//   - boxes: The boxes, in canvas coordinates.
//   - labels: The label table indexed by box class.
//   - palette: The colour of each class.
//
// Returns:
//   - error: An error if a box class has no label or the image conversion fails.
func (r *Renderer) Draw(canvas *image.RGBA, boxes []postprocess.Box, labels []string, palette models.Palette) error {
	if len(boxes) == 0 {
		return nil
	}

	mat, err := gocv.ImageToMatRGB(canvas)
	if err != nil {
		return errors.Wrap(err, "failed to convert canvas to mat")
	}
	defer mat.Close()

	style := render.StyleFor(canvas.Bounds())
	origin := canvas.Bounds().Min

	for _, b := range boxes {
		if b.Class < 0 || b.Class >= len(labels) {
			return errors.Errorf("class %d has no label (%d labels)", b.Class, len(labels))
		}
		c := palette.Color(b.Class)
		rect := b.Rect.Clamp(canvas.Bounds()).ToRectangle().Sub(origin)

		gocv.Rectangle(&mat, rect, c, style.BoxThickness)
		gocv.PutText(&mat, render.Caption(labels[b.Class], b.Score), image.Pt(rect.Min.X, rect.Min.Y-10),
			gocv.FontHersheySimplex, style.FontScale, c, style.FontThickness)
	}

	out, err := mat.ToImage()
	if err != nil {
		return errors.Wrap(err, "failed to convert mat to image")
	}
	draw.Draw(canvas, canvas.Bounds(), out, out.Bounds().Min, draw.Src)
	return nil
}
