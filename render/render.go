// Package render - Draws detection boxes and captions onto images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/up-zero/gotool/imageutil"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Renderer draws the boxes of one detector pass onto a canvas.
type Renderer interface {
	// Draw draws every box with its caption. labels is the label table the
	// box classes index into and palette selects the colour per class.
	Draw(canvas *image.RGBA, boxes []postprocess.Box, labels []string, palette models.Palette) error
}

// boxStroke is the width of a single DrawThickLine pass.
const boxStroke = 3

// Style holds the size dependent drawing parameters of an image.
type Style struct {
	BoxThickness  int
	FontScale     float64
	FontThickness int
}

// StyleFor scales line and text sizes with the smaller image side so
// captions stay legible on large photographs.
func StyleFor(bounds image.Rectangle) Style {
	short := bounds.Dx()
	if bounds.Dy() < short {
		short = bounds.Dy()
	}
	return Style{
		BoxThickness:  max(3, short/200),
		FontScale:     max(0.6, float64(short)/600),
		FontThickness: max(2, short/250),
	}
}

// Caption formats the text drawn above a box.
func Caption(label string, score float32) string {
	return fmt.Sprintf("%s: %.2f", label, score)
}

// Raster is a pure Go renderer using a bitmap font.
type Raster struct{}

// NewRaster creates a raster renderer.
func NewRaster() *Raster {
	return &Raster{}
}

// Draw draws boxes and captions onto canvas.
//
// Arguments:
//   - canvas: The image drawn onto.
//   - boxes: The boxes, in canvas coordinates.
//   - labels: The label table indexed by box class.
//   - palette: The colour of each class.
//
// Returns:
//   - error: An error if a box class has no label.
func (r *Raster) Draw(canvas *image.RGBA, boxes []postprocess.Box, labels []string, palette models.Palette) error {
	style := StyleFor(canvas.Bounds())

	for _, b := range boxes {
		if b.Class < 0 || b.Class >= len(labels) {
			return errors.Errorf("class %d has no label (%d labels)", b.Class, len(labels))
		}
		c := palette.Color(b.Class)
		rect := b.Rect.Clamp(canvas.Bounds()).ToRectangle()

		drawBox(canvas, rect, style.BoxThickness, c)
		drawCaption(canvas, Caption(labels[b.Class], b.Score), rect.Min, style, c)
	}
	return nil
}

// drawBox strokes rect inwards until the requested thickness is reached.
func drawBox(dst *image.RGBA, rect image.Rectangle, thickness int, c color.RGBA) {
	for inset := 0; inset < thickness; inset += boxStroke {
		r := rect.Inset(inset)
		if r.Empty() {
			return
		}
		tl := r.Min
		tr := image.Pt(r.Max.X-1, r.Min.Y)
		br := image.Pt(r.Max.X-1, r.Max.Y-1)
		bl := image.Pt(r.Min.X, r.Max.Y-1)

		imageutil.DrawThickLine(dst, tl, tr, boxStroke, c)
		imageutil.DrawThickLine(dst, tr, br, boxStroke, c)
		imageutil.DrawThickLine(dst, br, bl, boxStroke, c)
		imageutil.DrawThickLine(dst, bl, tl, boxStroke, c)
	}
}

// drawCaption renders text on a filled label just above origin, or inside the
// box when there is no room above it.
func drawCaption(dst *image.RGBA, text string, origin image.Point, style Style, c color.RGBA) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()

	label := image.NewRGBA(image.Rect(0, 0, width+4, height+2))
	draw.Draw(label, label.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  label,
		Src:  image.NewUniform(textColor(c)),
		Face: face,
		Dot:  fixed.P(2, face.Metrics().Ascent.Ceil()+1),
	}
	d.DrawString(text)

	// The bitmap font has a fixed size, so larger scales enlarge the label.
	var scaled image.Image = label
	if factor := style.FontScale / 0.6; factor > 1.01 {
		b := label.Bounds()
		scaled = resize.Resize(uint(float64(b.Dx())*factor), uint(float64(b.Dy())*factor), label, resize.NearestNeighbor)
	}

	sb := scaled.Bounds()
	at := image.Pt(origin.X, origin.Y-sb.Dy()-2)
	if at.Y < dst.Bounds().Min.Y {
		at.Y = origin.Y + style.BoxThickness
	}
	draw.Draw(dst, sb.Sub(sb.Min).Add(at), scaled, sb.Min, draw.Src)
}

// textColor picks black or white, whichever contrasts with the background.
func textColor(bg color.RGBA) color.RGBA {
	luma := 299*int(bg.R) + 587*int(bg.G) + 114*int(bg.B)
	if luma > 128*1000 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}
