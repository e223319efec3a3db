package render

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func whiteCanvas(w, h int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return canvas
}

func TestStyleFor(t *testing.T) {
	tests := []struct {
		name   string
		bounds image.Rectangle
		want   Style
	}{
		{name: "small", bounds: image.Rect(0, 0, 200, 300), want: Style{BoxThickness: 3, FontScale: 0.6, FontThickness: 2}},
		{name: "large", bounds: image.Rect(0, 0, 1200, 1800), want: Style{BoxThickness: 6, FontScale: 2, FontThickness: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StyleFor(tt.bounds))
		})
	}
}

func TestCaption(t *testing.T) {
	assert.Equal(t, "late-stage-rust: 0.81", Caption("late-stage-rust", 0.8123))
}

func TestRaster_Draw(t *testing.T) {
	canvas := whiteCanvas(200, 200)
	red := models.Palette{0: {R: 255, A: 255}}
	boxes := []postprocess.Box{{Rect: images.Rect{X1: 20, Y1: 50, X2: 120, Y2: 150}, Score: 0.9, Class: 0}}

	require.NoError(t, NewRaster().Draw(canvas, boxes, []string{"rust"}, red))

	assert.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(20, 100), "left edge")
	assert.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(70, 50), "top edge")
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, canvas.RGBAAt(70, 100), "interior untouched")
	assert.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(21, 40), "caption background above the box")
}

func TestRaster_DrawCaptionInsideWhenNoRoomAbove(t *testing.T) {
	canvas := whiteCanvas(200, 200)
	boxes := []postprocess.Box{{Rect: images.Rect{X1: 10, Y1: 0, X2: 150, Y2: 150}, Score: 0.5, Class: 0}}

	require.NoError(t, NewRaster().Draw(canvas, boxes, []string{"healthy"}, models.DiseasePalette))

	assert.Equal(t, models.DiseasePalette.Color(0), canvas.RGBAAt(11, 6))
}

func TestRaster_DrawUnknownClass(t *testing.T) {
	canvas := whiteCanvas(50, 50)
	boxes := []postprocess.Box{{Rect: images.Rect{X1: 1, Y1: 1, X2: 10, Y2: 10}, Class: 3}}

	assert.Error(t, NewRaster().Draw(canvas, boxes, []string{"rust"}, models.DiseasePalette))
}

func TestTextColor(t *testing.T) {
	assert.Equal(t, color.RGBA{A: 255}, textColor(color.RGBA{R: 255, G: 255, A: 255}))
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, textColor(color.RGBA{A: 255}))
}
