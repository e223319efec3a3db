package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		max        int
		wantW      int
		wantH      int
		sameObject bool
	}{
		{name: "landscape above limit", w: 2400, h: 1200, max: 1200, wantW: 1200, wantH: 600},
		{name: "portrait above limit", w: 600, h: 1800, max: 1200, wantW: 400, wantH: 1200},
		{name: "already small", w: 800, h: 600, max: 1200, wantW: 800, wantH: 600, sameObject: true},
		{name: "disabled", w: 3000, h: 100, max: 0, wantW: 3000, wantH: 100, sameObject: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			out := Fit(src, tt.max)

			assert.Equal(t, tt.wantW, out.Bounds().Dx())
			assert.Equal(t, tt.wantH, out.Bounds().Dy())
			if tt.sameObject {
				assert.Same(t, src, out)
			}
		})
	}
}

func TestStretch(t *testing.T) {
	out, err := Stretch(image.NewRGBA(image.Rect(0, 0, 30, 10)), 64, 64)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 64), out.Bounds())

	_, err = Stretch(image.NewRGBA(image.Rect(0, 0, 30, 10)), 0, 64)
	assert.Error(t, err)
}

func TestCompress(t *testing.T) {
	src := solidImage(1600, 400, color.RGBA{R: 200, G: 200, B: 0, A: 255})

	data, err := Compress(src, 1200, 80)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, DetectFormat(data))

	decoded, _, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 1200, decoded.Bounds().Dx())
	assert.Equal(t, 300, decoded.Bounds().Dy())

	_, err = Compress(nil, 1200, 80)
	assert.Error(t, err)
}
