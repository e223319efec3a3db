package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDetectFormat(t *testing.T) {
	img := solidImage(8, 8, color.RGBA{R: 10, G: 200, B: 30, A: 255})

	pngBytes, err := Encode(img, FormatPNG, 0)
	require.NoError(t, err)
	jpegBytes, err := Encode(img, FormatJPEG, 90)
	require.NoError(t, err)

	assert.Equal(t, FormatPNG, DetectFormat(pngBytes))
	assert.Equal(t, FormatJPEG, DetectFormat(jpegBytes))
	assert.Equal(t, FormatWebP, DetectFormat([]byte("RIFF\x00\x00\x00\x00WEBPVP8 ")))
	assert.Equal(t, FormatBMP, DetectFormat([]byte("BM\x00\x00")))
	assert.Equal(t, FormatUnknown, DetectFormat([]byte("hello")))
}

func TestDecode(t *testing.T) {
	img := solidImage(32, 16, color.RGBA{R: 120, G: 60, B: 30, A: 255})

	t.Run("png round trip keeps pixels", func(t *testing.T) {
		data, err := Encode(img, FormatPNG, 0)
		require.NoError(t, err)

		decoded, format, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, FormatPNG, format)
		assert.Equal(t, 32, decoded.Bounds().Dx())
		assert.Equal(t, 16, decoded.Bounds().Dy())

		r, g, b, _ := decoded.At(5, 5).RGBA()
		assert.Equal(t, uint32(120), r>>8)
		assert.Equal(t, uint32(60), g>>8)
		assert.Equal(t, uint32(30), b>>8)
	})

	t.Run("jpeg keeps dimensions", func(t *testing.T) {
		data, err := Encode(img, FormatJPEG, 90)
		require.NoError(t, err)

		meta, decoded, err := Load(data)
		require.NoError(t, err)
		assert.Equal(t, FormatJPEG, meta.Format)
		assert.Equal(t, 32, meta.Width)
		assert.Equal(t, 16, meta.Height)
		assert.Equal(t, image.Rect(0, 0, 32, 16), decoded.Bounds())
	})

	t.Run("empty", func(t *testing.T) {
		_, _, err := Decode(nil)
		assert.ErrorIs(t, err, ErrEmptyImage)
	})

	t.Run("garbage", func(t *testing.T) {
		_, format, err := Decode([]byte("definitely not an image"))
		assert.Error(t, err)
		assert.Equal(t, FormatUnknown, format)
	})
}

func TestEncode_UnsupportedFormat(t *testing.T) {
	_, err := Encode(solidImage(2, 2, color.RGBA{A: 255}), FormatBMP, 80)
	assert.Error(t, err)
}

func TestClone(t *testing.T) {
	src := solidImage(4, 4, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	sub := src.SubImage(image.Rect(1, 1, 3, 3))

	dst := Clone(sub)
	assert.Equal(t, image.Rect(0, 0, 2, 2), dst.Bounds())

	dst.SetRGBA(0, 0, color.RGBA{R: 255, A: 255})
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, src.RGBAAt(1, 1), "clone must not alias the source")
}
