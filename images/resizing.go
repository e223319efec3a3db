package images

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// Fit downscales img so that its longest side is at most maxDimension pixels,
// preserving the aspect ratio. Images that already fit are returned unchanged.
//
// Arguments:
//   - img: The source image.
//   - maxDimension: The maximum width or height in pixels.
//
// Returns:
//   - image.Image: The downscaled image, or img itself when no resize is needed.
func Fit(img image.Image, maxDimension int) image.Image {
	if maxDimension <= 0 {
		return img
	}
	b := img.Bounds()
	if b.Dx() <= maxDimension && b.Dy() <= maxDimension {
		return img
	}
	return resize.Thumbnail(uint(maxDimension), uint(maxDimension), img, resize.Lanczos3)
}

// Stretch resizes img to exactly width x height, ignoring the aspect ratio.
func Stretch(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3), nil
}

// Compress bounds the memory footprint of img: it is fitted to maxDimension
// and re-encoded as JPEG at the given quality.
//
// Arguments:
//   - img: The source image.
//   - maxDimension: The maximum width or height in pixels.
//   - quality: The JPEG quality (1-100).
//
// Returns:
//   - []byte: The JPEG encoded, possibly downscaled image.
//   - error: An error if encoding fails.
func Compress(img image.Image, maxDimension, quality int) ([]byte, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	return Encode(Fit(img, maxDimension), FormatJPEG, quality)
}
