// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
)

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatUnknown is returned when the header matches no supported format.
	FormatUnknown ImageFormat = "unknown"
)

// DefaultJPEGQuality is the quality used when no explicit quality is given.
const DefaultJPEGQuality = 85

// ErrEmptyImage is returned when decoding an empty buffer.
var ErrEmptyImage = errors.New("empty image data")

// DetectFormat inspects the magic bytes of an encoded image.
func DetectFormat(data []byte) ImageFormat {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return FormatJPEG
	case len(data) >= 8 && bytes.Equal(data[:8], []byte("\x89PNG\r\n\x1a\n")):
		return FormatPNG
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return FormatWebP
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return FormatBMP
	default:
		return FormatUnknown
	}
}

// Decode decodes an encoded image. JPEG images are rotated according to
// their EXIF orientation tag so boxes line up with what the user sees.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - image.Image: The decoded image.
//   - ImageFormat: The detected format.
//   - error: An error if the bytes cannot be decoded.
func Decode(data []byte) (image.Image, ImageFormat, error) {
	if len(data) == 0 {
		return nil, FormatUnknown, ErrEmptyImage
	}

	format := DetectFormat(data)
	switch format {
	case FormatWebP:
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, format, errors.Wrap(err, "failed to decode webp image")
		}
		return img, format, nil
	case FormatUnknown:
		return nil, format, errors.New("unsupported image format")
	default:
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			return nil, format, errors.Wrapf(err, "failed to decode %s image", format)
		}
		return img, format, nil
	}
}

// Load decodes data into an Image description and the decoded pixels.
func Load(data []byte) (*Image, image.Image, error) {
	img, format, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	b := img.Bounds()
	return &Image{Format: format, Data: data, Width: b.Dx(), Height: b.Dy()}, img, nil
}

// Encode encodes img in the given format. Quality applies to JPEG and WebP.
func Encode(img image.Image, format ImageFormat, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case FormatJPEG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		err = png.Encode(&buf, img)
	case FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		return nil, errors.Errorf("unsupported output format: %s", format)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s image", format)
	}
	return buf.Bytes(), nil
}

// Clone copies img into a new RGBA image whose bounds start at the origin.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
