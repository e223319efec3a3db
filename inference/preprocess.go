package inference

import (
	"image"

	"github.com/FTsune/kape/images"
	"github.com/pkg/errors"
)

// PrepareInput stretches img to size x size and writes it into dst as
// planar RGB (CHW) scaled to [0, 1].
//
// Arguments:
//   - img: The source image.
//   - size: The square network input resolution.
//   - dst: The destination buffer, at least 3*size*size floats.
//
// Returns:
//   - scaleX, scaleY: Factors mapping network coordinates back to source pixels.
//   - error: An error if dst is too small.
func PrepareInput(img image.Image, size int, dst []float32) (float32, float32, error) {
	if size <= 0 {
		return 0, 0, errors.Errorf("invalid input size %d", size)
	}
	channelSize := size * size
	if len(dst) < channelSize*3 {
		return 0, 0, errors.Errorf("destination tensor only holds %d floats, needs %d", len(dst), channelSize*3)
	}

	bounds := img.Bounds()
	if bounds.Empty() {
		return 0, 0, errors.New("empty image")
	}
	scaleX := float32(bounds.Dx()) / float32(size)
	scaleY := float32(bounds.Dy()) / float32(size)

	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized, err := images.Stretch(img, size, size)
	if err != nil {
		return 0, 0, err
	}
	rb := resized.Bounds()

	i := 0
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return scaleX, scaleY, nil
}
