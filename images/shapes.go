// Package images - Image processing utilities
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in pixel coordinates.
//
// X2,Y2 are inclusive: a box spanning a single pixel column has X1 == X2 and a
// width of one pixel.
type Rect struct {
	X1, Y1, X2, Y2 float32
}

// Width returns the inclusive pixel width of the rectangle.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1+1)
}

// Height returns the inclusive pixel height of the rectangle.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1+1)
}

// Area returns the inclusive pixel area of the rectangle.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// ToRectangle converts the rectangle to an image.Rectangle.
//
// The result is exclusive on the max edge like every image.Rectangle, so the
// inclusive X2/Y2 become X2+1/Y2+1 after truncation.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(int(r.X1), int(r.Y1), int(r.X2)+1, int(r.Y2)+1).Canon()
}

// Clamp restricts the rectangle to the given image bounds.
func (r Rect) Clamp(bounds image.Rectangle) Rect {
	minX, minY := float32(bounds.Min.X), float32(bounds.Min.Y)
	maxX, maxY := float32(bounds.Max.X-1), float32(bounds.Max.Y-1)
	return Rect{
		X1: math32.Min(math32.Max(r.X1, minX), maxX),
		Y1: math32.Min(math32.Max(r.Y1, minY), maxY),
		X2: math32.Min(math32.Max(r.X2, minX), maxX),
		Y2: math32.Min(math32.Max(r.Y2, minY), maxY),
	}
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.2f, %.2f), (%.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU measures how much two rectangles overlap.
//
//	IoU = Area of Intersection / Area of Union
//
// A value of 1.0 means the rectangles are identical and 0.0 means they do not
// touch at all.
//
// Areas follow the inclusive pixel convention: every side length is
// (max - min + 1). Two rectangles sharing a single edge pixel therefore have a
// small non-zero intersection, and a degenerate one-pixel-wide rectangle still
// has a positive area.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 9, Y2: 9}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 14, Y2: 14}
//
//	iouScore := CalculateIoU(rect1, rect2) // intersection=25, union=175, IoU=0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	// The intersection starts where both rectangles have begun and ends as
	// soon as the first one ends.
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := math32.Max(0, ix2-ix1+1)
	interH := math32.Max(0, iy2-iy1+1)
	interArea := interW * interH
	if interArea == 0 {
		return 0.0
	}

	// Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}
