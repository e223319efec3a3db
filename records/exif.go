package records

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoMetadata is returned for images without readable EXIF data.
var ErrNoMetadata = errors.New("image has no EXIF metadata")

// Location is a GPS position in decimal degrees.
type Location struct {
	Latitude  float64
	Longitude float64
	// Altitude in metres. Negative below sea level. Nil when absent.
	Altitude *float64
}

// Metadata is what the records need from an image's EXIF block.
type Metadata struct {
	// Location is nil when GPS data is absent or out of range.
	Location *Location
	// Taken is zero when the image carries no date.
	Taken time.Time
}

// ReadMetadata extracts the GPS position and capture time of an encoded image.
//
// Arguments:
//   - data: A JPEG or TIFF encoded image.
//
// Returns:
//   - Metadata: The fields that could be read.
//   - error: ErrNoMetadata when the image has no EXIF block at all.
func ReadMetadata(data []byte) (Metadata, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return Metadata{}, errors.Wrap(ErrNoMetadata, err.Error())
	}

	var md Metadata
	if taken, err := x.DateTime(); err == nil {
		md.Taken = taken
	}
	md.Location = location(x)
	return md, nil
}

func location(x *exif.Exif) *Location {
	lat, lon, err := x.LatLong()
	if err != nil {
		return nil
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}

	loc := &Location{Latitude: lat, Longitude: lon}
	if alt, ok := altitude(x); ok {
		loc.Altitude = &alt
	}
	return loc
}

func altitude(x *exif.Exif) (float64, bool) {
	tag, err := x.Get(exif.GPSAltitude)
	if err != nil {
		return 0, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil {
		return 0, false
	}

	alt := float64(num)
	if den != 0 {
		alt /= float64(den)
	}

	// Reference 1 means below sea level.
	if ref, err := x.Get(exif.GPSAltitudeRef); err == nil {
		if v, err := ref.Int(0); err == nil && v == 1 {
			alt = -alt
		}
	}
	return alt, true
}
