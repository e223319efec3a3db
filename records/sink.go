package records

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Sink persists records.
type Sink interface {
	Save(r Record) error
}

// Header is the column row written to new record files.
var Header = []string{"Timestamp", "Disease Detected", "Confidence", "Latitude", "Longitude", "Altitude"}

const missing = "N/A"

// CSVSink appends records to a CSV file, writing the header when the file is
// new or empty. It is safe for concurrent use.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink creates a sink appending to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Save appends one record.
func (s *CSVSink) Save(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", s.path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", s.path)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header); err != nil {
			return errors.Wrap(err, "failed to write header")
		}
	}
	if err := w.Write(row(r)); err != nil {
		return errors.Wrap(err, "failed to write record")
	}
	w.Flush()
	return errors.Wrapf(w.Error(), "failed to flush %s", s.path)
}

func row(r Record) []string {
	out := []string{
		r.Timestamp.Format(time.DateTime),
		r.Disease,
		strconv.FormatFloat(r.Confidence, 'f', 1, 64),
		missing,
		missing,
		missing,
	}
	if r.Location != nil {
		out[3] = strconv.FormatFloat(r.Location.Latitude, 'f', 6, 64)
		out[4] = strconv.FormatFloat(r.Location.Longitude, 'f', 6, 64)
		if r.Location.Altitude != nil {
			out[5] = strconv.FormatFloat(*r.Location.Altitude, 'f', 1, 64)
		}
	}
	return out
}
