package records

import (
	"time"

	"github.com/FTsune/kape/pipeline"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Recorder applies a Policy to results and saves the selected records.
type Recorder struct {
	policy Policy
	sink   Sink
	log    logrus.FieldLogger
	now    func() time.Time
}

// NewRecorder creates a recorder.
//
// Arguments:
//   - policy: Decides what is saved.
//   - sink: Receives the records.
//   - log: The logger.
//
// Returns:
//   - *Recorder: The recorder.
func NewRecorder(policy Policy, sink Sink, log logrus.FieldLogger) *Recorder {
	return &Recorder{policy: policy, sink: sink, log: log, now: time.Now}
}

// Record saves the best disease detection of result, tagged with the GPS
// position and capture time found in the image.
//
// Arguments:
//   - name: The image name, for logging.
//   - data: The encoded source image, read for EXIF metadata.
//   - result: The aggregate result of the image.
//
// Returns:
//   - Outcome: Whether a record was saved, or why not.
//   - error: An error if the sink fails.
func (r *Recorder) Record(name string, data []byte, result *pipeline.Result) (Outcome, error) {
	best, outcome := r.policy.Select(result)
	log := r.log.WithFields(logrus.Fields{"image": name, "outcome": outcome})
	if outcome != OutcomeSaved {
		log.Debug("no record saved")
		return outcome, nil
	}

	rec := Record{
		Timestamp:  r.now(),
		Image:      name,
		Disease:    best.Label,
		Confidence: best.Confidence,
	}

	md, err := ReadMetadata(data)
	if err != nil {
		log.WithError(err).Debug("image metadata unavailable")
	}
	if !md.Taken.IsZero() {
		rec.Timestamp = md.Taken
	}
	rec.Location = md.Location

	if err := r.sink.Save(rec); err != nil {
		return outcome, errors.Wrapf(err, "failed to save record for %s", name)
	}

	log.WithFields(logrus.Fields{
		"disease":    rec.Disease,
		"confidence": rec.Confidence,
		"located":    rec.Location != nil,
	}).Info("saved detection record")
	return outcome, nil
}
