// Package records - Selection and persistence of detection records.
package records

import (
	"time"

	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/pipeline"
)

// Outcome describes what the policy decided for a result.
type Outcome string

// Outcome constants
const (
	// OutcomeSaved means a record was selected for persistence.
	OutcomeSaved Outcome = "saved"
	// OutcomeNoDetection means the result holds no disease detection.
	OutcomeNoDetection Outcome = "no-detection"
	// OutcomeLowConfidence means the best detection is below the minimum.
	OutcomeLowConfidence Outcome = "low-confidence"
	// OutcomeSkippedLabel means the best detection carries a skipped label.
	OutcomeSkippedLabel Outcome = "skipped-label"
)

// DefaultMinConfidence is the percentage below which nothing is saved.
const DefaultMinConfidence = 50.0

// Record is one persisted detection.
type Record struct {
	// Timestamp is when the image was taken, or when it was processed if the
	// image carries no date.
	Timestamp time.Time
	// Image is the name of the source image.
	Image string
	// Disease is the normalized label of the best disease detection.
	Disease string
	// Confidence is a percentage.
	Confidence float64
	// Location is nil when the image carries no usable GPS data.
	Location *Location
}

// Policy selects the record to persist for a result.
type Policy struct {
	// MinConfidence is a percentage. Detections below it are not saved.
	MinConfidence float64
}

// DefaultPolicy returns the policy used by the application.
func DefaultPolicy() Policy {
	return Policy{MinConfidence: DefaultMinConfidence}
}

// Select picks the highest confidence disease detection of result. Leaf
// variety detections are ignored. Ties keep the earliest detection.
//
// Arguments:
//   - result: The aggregate result.
//
// Returns:
//   - pipeline.Detection: The selected detection, zero unless saved.
//   - Outcome: OutcomeSaved, or why nothing is saved.
func (p Policy) Select(result *pipeline.Result) (pipeline.Detection, Outcome) {
	if result == nil {
		return pipeline.Detection{}, OutcomeNoDetection
	}

	var (
		best  pipeline.Detection
		found bool
	)
	for _, d := range result.DiseaseInstances() {
		if !found || d.Confidence > best.Confidence {
			best, found = d, true
		}
	}

	switch {
	case !found:
		return pipeline.Detection{}, OutcomeNoDetection
	case models.IsSkipLabel(best.Label):
		return pipeline.Detection{}, OutcomeSkippedLabel
	case best.Confidence < p.MinConfidence:
		return pipeline.Detection{}, OutcomeLowConfidence
	default:
		return best, OutcomeSaved
	}
}
