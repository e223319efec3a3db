package pipeline

import (
	"image"
	"math"
	"time"

	"github.com/FTsune/kape/models"
	"github.com/pkg/errors"
)

// Detection is one surviving box after suppression and label normalization.
type Detection struct {
	// Label is the normalized label used for counting and merging.
	Label string `json:"label" yaml:"label"`
	// RawLabel is the label exactly as predicted by the model.
	RawLabel string `json:"raw_label" yaml:"raw_label"`
	// Confidence is a percentage rounded to one decimal.
	Confidence float64 `json:"confidence" yaml:"confidence"`
	// Pass is the index of the pass that produced the detection.
	Pass int `json:"pass" yaml:"pass"`
	// Model is the name of the detector that produced the detection.
	Model string `json:"model" yaml:"model"`
}

// Result is the aggregate of all passes over one image.
type Result struct {
	// Image is the source image with every surviving box drawn.
	Image image.Image
	// Instances in pass order, then box order after suppression.
	Instances []Detection
	// Labels holds each distinct label once, in order of first appearance.
	Labels []string
	// BestConfidence maps each label to its highest instance confidence.
	BestConfidence map[string]float64
	TotalCount     int
	UniqueCount    int
	// ProcessingTime is the wall time the aggregation took.
	ProcessingTime time.Duration
}

// ToPercent converts a score in [0, 1] to a percentage with one decimal.
func ToPercent(score float32) float64 {
	return math.Round(float64(score)*1000) / 10
}

// NewResult derives the per-label summary from the instances.
func NewResult(img image.Image, instances []Detection, elapsed time.Duration) *Result {
	r := &Result{
		Image:          img,
		Instances:      instances,
		Labels:         make([]string, 0, len(instances)),
		BestConfidence: make(map[string]float64, len(instances)),
		ProcessingTime: elapsed,
	}
	if r.Instances == nil {
		r.Instances = []Detection{}
	}

	for _, d := range r.Instances {
		best, seen := r.BestConfidence[d.Label]
		if !seen {
			r.Labels = append(r.Labels, d.Label)
			r.BestConfidence[d.Label] = d.Confidence
			continue
		}
		if d.Confidence > best {
			r.BestConfidence[d.Label] = d.Confidence
		}
	}

	r.TotalCount = len(r.Instances)
	r.UniqueCount = len(r.Labels)
	return r
}

// Empty reports whether nothing was detected.
func (r *Result) Empty() bool {
	return r.TotalCount == 0
}

// Validate checks the internal consistency of the result.
func (r *Result) Validate() error {
	if r.UniqueCount != len(r.Labels) || r.UniqueCount != len(r.BestConfidence) {
		return errors.Errorf("unique count %d does not match %d labels and %d confidences",
			r.UniqueCount, len(r.Labels), len(r.BestConfidence))
	}
	if r.TotalCount != len(r.Instances) || r.TotalCount < r.UniqueCount {
		return errors.Errorf("total count %d does not match %d instances or is below unique count %d",
			r.TotalCount, len(r.Instances), r.UniqueCount)
	}
	for _, label := range r.Labels {
		if _, ok := r.BestConfidence[label]; !ok {
			return errors.Errorf("label %q has no best confidence", label)
		}
	}
	return nil
}

// Clone returns a copy of the result that shares the image.
func (r *Result) Clone() *Result {
	c := *r
	c.Instances = append([]Detection(nil), r.Instances...)
	c.Labels = append([]string(nil), r.Labels...)
	c.BestConfidence = make(map[string]float64, len(r.BestConfidence))
	for k, v := range r.BestConfidence {
		c.BestConfidence[k] = v
	}
	return &c
}

// DiseaseInstances returns the instances that are not leaf varieties.
func (r *Result) DiseaseInstances() []Detection {
	out := make([]Detection, 0, len(r.Instances))
	for _, d := range r.Instances {
		if !models.IsLeafType(d.Label) {
			out = append(out, d)
		}
	}
	return out
}

// LeafInstances returns the instances that are leaf varieties.
func (r *Result) LeafInstances() []Detection {
	out := make([]Detection, 0, len(r.Instances))
	for _, d := range r.Instances {
		if models.IsLeafType(d.Label) {
			out = append(out, d)
		}
	}
	return out
}
