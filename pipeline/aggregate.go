package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/FTsune/kape/config"
	"github.com/FTsune/kape/images"
	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models"
	"github.com/FTsune/kape/models/postprocess"
	"github.com/FTsune/kape/render"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Options controls one aggregation.
type Options struct {
	// ConfidenceFloor is passed to every detector, in [0, 1].
	ConfidenceFloor float64
	// IoUThreshold is the suppression threshold, in [0, 1].
	IoUThreshold float64
	// Progress receives milestones. May be nil.
	Progress ProgressFunc
}

// Aggregator runs detector passes over an image and merges their output.
type Aggregator struct {
	renderer render.Renderer
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAggregator creates an aggregator drawing with the given renderer.
//
// Arguments:
//   - renderer: Draws surviving boxes. render.NewRaster() when nil.
//   - log: The logger.
//
// Returns:
//   - *Aggregator: The aggregator.
func NewAggregator(renderer render.Renderer, log logrus.FieldLogger) *Aggregator {
	if renderer == nil {
		renderer = render.NewRaster()
	}
	return &Aggregator{renderer: renderer, log: log, now: time.Now}
}

// Aggregate runs every pass over img in order and merges the results.
//
// For each member detector of each pass the boxes are checked against the
// label table, suppressed with NMS, turned into detections with normalized
// labels and drawn onto a shared copy of img with their raw labels.
//
// Arguments:
//   - ctx: Checked between detector invocations.
//   - img: The source image. It is never modified.
//   - passes: The passes, run in order.
//   - opts: Thresholds and the optional progress callback.
//
// Returns:
//   - *Result: The merged result. Empty only when nothing was detected.
//   - error: A *config.MalformedConfigurationError for invalid options, a
//     *DetectionFailure when a detector fails, or the context error.
func (a *Aggregator) Aggregate(ctx context.Context, img image.Image, passes []DetectorPass, opts Options) (*Result, error) {
	if err := validate(img, passes, opts); err != nil {
		return nil, err
	}

	start := a.now()
	opts.Progress.report(ProgressPrepare, "Preparing image")

	src := images.Clone(img)
	canvas := images.Clone(img)

	total := 0
	for _, p := range passes {
		total += len(p.Members())
	}

	var (
		instances []Detection
		step      int
	)
	for pi, pass := range passes {
		for mi, det := range pass.Members() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			fraction := ProgressInference + inferenceSpan*float64(step)/float64(total)
			opts.Progress.report(fraction, fmt.Sprintf("Running %s", det.Name()))
			step++

			kept, labels, err := a.runMember(ctx, src, det, opts)
			if err != nil {
				// Cancellation is reported the same way whether or not the
				// detector noticed it first.
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				return nil, &DetectionFailure{Pass: pi, Member: mi, Detector: det.Name(), Err: err}
			}

			for _, b := range kept {
				raw := labels[b.Class]
				instances = append(instances, Detection{
					Label:      models.Normalize(raw),
					RawLabel:   raw,
					Confidence: ToPercent(b.Score),
					Pass:       pi,
					Model:      det.Name(),
				})
			}

			if err := a.renderer.Draw(canvas, kept, labels, pass.Colors()); err != nil {
				return nil, errors.Wrapf(err, "failed to draw boxes of %s", det.Name())
			}
		}
	}

	opts.Progress.report(ProgressPostprocess, "Processing results")
	result := NewResult(canvas, instances, a.now().Sub(start))

	a.log.WithFields(logrus.Fields{
		"passes":    len(passes),
		"instances": result.TotalCount,
		"labels":    result.UniqueCount,
		"elapsed":   result.ProcessingTime,
	}).Debug("aggregated detections")

	opts.Progress.report(ProgressDone, "Done")
	return result, nil
}

// runMember invokes one detector and suppresses its boxes.
func (a *Aggregator) runMember(ctx context.Context, src image.Image, det inference.Detector, opts Options) ([]postprocess.Box, []string, error) {
	pred, err := det.Predict(ctx, src, float32(opts.ConfidenceFloor))
	if err != nil {
		return nil, nil, err
	}
	if pred == nil {
		return nil, nil, errors.Wrap(ErrMalformedOutput, "detector returned no prediction")
	}
	for i, b := range pred.Boxes {
		if b.Class < 0 || b.Class >= len(pred.Labels) {
			return nil, nil, errors.Wrapf(ErrMalformedOutput, "box %d has class %d but the label table has %d entries",
				i, b.Class, len(pred.Labels))
		}
	}

	kept := postprocess.NMS(pred.Boxes, float32(opts.IoUThreshold))

	a.log.WithFields(logrus.Fields{
		"detector":   det.Name(),
		"candidates": len(pred.Boxes),
		"kept":       len(kept),
	}).Debug("suppressed overlapping boxes")

	return kept, pred.Labels, nil
}

func validate(img image.Image, passes []DetectorPass, opts Options) error {
	if err := config.ValidateThreshold(config.KeyConfidenceFloor, opts.ConfidenceFloor); err != nil {
		return err
	}
	if err := config.ValidateThreshold(config.KeyIoUThreshold, opts.IoUThreshold); err != nil {
		return err
	}
	if img == nil || img.Bounds().Empty() {
		return errors.New("empty image")
	}
	if len(passes) == 0 {
		return &config.MalformedConfigurationError{Field: "passes", Reason: "no detector passes"}
	}
	for i, p := range passes {
		if p == nil || len(p.Members()) == 0 {
			return &config.MalformedConfigurationError{Field: "passes", Reason: fmt.Sprintf("pass %d has no detectors", i)}
		}
		for _, d := range p.Members() {
			if d == nil {
				return &config.MalformedConfigurationError{Field: "passes", Reason: fmt.Sprintf("pass %d has a nil detector", i)}
			}
		}
	}
	return nil
}
