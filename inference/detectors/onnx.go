package detectors

import (
	"context"
	"image"
	"sync"

	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/inference/providers"
	"github.com/FTsune/kape/models"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

// ONNXDetector runs a YOLOv8 style ONNX model.
//
// The session binds fixed input and output tensors, so Predict calls are
// serialized.
type ONNXDetector struct {
	config  Config
	session *providers.Session
	labels  []string
	layout  OutputLayout
	log     logrus.FieldLogger
	mu      sync.Mutex
}

// NewONNXDetector loads a model and prepares its session.
//
// The label table is resolved in this order: the configured labels, the
// "names" entry of the model metadata, the built-in table of the model.
//
// Arguments:
//   - config: The detector configuration.
//   - log: The logger.
//
// Returns:
//   - *ONNXDetector: The ready detector. The caller must Close it.
//   - error: An error if the model cannot be inspected or loaded.
func NewONNXDetector(config Config, log logrus.FieldLogger) (*ONNXDetector, error) {
	size := config.Model.InputSize
	if size <= 0 {
		size = 640
		config.Model.InputSize = size
	}

	labels, err := resolveLabels(config, log)
	if err != nil {
		return nil, err
	}

	info, err := providers.InspectModel(config.Model.Path)
	if err != nil {
		return nil, err
	}

	layout := OutputLayout{Classes: len(labels), Anchors: anchorCount(size)}
	// Static output shapes are authoritative, dynamic (-1) ones fall back to
	// the layout derived from the input size.
	if dims := info.OutputShape; len(dims) == 3 && dims[1] > 4 && dims[2] > 0 {
		layout = OutputLayout{Classes: int(dims[1]) - 4, Anchors: int(dims[2])}
	}
	if layout.Classes != len(labels) {
		return nil, errors.Errorf("model %s predicts %d classes but has %d labels", config.Model.Name, layout.Classes, len(labels))
	}

	session, err := providers.NewSession(providers.NewSessionArgs{
		ModelPath:      config.Model.Path,
		InputName:      info.InputName,
		OutputName:     info.OutputName,
		InputShape:     ort.NewShape(1, 3, int64(size), int64(size)),
		OutputShape:    ort.NewShape(1, int64(4+layout.Classes), int64(layout.Anchors)),
		Backend:        config.Backend,
		IntraOpThreads: config.IntraOpThreads,
		Precision:      config.Model.Precision,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"model":   config.Model.Name,
		"path":    config.Model.Path,
		"classes": layout.Classes,
		"anchors": layout.Anchors,
		"backend": config.Backend,
	}).Info("loaded detector")

	return &ONNXDetector{
		config:  config,
		session: session,
		labels:  labels,
		layout:  layout,
		log:     log,
	}, nil
}

func resolveLabels(config Config, log logrus.FieldLogger) ([]string, error) {
	if len(config.Model.Labels) > 0 {
		return append([]string(nil), config.Model.Labels...), nil
	}

	value, ok, err := providers.ModelMetadataValue(config.Model.Path, "names")
	if err != nil {
		log.WithError(err).WithField("model", config.Model.Name).Debug("model metadata unavailable")
	} else if ok {
		labels, err := ParseNames(value)
		if err == nil {
			return labels, nil
		}
		log.WithError(err).WithField("model", config.Model.Name).Warn("ignoring malformed names metadata")
	}

	set, ok := models.Classes.Set(config.Model.Name)
	if !ok {
		return nil, errors.Errorf("no label table for model %s", config.Model.Name)
	}
	return set.Names(), nil
}

// Name returns the model name.
func (d *ONNXDetector) Name() string {
	return string(d.config.Model.Name)
}

// Labels returns a copy of the label table.
func (d *ONNXDetector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// Predict runs the model over img.
//
// Arguments:
//   - ctx: Checked before inference starts.
//   - img: The source image.
//   - confidenceFloor: Candidates scoring below it are dropped.
//
// Returns:
//   - *inference.Prediction: Boxes in source image pixels and the label table.
//   - error: An error if the session is closed or inference fails.
func (d *ONNXDetector) Predict(ctx context.Context, img image.Image, confidenceFloor float32) (*inference.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil, errors.New("model not loaded")
	}

	scaleX, scaleY, err := inference.PrepareInput(img, d.config.Model.InputSize, d.session.Input.GetData())
	if err != nil {
		return nil, errors.Wrap(err, "failed to prepare input")
	}

	if err := d.session.Session.Run(); err != nil {
		return nil, errors.Wrapf(err, "inference failed for %s", d.Name())
	}

	boxes, err := DecodeOutput(d.session.Output.GetData(), DecodeArgs{
		Layout:          d.layout,
		ConfidenceFloor: confidenceFloor,
		ScaleX:          scaleX,
		ScaleY:          scaleY,
		Bounds:          img.Bounds(),
	})
	if err != nil {
		return nil, err
	}

	return &inference.Prediction{Boxes: boxes, Labels: d.Labels()}, nil
}

// Close releases the native session.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}
