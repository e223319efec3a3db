package detectors

import (
	"context"
	"image"
	"os"
	"sync"

	"github.com/FTsune/kape/inference"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

// OpenCVDetector runs a YOLOv8 style ONNX model with the OpenCV DNN module.
// It needs no onnxruntime library. Predict calls are serialized.
type OpenCVDetector struct {
	config Config
	net    *gocv.Net
	labels []string
	layout OutputLayout
	log    logrus.FieldLogger
	mu     sync.Mutex
}

// NewOpenCVDetector loads a model into an OpenCV network.
//
// Arguments:
//   - config: The detector configuration. Backend and threads are ignored.
//   - log: The logger.
//
// Returns:
//   - *OpenCVDetector: The ready detector. The caller must Close it.
//   - error: An error if the model cannot be read.
func NewOpenCVDetector(config Config, log logrus.FieldLogger) (*OpenCVDetector, error) {
	if config.Model.InputSize <= 0 {
		config.Model.InputSize = 640
	}
	if _, err := os.Stat(config.Model.Path); err != nil {
		return nil, errors.Wrapf(err, "model file not found: %s", config.Model.Path)
	}

	labels, err := resolveLabels(config, log)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(config.Model.Path)
	if net.Empty() {
		return nil, errors.Errorf("failed to load ONNX model: %s", config.Model.Path)
	}
	net.SetPreferableBackend(gocv.NetBackendOpenCV)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	layout := OutputLayout{Classes: len(labels), Anchors: anchorCount(config.Model.InputSize)}

	log.WithFields(logrus.Fields{
		"model":   config.Model.Name,
		"path":    config.Model.Path,
		"classes": layout.Classes,
		"engine":  "opencv",
	}).Info("loaded detector")

	return &OpenCVDetector{config: config, net: &net, labels: labels, layout: layout, log: log}, nil
}

// Name returns the model name.
func (d *OpenCVDetector) Name() string {
	return string(d.config.Model.Name)
}

// Predict runs the network over img.
func (d *OpenCVDetector) Predict(ctx context.Context, img image.Image, confidenceFloor float32) (*inference.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.net == nil {
		return nil, errors.New("model not loaded")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer mat.Close()

	size := d.config.Model.InputSize
	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	if dims := out.Size(); len(dims) == 3 && dims[1] > 4 && dims[2] > 0 {
		if layout := (OutputLayout{Classes: dims[1] - 4, Anchors: dims[2]}); layout != d.layout {
			if layout.Classes != len(d.labels) {
				return nil, errors.Errorf("model %s predicts %d classes but has %d labels", d.Name(), layout.Classes, len(d.labels))
			}
			d.layout = layout
		}
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read output of %s", d.Name())
	}

	b := img.Bounds()
	boxes, err := DecodeOutput(data, DecodeArgs{
		Layout:          d.layout,
		ConfidenceFloor: confidenceFloor,
		ScaleX:          float32(b.Dx()) / float32(size),
		ScaleY:          float32(b.Dy()) / float32(size),
		Bounds:          b,
	})
	if err != nil {
		return nil, err
	}

	return &inference.Prediction{Boxes: boxes, Labels: append([]string(nil), d.labels...)}, nil
}

// Close releases the network.
func (d *OpenCVDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.net == nil {
		return nil
	}
	err := d.net.Close()
	d.net = nil
	return err
}
