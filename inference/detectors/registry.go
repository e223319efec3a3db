package detectors

import (
	"sync"

	"github.com/FTsune/kape/inference"
	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Loader creates a detector from its configuration.
type Loader func(config Config, log logrus.FieldLogger) (inference.Detector, error)

// ONNXLoader loads ONNX detectors.
func ONNXLoader(config Config, log logrus.FieldLogger) (inference.Detector, error) {
	return NewONNXDetector(config, log)
}

// OpenCVLoader loads detectors running on the OpenCV DNN module.
func OpenCVLoader(config Config, log logrus.FieldLogger) (inference.Detector, error) {
	return NewOpenCVDetector(config, log)
}

// Registry lazily loads detectors by model name and keeps them for the
// lifetime of the process.
type Registry struct {
	mu      sync.Mutex
	configs map[model.Name]Config
	loaded  map[model.Name]inference.Detector
	loader  Loader
	log     logrus.FieldLogger
}

// NewRegistry creates a registry over the given detector configurations.
//
// Arguments:
//   - configs: One configuration per model.
//   - loader: Creates detectors. ONNXLoader when nil.
//   - log: The logger.
//
// Returns:
//   - *Registry: The registry. Nothing is loaded until first use.
func NewRegistry(configs []Config, loader Loader, log logrus.FieldLogger) *Registry {
	if loader == nil {
		loader = ONNXLoader
	}
	r := &Registry{
		configs: make(map[model.Name]Config, len(configs)),
		loaded:  make(map[model.Name]inference.Detector),
		loader:  loader,
		log:     log,
	}
	for _, c := range configs {
		r.configs[c.Model.Name] = c
	}
	return r
}

// Detector returns the detector of the named model, loading it on first use.
func (r *Registry) Detector(name model.Name) (inference.Detector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.loaded[name]; ok {
		return d, nil
	}

	config, ok := r.configs[name]
	if !ok {
		return nil, errors.Errorf("model %s is not configured", name)
	}

	d, err := r.loader(config, r.log)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load model %s", name)
	}
	r.loaded[name] = d
	return d, nil
}

// Close releases every loaded detector.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, d := range r.loaded {
		if c, ok := d.(inference.Closer); ok {
			if err := c.Close(); err != nil {
				r.log.WithError(err).WithField("model", name).Warn("failed to close detector")
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		delete(r.loaded, name)
	}
	return firstErr
}
