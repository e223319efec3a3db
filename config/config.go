package config

import (
	"os"
	"runtime"

	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Inference engines.
const (
	EngineONNXRuntime = "onnxruntime"
	EngineOpenCV      = "opencv"
)

// RuntimeConfig configures the inference engine.
type RuntimeConfig struct {
	// Engine runs the models: onnxruntime or opencv.
	Engine string `json:"engine" yaml:"engine"`
	// Backend is the execution provider: cpu, coreml, cuda or openvino.
	Backend string `json:"backend" yaml:"backend"`
	// SharedLibrary overrides the platform default onnxruntime library path.
	SharedLibrary string `json:"shared_library" yaml:"shared_library"`
	// IntraOpThreads bounds the threads used inside a single operator.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
}

// CacheConfig configures the result cache.
type CacheConfig struct {
	MaxEntries   int `json:"max_entries" yaml:"max_entries"`
	MaxDimension int `json:"max_dimension" yaml:"max_dimension"`
	JPEGQuality  int `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// PrefetchConfig configures the neighbour prefetch worker pool.
type PrefetchConfig struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	Workers   int  `json:"workers" yaml:"workers"`
	QueueSize int  `json:"queue_size" yaml:"queue_size"`
}

// RecordsConfig configures persistence of detection records.
type RecordsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
	// MinConfidence is the percentage below which detections are not saved.
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// AppConfig is the complete application configuration.
type AppConfig struct {
	Models    []model.Config `json:"models" yaml:"models"`
	Runtime   RuntimeConfig  `json:"runtime" yaml:"runtime"`
	Detection Settings       `json:"detection" yaml:"detection"`
	Cache     CacheConfig    `json:"cache" yaml:"cache"`
	Prefetch  PrefetchConfig `json:"prefetch" yaml:"prefetch"`
	Records   RecordsConfig  `json:"records" yaml:"records"`
	Log       LogConfig      `json:"log" yaml:"log"`
}

// Default returns the default application configuration.
//
// Returns:
//   - *AppConfig: A configuration with sensible defaults for every field.
func Default() *AppConfig {
	return &AppConfig{
		Models: []model.Config{
			{Name: model.ModelNameSpots, Family: model.ModelFamilyDisease, Path: "weights/spots.onnx", InputSize: 640},
			{Name: model.ModelNameFullLeaf, Family: model.ModelFamilyDisease, Path: "weights/full-leaf.onnx", InputSize: 640},
			{Name: model.ModelNameLeaf, Family: model.ModelFamilyLeaf, Path: "weights/leaf.onnx", InputSize: 640},
		},
		Runtime: RuntimeConfig{
			Engine:         EngineONNXRuntime,
			Backend:        "cpu",
			IntraOpThreads: runtime.NumCPU(),
		},
		Detection: DefaultSettings(),
		Cache: CacheConfig{
			MaxEntries:   50,
			MaxDimension: 1200,
			JPEGQuality:  85,
		},
		Prefetch: PrefetchConfig{
			Enabled:   true,
			Workers:   2,
			QueueSize: 4,
		},
		Records: RecordsConfig{
			Path:          "records.csv",
			MinConfidence: 50,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
//
// Arguments:
//   - path: Path of the YAML file.
//
// Returns:
//   - *AppConfig: The merged and validated configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes on top of the defaults.
func Parse(data []byte) (*AppConfig, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *AppConfig) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}

	seen := make(map[model.Name]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" {
			return &MalformedConfigurationError{Field: "models", Reason: "model without a name"}
		}
		if seen[m.Name] {
			return &MalformedConfigurationError{Field: "models", Reason: "duplicate model " + string(m.Name)}
		}
		seen[m.Name] = true
		if m.Path == "" {
			return &MalformedConfigurationError{Field: "models", Reason: "model " + string(m.Name) + " has no path"}
		}
		if m.InputSize <= 0 {
			c.Models[i].InputSize = 640
		}
	}

	if c.Runtime.Engine != EngineONNXRuntime && c.Runtime.Engine != EngineOpenCV {
		return &MalformedConfigurationError{Field: "runtime.engine", Reason: "must be onnxruntime or opencv"}
	}
	if c.Cache.MaxEntries <= 0 {
		return &MalformedConfigurationError{Field: "cache.max_entries", Reason: "must be positive"}
	}
	if c.Cache.JPEGQuality < 1 || c.Cache.JPEGQuality > 100 {
		return &MalformedConfigurationError{Field: "cache.jpeg_quality", Reason: "must be within 1-100"}
	}
	if c.Prefetch.Enabled && (c.Prefetch.Workers <= 0 || c.Prefetch.QueueSize <= 0) {
		return &MalformedConfigurationError{Field: "prefetch", Reason: "workers and queue_size must be positive"}
	}
	if c.Records.MinConfidence < 0 || c.Records.MinConfidence > 100 {
		return &MalformedConfigurationError{Field: "records.min_confidence", Reason: "must be within 0-100"}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return &MalformedConfigurationError{Field: "log.level", Reason: err.Error()}
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return &MalformedConfigurationError{Field: "log.format", Reason: "must be text or json"}
	}
	return nil
}

// Model returns the configuration of the named model.
func (c *AppConfig) Model(name model.Name) (model.Config, bool) {
	for _, m := range c.Models {
		if m.Name == name {
			return m, true
		}
	}
	return model.Config{}, false
}

// NewLogger builds a logger from the log configuration.
func (c LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
