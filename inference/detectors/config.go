// Package detectors - ONNX YOLO detectors for the coffee leaf models.
package detectors

import (
	"github.com/FTsune/kape/inference/providers"
	"github.com/FTsune/kape/models/model"
)

// Config is the configuration of one ONNX detector.
type Config struct {
	// The model being loaded.
	Model model.Config
	// The execution provider to run on.
	Backend providers.ProviderBackend
	// Threads used inside a single operator. 0 lets the runtime decide.
	IntraOpThreads int
}

// DefaultConfig returns a configuration with sensible defaults for a model.
//
// Arguments:
//   - m: The model configuration.
//
// Returns:
//   - Config: CPU execution with the runtime choosing thread counts.
func DefaultConfig(m model.Config) Config {
	if m.InputSize <= 0 {
		m.InputSize = 640
	}
	return Config{
		Model:   m,
		Backend: providers.CPUProviderBackend,
	}
}

// anchorCount returns the number of YOLOv8 anchors for a square input: one
// per cell of the stride 8, 16 and 32 grids (8400 at 640).
func anchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		cells := size / stride
		n += cells * cells
	}
	return n
}
