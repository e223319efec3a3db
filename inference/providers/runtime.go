package providers

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	initOnce sync.Once
	initErr  error
)

// Initialize loads the ONNX Runtime shared library and prepares the native
// environment. Only the first call does any work; later calls return the
// outcome of the first one.
//
// Arguments:
//   - libPath: The shared library path, or "" for the platform default.
//
// Returns:
//   - error: An error if the library is missing or the environment fails to start.
func Initialize(libPath string) error {
	initOnce.Do(func() {
		path := GetSharedLibPath(libPath)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			initErr = errors.Wrapf(err, "ONNX Runtime library not found at %s", path)
			return
		}

		ort.SetSharedLibraryPath(path)
		if err := ort.InitializeEnvironment(); err != nil {
			initErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return initErr
}

// Shutdown tears down the ONNX Runtime environment if it was initialized.
func Shutdown() error {
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}
