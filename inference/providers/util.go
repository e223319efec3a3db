// Package providers - ONNX Runtime environment, execution providers and sessions.
package providers

import "runtime"

// GetSharedLibPath returns the path to the shared library for the current platform.
//
// Arguments:
//   - override: A configured library path. When non-empty it is returned as is.
//
// Returns:
//   - string: The path to the shared library.
func GetSharedLibPath(override string) string {
	if override != "" {
		return override
	}
	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}
