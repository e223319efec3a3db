package providers

import (
	"strconv"
	"strings"

	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend is the execution provider a session runs on.
type ProviderBackend string

const (
	// CPUProviderBackend runs on the default CPU provider.
	CPUProviderBackend ProviderBackend = "cpu"
	// CoreMLProviderBackend runs on Apple CoreML.
	CoreMLProviderBackend ProviderBackend = "coreml"
	// CUDAProviderBackend runs on NVIDIA CUDA.
	CUDAProviderBackend ProviderBackend = "cuda"
	// OpenVINOProviderBackend runs on Intel OpenVINO.
	OpenVINOProviderBackend ProviderBackend = "openvino"
)

// ParseBackend converts a configuration string into a backend. The empty
// string selects the CPU.
func ParseBackend(s string) (ProviderBackend, error) {
	switch b := ProviderBackend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return CPUProviderBackend, nil
	case CPUProviderBackend, CoreMLProviderBackend, CUDAProviderBackend, OpenVINOProviderBackend:
		return b, nil
	default:
		return "", errors.Errorf("unsupported execution provider %q", s)
	}
}

// apply appends the execution provider to the session options.
func (b ProviderBackend) apply(options *ort.SessionOptions, threads int, precision model.Precision) error {
	switch b {
	case CPUProviderBackend, "":
		return nil
	case CoreMLProviderBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "error enabling CoreML")
	case OpenVINOProviderBackend:
		// See:
		// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
		config := map[string]string{
			"device_type": "CPU",
			"precision":   string(precision.OrDefault()),
		}
		if threads > 0 {
			config["num_of_threads"] = strconv.Itoa(threads)
		}
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(config), "error enabling OpenVINO")
	case CUDAProviderBackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": "0"}); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "error enabling CUDA")
	default:
		return errors.Errorf("unsupported execution provider %q", string(b))
	}
}
