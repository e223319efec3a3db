package model

// Precision is the numeric precision a model is executed with.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type Precision string

const (
	// PrecisionAccuracy keeps the precision the model was exported with.
	PrecisionAccuracy Precision = "ACCURACY"
	// PrecisionFP32 is 32-bit floating point, the default.
	PrecisionFP32 Precision = "FP32"
	// PrecisionFP16 is 16-bit floating point.
	PrecisionFP16 Precision = "FP16"
)

// OrDefault returns p, or PrecisionFP32 when p is empty.
func (p Precision) OrDefault() Precision {
	if p == "" {
		return PrecisionFP32
	}
	return p
}
