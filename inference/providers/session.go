package providers

import (
	"github.com/FTsune/kape/models/model"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Session represents a model session from the onnxruntime with its
// preallocated input and output tensors.
type Session struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.Input != nil {
		s.Input.Destroy()
		s.Input = nil
	}
	if s.Output != nil {
		s.Output.Destroy()
		s.Output = nil
	}
	if s.Session != nil {
		err := s.Session.Destroy()
		s.Session = nil
		if err != nil {
			return errors.Wrap(err, "error destroying ORT session")
		}
	}
	return nil
}

// NewSessionArgs represents the arguments for creating a new ONNX session.
type NewSessionArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// Input and output node names.
	InputName  string
	OutputName string
	// Fixed tensor shapes, batch dimension included.
	InputShape  ort.Shape
	OutputShape ort.Shape
	// The execution provider to run on.
	Backend ProviderBackend
	// Threads used inside a single operator. 0 lets the runtime decide.
	IntraOpThreads int
	// Precision requested from providers that support it.
	Precision model.Precision
}

// NewSession creates a new ONNX Runtime session with preallocated input and
// output tensors. Initialize must have been called first.
//
// Order of operations:
//  1. Tensor allocation: fixed-shape buffers for input/output data.
//  2. Session options: threading, optimization level and execution provider.
//  3. Session creation: loads the model and binds the tensors.
//
// Arguments:
//   - args: The arguments for the session.
//
// Returns:
//   - *Session: The session holding the native handle and tensors. The caller must Close it.
//   - error: An error if the session creation fails.
func NewSession(args NewSessionArgs) (*Session, error) {
	if !ort.IsInitialized() {
		return nil, errors.New("ONNX Runtime environment is not initialized")
	}

	input, err := ort.NewEmptyTensor[float32](args.InputShape)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](args.OutputShape)
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "error creating output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(args.IntraOpThreads); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := args.Backend.apply(options, args.IntraOpThreads, args.Precision); err != nil {
		input.Destroy()
		output.Destroy()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", args.ModelPath)
	}

	return &Session{Session: session, Input: input, Output: output}, nil
}

// IOInfo describes the first input and output node of a model.
type IOInfo struct {
	InputName   string
	OutputName  string
	InputShape  ort.Shape
	OutputShape ort.Shape
}

// InspectModel reads the input and output node descriptions of a model file.
func InspectModel(modelPath string) (IOInfo, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return IOInfo{}, errors.Wrapf(err, "failed to get model input/output info for %s", modelPath)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return IOInfo{}, errors.Errorf("unexpected io (in:%d out:%d)", len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return IOInfo{}, errors.Errorf("expected 4D input, got %dD", len(inputs[0].Dimensions))
	}
	return IOInfo{
		InputName:   inputs[0].Name,
		OutputName:  outputs[0].Name,
		InputShape:  inputs[0].Dimensions,
		OutputShape: outputs[0].Dimensions,
	}, nil
}

// ModelMetadataValue returns a custom metadata entry of a model file, for
// example the "names" entry exported by ultralytics.
func ModelMetadataValue(modelPath, key string) (string, bool, error) {
	if !ort.IsInitialized() {
		return "", false, errors.New("ONNX Runtime environment is not initialized")
	}
	meta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to read metadata of %s", modelPath)
	}
	defer meta.Destroy()

	value, ok, err := meta.LookupCustomMetadataMap(key)
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to look up metadata key %q", key)
	}
	return value, ok, nil
}
