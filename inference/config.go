// Package inference - ONNX Runtime super-resolution strategy.
package inference

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// StrategyName is the registry name of the ONNX strategy.
const StrategyName = "onnx"

// Backend selects the ONNX Runtime execution provider.
type Backend string

const (
	// BackendCPU runs on the default CPU provider.
	BackendCPU Backend = "cpu"
	// BackendCUDA uses NVIDIA CUDA.
	BackendCUDA Backend = "cuda"
	// BackendCoreML uses Apple CoreML.
	BackendCoreML Backend = "coreml"
	// BackendOpenVINO uses Intel OpenVINO.
	BackendOpenVINO Backend = "openvino"
)

// Config configures the ONNX super-resolution session.
type Config struct {
	// ModelPath is the path to the .onnx model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// SharedLibraryPath is the onnxruntime shared library; empty selects the
	// platform default.
	SharedLibraryPath string `json:"shared_library_path" yaml:"shared_library_path"`
	// InputName and OutputName are the model's tensor names.
	InputName  string `json:"input_name"  yaml:"input_name"`
	OutputName string `json:"output_name" yaml:"output_name"`
	// ModelScale is the model's fixed upscaling factor (4 for RealESRGAN_x4plus).
	ModelScale float64 `json:"model_scale" yaml:"model_scale"`
	// IntraOpThreads bounds the threads used inside graph nodes; 0 lets the
	// runtime decide.
	IntraOpThreads int `json:"intra_op_threads" yaml:"intra_op_threads"`
	// Backend selects the execution provider.
	Backend Backend `json:"backend" yaml:"backend"`
	// DeviceID selects the GPU for the CUDA backend.
	DeviceID int `json:"device_id" yaml:"device_id"`
}

// DefaultConfig returns a configuration for a RealESRGAN_x4plus export.
//
// Returns:
// - Config with CPU backend, tensor names "input"/"output" and scale 4.
//
// @example
// cfg := DefaultConfig()
// cfg.ModelPath = "models/RealESRGAN_x4plus.onnx"
func DefaultConfig() Config {
	return Config{
		InputName:  "input",
		OutputName: "output",
		ModelScale: 4,
		Backend:    BackendCPU,
	}
}

// Validate checks the configuration and that the model file exists.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("onnx model path is required")
	}
	if _, err := os.Stat(c.ModelPath); err != nil {
		return errors.Wrapf(err, "onnx model %s", c.ModelPath)
	}
	if c.InputName == "" || c.OutputName == "" {
		return errors.New("onnx input and output tensor names are required")
	}
	if !(c.ModelScale > 0) {
		return errors.Errorf("onnx model scale %v: must be > 0", c.ModelScale)
	}
	if c.IntraOpThreads < 0 {
		return errors.Errorf("onnx intra-op threads %d: must be >= 0", c.IntraOpThreads)
	}
	switch c.Backend {
	case "", BackendCPU, BackendCUDA, BackendCoreML, BackendOpenVINO:
	default:
		return errors.Errorf("unsupported onnx backend %q", c.Backend)
	}
	return nil
}

// libraryPath returns the configured shared library or the platform default.
func (c Config) libraryPath() string {
	if c.SharedLibraryPath != "" {
		return c.SharedLibraryPath
	}
	return DefaultSharedLibPath()
}

// DefaultSharedLibPath returns the path to the shared library for the current platform.
//
// Returns:
//   - string: The path to the shared library, relative to the working directory.
func DefaultSharedLibPath() string {
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
