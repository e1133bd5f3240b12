package inference

import (
	"os"
	"strconv"
	"time"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
)

// Stage names reported in EnhancementError.
const (
	StageInference = "inference"
	StageRescale   = "rescale"
)

// Upscaler runs a super-resolution model in process. Inference is serialized
// through a single token because one ONNX session is shared by all callers.
type Upscaler struct {
	cfg     Config
	session *ort.DynamicAdvancedSession
	tokens  chan struct{}
	logger  zerolog.Logger
}

// New loads the model and creates the ONNX Runtime session.
//
// Order of operations:
//  1. Config validation: model file and tensor names.
//  2. Environment setup: loads the native library once per process.
//  3. Session options: threading, graph optimization and execution provider.
//  4. Session creation with dynamic input shapes.
//
// Arguments:
//   - cfg: The session configuration.
//   - logger: The logger.
//
// Returns:
//   - *Upscaler: The strategy; Close must be called to release the session.
//   - error: An error if the model or runtime cannot be loaded.
func New(cfg Config, logger zerolog.Logger) (*Upscaler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !ort.IsInitialized() {
		libPath := cfg.libraryPath()
		if _, err := os.Stat(libPath); err != nil {
			return nil, errors.Wrapf(err, "ONNX Runtime library not found at %s", libPath)
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "error initializing ORT environment")
		}
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := appendProvider(options, cfg); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		options,
	)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", cfg.ModelPath)
	}

	logger.Info().
		Str("model", cfg.ModelPath).
		Str("backend", string(cfg.Backend)).
		Float64("model_scale", cfg.ModelScale).
		Msg("onnx session ready")

	u := &Upscaler{
		cfg:     cfg,
		session: session,
		tokens:  make(chan struct{}, 1),
		logger:  logger,
	}
	u.tokens <- struct{}{}
	return u, nil
}

// appendProvider enables the configured execution provider.
func appendProvider(options *ort.SessionOptions, cfg Config) error {
	switch cfg.Backend {
	case "", BackendCPU:
		return nil
	case BackendCoreML:
		return errors.Wrap(options.AppendExecutionProviderCoreML(0), "error enabling CoreML")
	case BackendOpenVINO:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(map[string]string{}), "error enabling OpenVINO")
	case BackendCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(cfg.DeviceID)}); err != nil {
			return errors.Wrap(err, "error updating CUDA options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "error enabling CUDA")
	default:
		return errors.Errorf("unsupported onnx backend %q", cfg.Backend)
	}
}

// Upscale implements enhance.Upscaler. The model output is resampled with
// Lanczos3 when ScaleFactor differs from the model's native scale.
//
// Arguments:
// - src: The BGR source buffer.
// - params: Resolved parameters; only ScaleFactor is used.
//
// Returns:
// - A buffer of floor(width*ScaleFactor) × floor(height*ScaleFactor).
// - An *enhance.EnhancementError naming the failing step.
func (u *Upscaler) Upscale(src *images.PixelBuffer, params enhance.Parameters) (*images.PixelBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, &enhance.EnhancementError{Stage: "parameters", Err: err}
	}

	data, err := BufferToTensor(src)
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: "input", Err: err}
	}

	start := time.Now()
	out, err := u.run(data, src.Width(), src.Height())
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: StageInference, Err: err}
	}
	u.logger.Debug().
		Int("width", out.Width()).
		Int("height", out.Height()).
		Dur("elapsed", time.Since(start)).
		Msg("onnx inference complete")

	w, h := (&enhance.ResampleStage{Factor: params.ScaleFactor}).OutputSize(src.Width(), src.Height())
	if out.Width() == w && out.Height() == h {
		return out, nil
	}

	rescaled, err := images.FromImage(resize.Resize(uint(w), uint(h), out.ToRGBA(), resize.Lanczos3))
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: StageRescale, Err: err}
	}
	return rescaled, nil
}

// run executes one inference, holding the session token for its duration.
func (u *Upscaler) run(data []float32, width, height int) (*images.PixelBuffer, error) {
	<-u.tokens
	defer func() { u.tokens <- struct{}{} }()

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(height), int64(width)), data)
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := u.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("unexpected output tensor type %T", outputs[0])
	}
	shape := tensor.GetShape()
	if len(shape) != 4 || shape[0] != 1 || shape[1] != 3 {
		return nil, errors.Errorf("unexpected output shape %v, want [1 3 H W]", shape)
	}
	return TensorToBuffer(tensor.GetData(), int(shape[3]), int(shape[2]))
}

// Close releases the ONNX session.
func (u *Upscaler) Close() error {
	if u.session == nil {
		return nil
	}
	err := u.session.Destroy()
	u.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
