package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/nvr-ai/go-clarity/config"
	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/inference"
	"github.com/nvr-ai/go-clarity/opencv"
	"github.com/nvr-ai/go-clarity/profiler"
	"github.com/nvr-ai/go-clarity/util"
)

// enhanceFlags holds the flags of the enhance command. Values only override
// the configuration when the flag was set explicitly.
type enhanceFlags struct {
	input       string
	output      string
	strategy    string
	format      string
	concurrency int
	profile     bool

	clipLimit      float64
	tileGrid       string
	contrastAlpha  float64
	brightnessBeta float64
	scaleFactor    float64
	creativity     float64
	resemblance    float64

	jpegQuality int

	onnxModel   string
	onnxLib     string
	onnxBackend string
	onnxScale   float64
	onnxThreads int
	onnxDevice  int
}

// parameterFlags maps flag names to the parameter fields they override.
var parameterFlags = map[string]string{
	"clip-limit":      enhance.FieldClipLimit,
	"tile-grid":       enhance.FieldTileGrid,
	"contrast-alpha":  enhance.FieldContrastAlpha,
	"brightness-beta": enhance.FieldBrightnessBeta,
	"scale-factor":    enhance.FieldScaleFactor,
	"creativity":      enhance.FieldCreativity,
	"resemblance":     enhance.FieldResemblance,
}

func newEnhanceCmd(g *globalFlags) *cobra.Command {
	f := &enhanceFlags{}
	cmd := &cobra.Command{
		Use:   "enhance",
		Short: "Enhance an image file or every image in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := f.apply(cmd.Flags(), &cfg); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return runEnhance(cfg, f, log)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "Input image file or directory (required)")
	flags.StringVarP(&f.output, "output", "o", "", "Output file or directory")
	flags.StringVarP(&f.strategy, "strategy", "s", enhance.StrategyClarity, "Enhancement strategy")
	flags.StringVarP(&f.format, "format", "f", string(images.FormatPNG), "Output format ("+images.FormatList()+")")
	flags.IntVar(&f.concurrency, "concurrency", 0, "Images processed at once in directory mode")
	flags.BoolVar(&f.profile, "profile", false, "Log per-stage timings when done")

	flags.Float64Var(&f.clipLimit, "clip-limit", enhance.DefaultClipLimit, "CLAHE clip limit")
	flags.StringVar(&f.tileGrid, "tile-grid", "8x8", "CLAHE tile grid, RxC")
	flags.Float64Var(&f.contrastAlpha, "contrast-alpha", enhance.DefaultContrastAlpha, "Tone gain")
	flags.Float64Var(&f.brightnessBeta, "brightness-beta", enhance.DefaultBrightnessBeta, "Tone offset")
	flags.Float64Var(&f.scaleFactor, "scale-factor", enhance.DefaultScaleFactor, "Resample factor")
	flags.Float64Var(&f.creativity, "creativity", enhance.DefaultCreativity, "Contrast gain driver in [0, 1]")
	flags.Float64Var(&f.resemblance, "resemblance", enhance.DefaultResemblance, "Unsharp strength driver in [0, 1]")

	flags.IntVar(&f.jpegQuality, "jpeg-quality", images.DefaultJPEGQuality, "JPEG output quality")

	flags.StringVar(&f.onnxModel, "onnx-model", "", "Path to the ONNX super-resolution model")
	flags.StringVar(&f.onnxLib, "onnx-lib", "", "Path to the onnxruntime shared library")
	flags.StringVar(&f.onnxBackend, "onnx-backend", string(inference.BackendCPU), "Execution provider (cpu, cuda, coreml, openvino)")
	flags.Float64Var(&f.onnxScale, "onnx-scale", 4, "Native scale of the ONNX model")
	flags.IntVar(&f.onnxThreads, "onnx-threads", 0, "Intra-op threads, 0 lets the runtime decide")
	flags.IntVarP(&f.onnxDevice, "gpu-id", "g", 0, "GPU device for the cuda backend")

	_ = cmd.MarkFlagRequired("input")
	return cmd
}

// apply copies explicitly set flags into cfg.
func (f *enhanceFlags) apply(flags *pflag.FlagSet, cfg *config.Config) error {
	if flags.Changed("strategy") {
		cfg.Strategy = f.strategy
	}
	if flags.Changed("format") {
		format, err := images.ParseFormat(f.format)
		if err != nil {
			return err
		}
		cfg.Format = format
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if flags.Changed("jpeg-quality") {
		cfg.Encode.JPEGQuality = f.jpegQuality
	}

	fields := make(map[string]string)
	for name, field := range parameterFlags {
		if flags.Changed(name) {
			fields[field] = flags.Lookup(name).Value.String()
		}
	}
	overrides, err := enhance.ParseFields(fields)
	if err != nil {
		return err
	}
	cfg.Parameters = mergeOptions(cfg.Parameters, overrides)

	if flags.Changed("onnx-model") {
		cfg.ONNX.ModelPath = f.onnxModel
	}
	if flags.Changed("onnx-lib") {
		cfg.ONNX.SharedLibraryPath = f.onnxLib
	}
	if flags.Changed("onnx-backend") {
		cfg.ONNX.Backend = inference.Backend(f.onnxBackend)
	}
	if flags.Changed("onnx-scale") {
		cfg.ONNX.ModelScale = f.onnxScale
	}
	if flags.Changed("onnx-threads") {
		cfg.ONNX.IntraOpThreads = f.onnxThreads
	}
	if flags.Changed("gpu-id") {
		cfg.ONNX.DeviceID = f.onnxDevice
	}
	return nil
}

// mergeOptions returns base with every field set in override replaced.
func mergeOptions(base, override enhance.Options) enhance.Options {
	if override.ClipLimit != nil {
		base.ClipLimit = override.ClipLimit
	}
	if override.TileGrid != nil {
		base.TileGrid = override.TileGrid
	}
	if override.ContrastAlpha != nil {
		base.ContrastAlpha = override.ContrastAlpha
	}
	if override.BrightnessBeta != nil {
		base.BrightnessBeta = override.BrightnessBeta
	}
	if override.ScaleFactor != nil {
		base.ScaleFactor = override.ScaleFactor
	}
	if override.Creativity != nil {
		base.Creativity = override.Creativity
	}
	if override.Resemblance != nil {
		base.Resemblance = override.Resemblance
	}
	return base
}

// buildRegistry registers every strategy available under cfg. The onnx
// strategy is only loaded when it is selected, since it needs a model file.
//
// Returns:
// - The registry.
// - A function releasing native resources.
// - An error if the selected strategy cannot be created.
func buildRegistry(cfg config.Config, log zerolog.Logger, opts ...enhance.PipelineOption) (*enhance.Registry, func() error, error) {
	registry := enhance.DefaultRegistry(opts...)
	registry.Register(opencv.StrategyName, opencv.New(log))

	closer := func() error { return nil }
	if cfg.Strategy == inference.StrategyName {
		u, err := inference.New(cfg.ONNX, log)
		if err != nil {
			return nil, closer, err
		}
		registry.Register(inference.StrategyName, u)
		closer = u.Close
	}
	return registry, closer, nil
}

func runEnhance(cfg config.Config, f *enhanceFlags, log zerolog.Logger) (err error) {
	params, err := cfg.ResolveParameters()
	if err != nil {
		return err
	}
	format, err := cfg.OutputFormat()
	if err != nil {
		return err
	}

	opts := []enhance.PipelineOption{enhance.WithLogger(log)}
	var timer *profiler.StageTimer
	if f.profile {
		timer = profiler.NewStageTimer()
		opts = append(opts, enhance.WithHooks(timer))
	}

	registry, closer, err := buildRegistry(cfg, log, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	upscaler, err := registry.Get(cfg.Strategy)
	if err != nil {
		return err
	}
	enhancer := enhance.NewEnhancer(upscaler, log, &cfg.Encode)

	log.Info().
		Str("strategy", cfg.Strategy).
		Str("format", string(format)).
		Str("input", f.input).
		Msg("starting enhancement")

	if util.IsDirectory(f.input) {
		err = enhanceDirectory(enhancer, params, format, cfg.Concurrency, f, log, timer)
	} else {
		err = enhanceFile(enhancer, params, format, f, log, timer)
	}

	if timer != nil {
		timer.Log(log)
	}
	return err
}

func enhanceFile(e *enhance.Enhancer, params enhance.Parameters, format images.ImageFormat, f *enhanceFlags, log zerolog.Logger, timer *profiler.StageTimer) error {
	data, err := os.ReadFile(f.input)
	if err != nil {
		return errors.Wrapf(err, "read %s", f.input)
	}

	out := f.output
	if out == "" {
		ext := filepath.Ext(f.input)
		out = strings.TrimSuffix(f.input, ext) + "_out" + format.Extension()
	}

	done := func() {}
	if timer != nil {
		done = timer.StartOperation("image")
	}
	encoded, err := e.Enhance(data, params, format)
	done()
	if err != nil {
		return errors.Wrapf(err, "enhance %s", f.input)
	}

	if err := util.WriteOutput(out, encoded); err != nil {
		return err
	}
	log.Info().Str("output", out).Int("bytes", len(encoded)).Msg("image written")
	return nil
}

func enhanceDirectory(e *enhance.Enhancer, params enhance.Parameters, format images.ImageFormat, concurrency int, f *enhanceFlags, log zerolog.Logger, timer *profiler.StageTimer) error {
	outDir := f.output
	if outDir == "" {
		outDir = filepath.Clean(f.input) + "_out"
	}

	files, err := util.LoadDirectoryImageFiles(f.input)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no supported images in %s", f.input)
	}

	items := make([]enhance.BatchItem, len(files))
	names := make([]string, len(files))
	for i, file := range files {
		items[i] = enhance.BatchItem{Name: file.Name, Data: file.Data}
		names[i] = file.Name
	}
	outPaths, err := util.OutputPaths(outDir, names, format)
	if err != nil {
		return err
	}

	done := func() {}
	if timer != nil {
		done = timer.StartOperation("batch")
	}
	results := e.EnhanceBatch(items, params, format, concurrency)
	done()

	failed := 0
	for i, res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		out := outPaths[i]
		if err := util.WriteOutput(out, res.Data); err != nil {
			return err
		}
		log.Debug().Str("output", out).Int("bytes", len(res.Data)).Msg("image written")
	}

	log.Info().
		Int("images", len(results)).
		Int("failed", failed).
		Str("output", outDir).
		Msg("directory enhanced")

	if failed > 0 {
		return errors.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}
