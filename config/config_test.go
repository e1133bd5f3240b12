package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/inference"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	params, err := cfg.ResolveParameters()
	require.NoError(t, err)
	assert.Equal(t, enhance.DefaultParameters(), params)

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, images.FormatPNG, format)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enhancer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strategy: resample
format: jpg
concurrency: 2
log_level: debug
log_format: json
parameters:
  scale_factor: 3
  brightness_beta: 0
  tile_grid:
    rows: 4
    cols: 6
encode:
  jpeg_quality: 80
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, enhance.StrategyResample, cfg.Strategy)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, LogFormatJSON, cfg.LogFormat)
	assert.Equal(t, 80, cfg.Encode.JPEGQuality)

	format, err := cfg.OutputFormat()
	require.NoError(t, err)
	assert.Equal(t, images.FormatJPEG, format)

	params, err := cfg.ResolveParameters()
	require.NoError(t, err)
	assert.Equal(t, 3.0, params.ScaleFactor)
	assert.Equal(t, 0.0, params.BrightnessBeta, "explicit zero is kept")
	assert.Equal(t, enhance.TileGrid{Rows: 4, Cols: 6}, params.TileGrid)
	assert.Equal(t, enhance.DefaultContrastAlpha, params.ContrastAlpha, "unset field keeps default")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestParseEmptyUsesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: red\n"},
		{"malformed", "strategy: [\n"},
		{"empty strategy", "strategy: \"\"\n"},
		{"bad format", "format: tiff\n"},
		{"zero concurrency", "concurrency: 0\n"},
		{"bad level", "log_level: loud\n"},
		{"bad log format", "log_format: xml\n"},
		{"jpeg quality", "encode:\n  jpeg_quality: 101\n"},
		{"webp quality", "encode:\n  webp_quality: -1\n"},
		{"onnx without model", "strategy: onnx\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestParseRejectsInvalidParameters(t *testing.T) {
	_, err := Parse([]byte("parameters:\n  creativity: 1.5\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, enhance.ErrInvalidParameters))
}

func TestONNXSection(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("stub"), 0o644))

	cfg, err := Parse([]byte("strategy: onnx\nonnx:\n  model_path: " + model + "\n  backend: cuda\n  device_id: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, model, cfg.ONNX.ModelPath)
	assert.Equal(t, inference.BackendCUDA, cfg.ONNX.Backend)
	assert.Equal(t, 1, cfg.ONNX.DeviceID)
	assert.Equal(t, "input", cfg.ONNX.InputName, "defaults survive partial sections")
}

func TestMarshalRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Strategy = enhance.StrategyResample
	cfg.Parameters.Creativity = enhance.Float(0.8)

	data, err := cfg.Marshal()
	require.NoError(t, err)

	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}
