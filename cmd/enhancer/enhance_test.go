package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeGradient(t *testing.T, path string, w, h int) {
	t.Helper()
	pix := make([]uint8, w*h*images.Channels)
	for i := range pix {
		pix[i] = uint8((i * 7) % 256)
	}
	buf, err := images.NewPixelBuffer(w, h, pix)
	require.NoError(t, err)
	data, err := images.Encode(buf, images.FormatPNG, nil)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func decodeFile(t *testing.T, path string) (*images.PixelBuffer, images.ImageFormat) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	buf, format, err := images.Decode(data)
	require.NoError(t, err)
	return buf, format
}

func TestEnhanceSingleFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeGradient(t, in, 16, 12)

	_, err := execute(t, "enhance", "-i", in, "--log-level", "error")
	require.NoError(t, err)

	out, format := decodeFile(t, filepath.Join(dir, "photo_out.png"))
	assert.Equal(t, images.FormatPNG, format)
	assert.Equal(t, 16, out.Width())
	assert.Equal(t, 12, out.Height())
}

func TestEnhanceResampleToJPEG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	out := filepath.Join(dir, "big.jpg")
	writeGradient(t, in, 10, 6)

	_, err := execute(t, "enhance", "-i", in, "-o", out, "-s", "resample", "-f", "jpg",
		"--scale-factor", "1.5", "--log-format", "json", "--log-level", "error")
	require.NoError(t, err)

	buf, format := decodeFile(t, out)
	assert.Equal(t, images.FormatJPEG, format)
	assert.Equal(t, 15, buf.Width())
	assert.Equal(t, 9, buf.Height())
}

func TestEnhanceDirectory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "frames")
	require.NoError(t, os.Mkdir(in, 0o755))
	writeGradient(t, filepath.Join(in, "a.png"), 8, 8)
	writeGradient(t, filepath.Join(in, "b.png"), 5, 9)
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.txt"), []byte("x"), 0o644))

	_, err := execute(t, "enhance", "-i", in, "-f", "bmp", "--concurrency", "2", "--profile", "--log-level", "error")
	require.NoError(t, err)

	a, format := decodeFile(t, filepath.Join(dir, "frames_out", "a.bmp"))
	assert.Equal(t, images.FormatBMP, format)
	assert.Equal(t, 8, a.Width())
	b, _ := decodeFile(t, filepath.Join(dir, "frames_out", "b.bmp"))
	assert.Equal(t, 5, b.Width())
	assert.Equal(t, 9, b.Height())
}

func TestEnhanceDirectoryReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeGradient(t, filepath.Join(dir, "good.png"), 4, 4)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not an image"), 0o644))
	out := filepath.Join(t.TempDir(), "out")

	_, err := execute(t, "enhance", "-i", dir, "-o", out, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 images failed")

	_, statErr := os.Stat(filepath.Join(out, "good.png"))
	assert.NoError(t, statErr, "successful items are still written")
}

func TestEnhanceDirectoryRejectsOutputCollision(t *testing.T) {
	dir := t.TempDir()
	writeGradient(t, filepath.Join(dir, "a.png"), 4, 4)
	writeGradient(t, filepath.Join(dir, "a.jpg"), 4, 4)
	out := filepath.Join(t.TempDir(), "out")

	_, err := execute(t, "enhance", "-i", dir, "-o", out, "--log-level", "error")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.jpg")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "nothing is written when outputs collide")
}

func TestEnhanceErrors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeGradient(t, in, 4, 4)

	tests := []struct {
		name string
		args []string
	}{
		{"missing input flag", []string{"enhance"}},
		{"missing input file", []string{"enhance", "-i", filepath.Join(dir, "absent.png")}},
		{"unknown strategy", []string{"enhance", "-i", in, "-s", "magic"}},
		{"bad format", []string{"enhance", "-i", in, "-f", "tiff"}},
		{"bad parameter", []string{"enhance", "-i", in, "--creativity", "2"}},
		{"bad tile grid", []string{"enhance", "-i", in, "--tile-grid", "0x4"}},
		{"onnx without model", []string{"enhance", "-i", in, "-s", "onnx"}},
		{"bad log level", []string{"enhance", "-i", in, "--log-level", "loud"}},
		{"missing config", []string{"enhance", "-i", in, "-c", filepath.Join(dir, "absent.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "photo.png")
	writeGradient(t, in, 10, 10)
	cfgPath := filepath.Join(dir, "enhancer.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("strategy: resample\nlog_level: error\nparameters:\n  scale_factor: 3\n"), 0o644))

	// The file selects resample at 3x; the flag lowers the factor to 2.
	out := filepath.Join(dir, "out.png")
	_, err := execute(t, "enhance", "-c", cfgPath, "-i", in, "-o", out, "--scale-factor", "2")
	require.NoError(t, err)
	buf, _ := decodeFile(t, out)
	assert.Equal(t, 20, buf.Width())

	// Without the flag the file value applies.
	_, err = execute(t, "enhance", "-c", cfgPath, "-i", in, "-o", out)
	require.NoError(t, err)
	buf, _ = decodeFile(t, out)
	assert.Equal(t, 30, buf.Width())
}

func TestMergeOptions(t *testing.T) {
	base := enhance.Options{ScaleFactor: enhance.Float(3), Creativity: enhance.Float(0.1)}
	grid := enhance.TileGrid{Rows: 2, Cols: 2}
	merged := mergeOptions(base, enhance.Options{Creativity: enhance.Float(0.9), TileGrid: &grid})

	assert.Equal(t, 3.0, *merged.ScaleFactor)
	assert.Equal(t, 0.9, *merged.Creativity)
	assert.Equal(t, grid, *merged.TileGrid)
	assert.Nil(t, merged.ClipLimit)
}

func TestStrategiesCommand(t *testing.T) {
	out, err := execute(t, "strategies")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{"clarity", "opencv", "resample", "onnx (requires --onnx-model)"}, lines)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version+"\n", out)
}
