package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-clarity/images"
)

func TestBufferToTensorLayout(t *testing.T) {
	// Two pixels: pure blue, then pure red.
	buf, err := images.NewPixelBuffer(2, 1, []uint8{255, 0, 0, 0, 0, 255})
	require.NoError(t, err)

	data, err := BufferToTensor(buf)
	require.NoError(t, err)
	require.Len(t, data, 6)

	assert.Equal(t, []float32{0, 1}, data[0:2], "red plane")
	assert.Equal(t, []float32{0, 0}, data[2:4], "green plane")
	assert.Equal(t, []float32{1, 0}, data[4:6], "blue plane")
}

func TestTensorRoundTrip(t *testing.T) {
	pix := make([]uint8, 5*4*images.Channels)
	for i := range pix {
		pix[i] = uint8(i * 11)
	}
	buf, err := images.NewPixelBuffer(5, 4, pix)
	require.NoError(t, err)

	data, err := BufferToTensor(buf)
	require.NoError(t, err)
	out, err := TensorToBuffer(data, 5, 4)
	require.NoError(t, err)
	assert.True(t, out.Equal(buf))
}

func TestTensorToBufferClampsAndRounds(t *testing.T) {
	// One pixel: r=1.7 (clamped), g=0.5 (127.5 rounds up), b=-0.2 (clamped).
	out, err := TensorToBuffer([]float32{1.7, 0.5, -0.2}, 1, 1)
	require.NoError(t, err)
	b, g, r := out.At(0, 0)
	assert.Equal(t, uint8(0), b)
	assert.Equal(t, uint8(128), g)
	assert.Equal(t, uint8(255), r)
}

func TestTensorToBufferRejectsMismatch(t *testing.T) {
	_, err := TensorToBuffer(make([]float32, 10), 2, 2)
	var invalid *images.InvalidBufferError
	assert.True(t, errors.As(err, &invalid))

	_, err = BufferToTensor(nil)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "model path is required")

	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	assert.Error(t, cfg.Validate())

	model := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("not really a model"), 0o644))
	cfg.ModelPath = model
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.ModelScale = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.Backend = "tpu"
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.IntraOpThreads = -1
	assert.Error(t, bad.Validate())
}

func TestNewFailsWithoutModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "absent.onnx")

	u, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
	assert.Nil(t, u)
}

func TestNewFailsWithoutRuntime(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.onnx")
	require.NoError(t, os.WriteFile(model, []byte("stub"), 0o644))

	cfg := DefaultConfig()
	cfg.ModelPath = model
	cfg.SharedLibraryPath = filepath.Join(t.TempDir(), "libonnxruntime.so")

	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestCloseWithoutSession(t *testing.T) {
	assert.NoError(t, (&Upscaler{}).Close())
}
