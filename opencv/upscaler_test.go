package opencv

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
)

func gradient(t *testing.T, width, height int) *images.PixelBuffer {
	t.Helper()
	pix := make([]uint8, width*height*images.Channels)
	for i := range pix {
		pix[i] = uint8((i * 13) % 251)
	}
	buf, err := images.NewPixelBuffer(width, height, pix)
	require.NoError(t, err)
	return buf
}

func TestMatRoundTrip(t *testing.T) {
	src := gradient(t, 9, 5)

	mat, err := ToMat(src)
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 5, mat.Rows())
	assert.Equal(t, 9, mat.Cols())
	assert.Equal(t, gocv.MatTypeCV8UC3, mat.Type())

	out, err := FromMat(mat)
	require.NoError(t, err)
	assert.True(t, out.Equal(src))
	assert.Equal(t, images.Checksum(src), images.Checksum(out))
}

func TestFromMatRejectsEmpty(t *testing.T) {
	mat := gocv.NewMat()
	defer mat.Close()

	_, err := FromMat(mat)
	var invalid *images.InvalidBufferError
	assert.True(t, errors.As(err, &invalid))
	assert.Equal(t, "empty", MatChecksum(mat))
}

func TestUpscalePreservesShape(t *testing.T) {
	u := New(zerolog.Nop())
	for _, size := range [][2]int{{1, 1}, {3, 2}, {32, 24}} {
		out, err := u.Upscale(gradient(t, size[0], size[1]), enhance.DefaultParameters())
		require.NoError(t, err, "%v", size)
		assert.Equal(t, size[0], out.Width())
		assert.Equal(t, size[1], out.Height())
	}
}

func TestUpscaleIsDeterministic(t *testing.T) {
	u := New(zerolog.Nop())
	src := gradient(t, 40, 30)

	a, err := u.Upscale(src, enhance.DefaultParameters())
	require.NoError(t, err)
	b, err := u.Upscale(src, enhance.DefaultParameters())
	require.NoError(t, err)
	assert.Equal(t, images.Checksum(a), images.Checksum(b))
}

func TestUpscaleSharpenSaturates(t *testing.T) {
	pix := make([]uint8, 3*3*images.Channels)
	center := (1*3 + 1) * images.Channels
	pix[center], pix[center+1], pix[center+2] = 255, 255, 255
	src, err := images.NewPixelBuffer(3, 3, pix)
	require.NoError(t, err)

	mat, err := ToMat(src)
	require.NoError(t, err)
	defer mat.Close()

	out, err := applySharpen(mat, enhance.DefaultParameters())
	require.NoError(t, err)
	defer out.Close()

	buf, err := FromMat(out)
	require.NoError(t, err)
	b, g, r := buf.At(1, 1)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{b, g, r})
}

func TestUpscaleRejectsInvalidInput(t *testing.T) {
	_, err := New(zerolog.Nop()).Upscale(nil, enhance.DefaultParameters())
	var enhErr *enhance.EnhancementError
	require.True(t, errors.As(err, &enhErr))
	assert.Equal(t, "input", enhErr.Stage)
}
