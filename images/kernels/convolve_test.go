package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-clarity/images"
)

// grayRow builds a width×1 buffer whose pixels carry the given gray values.
func grayRow(t *testing.T, values ...uint8) *images.PixelBuffer {
	t.Helper()
	pix := make([]uint8, 0, len(values)*images.Channels)
	for _, v := range values {
		pix = append(pix, v, v, v)
	}
	buf, err := images.NewPixelBuffer(len(values), 1, pix)
	require.NoError(t, err)
	return buf
}

func TestSharpenSaturatesBrightPixel(t *testing.T) {
	pix := make([]uint8, 3*3*images.Channels)
	center := (1*3 + 1) * images.Channels
	pix[center], pix[center+1], pix[center+2] = 255, 255, 255
	src, err := images.NewPixelBuffer(3, 3, pix)
	require.NoError(t, err)

	out, err := Convolve(src, Sharpen, Options{Edge: EdgeClamp})
	require.NoError(t, err)

	b, g, r := out.At(1, 1)
	assert.Equal(t, []uint8{255, 255, 255}, []uint8{b, g, r}, "center must saturate, not wrap")

	// Neighbors see 0*9 - 255 and clamp to zero.
	b, g, r = out.At(0, 0)
	assert.Equal(t, []uint8{0, 0, 0}, []uint8{b, g, r})
}

func TestSharpenSinglePixelImage(t *testing.T) {
	src, err := images.NewUniformBuffer(1, 1, 255, 255, 255)
	require.NoError(t, err)

	out, err := Convolve(src, Sharpen, Options{})
	require.NoError(t, err)
	assert.True(t, out.Equal(src), "replicated border makes every tap the same sample")
}

func TestConvolvePreservesFlatImage(t *testing.T) {
	src, err := images.NewUniformBuffer(7, 5, 12, 128, 240)
	require.NoError(t, err)

	for _, mode := range []EdgeMode{EdgeClamp, EdgeMirror, EdgeWrap} {
		out, err := Convolve(src, Sharpen, Options{Edge: mode})
		require.NoError(t, err)
		assert.True(t, out.Equal(src), mode.String())
	}
}

func TestConvolveEdgeModes(t *testing.T) {
	src := grayRow(t, 100, 110, 90)

	clamp, err := Convolve(src, Sharpen, Options{Edge: EdgeClamp})
	require.NoError(t, err)
	mirror, err := Convolve(src, Sharpen, Options{Edge: EdgeMirror})
	require.NoError(t, err)
	wrap, err := Convolve(src, Sharpen, Options{Edge: EdgeWrap})
	require.NoError(t, err)

	// With a single row every kernel column collapses to weights -3, 7, -3.
	b, _, _ := clamp.At(0, 0)
	assert.Equal(t, uint8(70), b) // -3*100 + 7*100 - 3*110
	b, _, _ = wrap.At(0, 0)
	assert.Equal(t, uint8(100), b) // -3*90 + 7*100 - 3*110

	// A one-pixel reach does not distinguish mirror from clamp.
	assert.True(t, clamp.Equal(mirror))
}

func TestConvolveIdentity(t *testing.T) {
	src := grayRow(t, 1, 2, 3, 4, 5)
	out, err := Convolve(src, Identity, Options{Edge: EdgeWrap})
	require.NoError(t, err)
	assert.True(t, out.Equal(src))
	assert.Equal(t, 1, Sharpen.Sum())
}

func TestConvolveParallelMatchesSerial(t *testing.T) {
	w, h := 64, 300
	pix := make([]uint8, w*h*images.Channels)
	for i := range pix {
		pix[i] = uint8((i * 37) % 251)
	}
	src, err := images.NewPixelBuffer(w, h, pix)
	require.NoError(t, err)

	serial, err := Convolve(src, Sharpen, Options{})
	require.NoError(t, err)
	parallel, err := Convolve(src, Sharpen, Options{Parallel: true, Pool: NewPool()})
	require.NoError(t, err)
	assert.Equal(t, images.Checksum(serial), images.Checksum(parallel))
}

func TestConvolveRejectsInvalidInput(t *testing.T) {
	_, err := Convolve(nil, Sharpen, Options{})
	assert.Error(t, err)
}

func TestMapCoord(t *testing.T) {
	cases := []struct {
		i, n int
		mode EdgeMode
		want int
	}{
		{-1, 5, EdgeClamp, 0},
		{5, 5, EdgeClamp, 4},
		{-2, 5, EdgeMirror, 1},
		{6, 5, EdgeMirror, 3},
		{-1, 5, EdgeWrap, 4},
		{7, 5, EdgeWrap, 2},
		{-3, 1, EdgeMirror, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapCoord(tc.i, tc.n, tc.mode), "mapCoord(%d, %d, %s)", tc.i, tc.n, tc.mode)
	}
}

func TestPoolReturnsRequestedLength(t *testing.T) {
	p := NewPool()
	buf, err := images.NewUniformBuffer(4, 4, 1, 1, 1)
	require.NoError(t, err)
	p.Put(buf)

	assert.Len(t, p.Get(12), 12)
	assert.Len(t, p.Get(4096), 4096)

	var nilPool *Pool
	assert.Len(t, nilPool.Get(3), 3)
	nilPool.Put(buf)
}
