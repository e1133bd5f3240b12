package enhance

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-clarity/images"
)

// gradientBuffer builds a deterministic, non-flat test image.
func gradientBuffer(t testing.TB, width, height int) *images.PixelBuffer {
	t.Helper()
	pix := make([]uint8, width*height*images.Channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := (y*width + x) * images.Channels
			pix[i+0] = uint8((x*255)/max(width-1, 1) / 2)
			pix[i+1] = uint8((y * 255) / max(height-1, 1))
			pix[i+2] = uint8((x*y*7 + 31) % 256)
		}
	}
	buf, err := images.NewPixelBuffer(width, height, pix)
	require.NoError(t, err)
	return buf
}

func uniformBuffer(t testing.TB, width, height int, b, g, r uint8) *images.PixelBuffer {
	t.Helper()
	buf, err := images.NewUniformBuffer(width, height, b, g, r)
	require.NoError(t, err)
	return buf
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
