package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	cases := map[string]ImageFormat{
		"png":   FormatPNG,
		".PNG":  FormatPNG,
		"jpg":   FormatJPEG,
		".jpeg": FormatJPEG,
		"WebP":  FormatWebP,
		"bmp":   FormatBMP,
	}
	for in, want := range cases {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("gif")
	assert.Error(t, err)
}

func TestFormatExtension(t *testing.T) {
	assert.Equal(t, ".jpg", FormatJPEG.Extension())
	assert.Equal(t, ".png", ImageFormat("").Extension())
	assert.Equal(t, ".webp", FormatWebP.Extension())
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("/tmp/shot.JPG")
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, f)

	_, err = FormatFromPath("/tmp/noext")
	assert.Error(t, err)
}

func TestRoundingHelpers(t *testing.T) {
	assert.Equal(t, uint8(128), RoundUint8(127.5))
	assert.Equal(t, uint8(0), RoundUint8(-3))
	assert.Equal(t, uint8(255), RoundUint8(300))
	assert.Equal(t, uint8(163), TruncUint8(163.6))
	assert.Equal(t, uint8(255), ClampUint8(999))
	assert.Equal(t, uint8(0), ClampUint8(-1))
}

func TestParallelCoversRange(t *testing.T) {
	const n = 1037
	seen := make([]int32, n)
	Parallel(n, func(start, end int) {
		for i := start; i < end; i++ {
			seen[i]++
		}
	})
	for i, v := range seen {
		require.Equal(t, int32(1), v, "index %d", i)
	}
}

func TestFormatList(t *testing.T) {
	assert.Equal(t, "png, jpeg, webp, bmp", FormatList())

	_, err := ParseFormat("tiff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), FormatList())
}
