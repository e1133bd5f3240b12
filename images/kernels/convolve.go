package kernels

import (
	"sync"

	"github.com/nvr-ai/go-clarity/images"
)

// EdgeMode defines how sampling behaves outside the image bounds.
// - Clamp: repeats edge pixels (replicate border).
// - Mirror: reflects coordinates without repeating the edge sample.
// - Wrap: tiles the image (for periodic patterns).
type EdgeMode int

const (
	EdgeClamp EdgeMode = iota
	EdgeMirror
	EdgeWrap
)

// String returns the edge mode's name.
func (m EdgeMode) String() string {
	switch m {
	case EdgeMirror:
		return "mirror"
	case EdgeWrap:
		return "wrap"
	default:
		return "clamp"
	}
}

// Kernel3x3 holds integer convolution weights indexed [row][col], where
// [1][1] is the center tap.
type Kernel3x3 [3][3]int

// Sharpen is the fixed sharpening kernel: center 9, every neighbor -1. Its
// weights sum to 1, so flat regions pass through unchanged.
var Sharpen = Kernel3x3{
	{-1, -1, -1},
	{-1, 9, -1},
	{-1, -1, -1},
}

// Identity passes every sample through unchanged.
var Identity = Kernel3x3{
	{0, 0, 0},
	{0, 1, 0},
	{0, 0, 0},
}

// Sum returns the sum of all weights.
func (k Kernel3x3) Sum() int {
	s := 0
	for _, row := range k {
		for _, v := range row {
			s += v
		}
	}
	return s
}

// Options configures the convolution call.
type Options struct {
	Edge     EdgeMode // Edge sampling mode.
	Pool     *Pool    // Optional sample pool for the destination buffer.
	Parallel bool     // Enable row parallelism (good for 1080p+).
}

// Convolve applies a 3×3 kernel to every channel of src independently.
// Accumulation is done in int and each result is saturated to [0, 255], so a
// bright pixel on black stays at 255 instead of wrapping around.
//
// Arguments:
// - src: The source buffer.
// - k: The kernel weights.
// - opt: Edge mode, optional pool and parallelism.
//
// Returns:
// - A new buffer with the same dimensions as src.
// - An *images.InvalidBufferError if src is malformed.
//
// @example
// out, err := Convolve(buf, Sharpen, Options{Edge: EdgeClamp, Parallel: true})
func Convolve(src *images.PixelBuffer, k Kernel3x3, opt Options) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	w, h := src.Width(), src.Height()
	stride := src.Stride()
	in := src.Pix()
	out := opt.Pool.Get(len(in))

	// Column offsets for x-1, x, x+1 are resolved once per column so the hot
	// loop never calls mapCoord.
	colOff := make([][3]int, w)
	for x := 0; x < w; x++ {
		for d := -1; d <= 1; d++ {
			colOff[x][d+1] = mapCoord(x+d, w, opt.Edge) * images.Channels
		}
	}

	rowTask := func(y int) {
		var rows [3]int
		for d := -1; d <= 1; d++ {
			rows[d+1] = mapCoord(y+d, h, opt.Edge) * stride
		}
		dstRow := out[y*stride : (y+1)*stride]
		for x := 0; x < w; x++ {
			cols := colOff[x]
			for c := 0; c < images.Channels; c++ {
				acc := 0
				for ky := 0; ky < 3; ky++ {
					base := rows[ky] + c
					acc += k[ky][0]*int(in[base+cols[0]]) +
						k[ky][1]*int(in[base+cols[1]]) +
						k[ky][2]*int(in[base+cols[2]])
				}
				dstRow[x*images.Channels+c] = images.ClampUint8(acc)
			}
		}
	}

	if !opt.Parallel || h < 4 {
		for y := 0; y < h; y++ {
			rowTask(y)
		}
	} else {
		chunk := chooseChunk(h)
		var wg sync.WaitGroup
		for start := 0; start < h; start += chunk {
			end := start + chunk
			if end > h {
				end = h
			}
			wg.Add(1)
			go func(s, e int) {
				defer wg.Done()
				for y := s; y < e; y++ {
					rowTask(y)
				}
			}(start, end)
		}
		wg.Wait()
	}

	return images.NewPixelBuffer(w, h, out)
}

// mapCoord maps an index i to [0, n) according to edge mode.
// For Clamp: clamp to [0, n-1].
// For Mirror: reflect indices ... -2,-1,0,1,2, ... -> 1,0,0,1,2, ... (no duplication at edges).
// For Wrap: modulo wrap to [0, n).
func mapCoord(i, n int, mode EdgeMode) int {
	switch mode {
	case EdgeMirror:
		if n == 1 {
			return 0
		}
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else if i >= n {
				i = 2*n - i - 1
			}
		}
		return i
	case EdgeWrap:
		if n == 0 {
			return 0
		}
		i %= n
		if i < 0 {
			i += n
		}
		return i
	default:
		if i < 0 {
			return 0
		}
		if i >= n {
			return n - 1
		}
		return i
	}
}

// chooseChunk picks a work chunk size that balances overhead and cache locality.
func chooseChunk(n int) int {
	switch {
	case n >= 2048:
		return 128
	case n >= 512:
		return 64
	default:
		return 32
	}
}
