package enhance

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/images/kernels"
)

// Stage names reported in EnhancementError and hook callbacks.
const (
	StageContrast     = "contrast"
	StageSharpen      = "sharpen"
	StageTone         = "tone"
	StageResample     = "resample"
	StageContrastGain = "contrast_gain"
	StageUnsharp      = "unsharp"
)

// Stage is a pure buffer transform. Apply must not modify src and must return
// a new buffer; stages hold no state between calls.
type Stage interface {
	// Name identifies the stage in errors, logs and timing reports.
	Name() string
	// Apply transforms src into a new buffer.
	Apply(src *images.PixelBuffer) (*images.PixelBuffer, error)
}

// Resizer is implemented by stages whose output dimensions differ from their
// input. Every other stage must preserve width and height exactly.
type Resizer interface {
	OutputSize(width, height int) (int, int)
}

// ContrastStage equalizes lightness locally in CIE L*a*b* space, leaving the
// chroma channels untouched.
type ContrastStage struct {
	ClipLimit float64
	TileGrid  TileGrid
}

// NewContrastStage builds the stage from resolved parameters.
func NewContrastStage(p Parameters) *ContrastStage {
	return &ContrastStage{ClipLimit: p.ClipLimit, TileGrid: p.TileGrid}
}

// Name implements Stage.
func (s *ContrastStage) Name() string { return StageContrast }

// Apply implements Stage.
//
// Arguments:
// - src: The BGR source buffer.
//
// Returns:
// - A new buffer with equalized lightness and the source's chroma.
// - An *images.InvalidBufferError if src is malformed.
func (s *ContrastStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	grid := s.TileGrid
	if grid.Rows <= 0 || grid.Cols <= 0 {
		grid = TileGrid{Rows: DefaultTileRows, Cols: DefaultTileCols}
	}

	pb := toPerceptual(src)
	lightness := equalizeLightness(pb.l, pb.width, pb.height, s.ClipLimit, grid)
	return fromPerceptual(pb, lightness)
}

// SharpenStage convolves every channel with a 3×3 high-pass kernel using
// saturating arithmetic and a replicated border.
type SharpenStage struct {
	Kernel kernels.Kernel3x3
	Pool   *kernels.Pool
}

// NewSharpenStage builds the stage from resolved parameters. A zero kernel in
// p selects kernels.Sharpen.
func NewSharpenStage(p Parameters) *SharpenStage {
	k := p.SharpenKernel
	if k == (kernels.Kernel3x3{}) {
		k = kernels.Sharpen
	}
	return &SharpenStage{Kernel: k}
}

// Name implements Stage.
func (s *SharpenStage) Name() string { return StageSharpen }

// Apply implements Stage.
func (s *SharpenStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	return kernels.Convolve(src, s.Kernel, kernels.Options{
		Edge:     kernels.EdgeClamp,
		Pool:     s.Pool,
		Parallel: true,
	})
}

// ToneStage applies out = clamp(alpha*in + beta, 0, 255) to every sample,
// truncating the fractional part.
type ToneStage struct {
	lut  [256]uint8
	Pool *kernels.Pool
}

// NewToneStage precomputes the remap table.
//
// Arguments:
// - alpha: The linear gain.
// - beta: The linear offset.
//
// Returns:
// - The stage.
//
// @example
// stage := NewToneStage(1.2, 10) // 128 -> 163
func NewToneStage(alpha, beta float64) *ToneStage {
	s := &ToneStage{}
	a, b := float32(alpha), float32(beta)
	for i := range s.lut {
		v := math32.Max(0, math32.Min(255, a*float32(i)+b))
		s.lut[i] = uint8(v)
	}
	return s
}

// Name implements Stage.
func (s *ToneStage) Name() string { return StageTone }

// Map returns the remapped value of a single sample.
func (s *ToneStage) Map(v uint8) uint8 { return s.lut[v] }

// Apply implements Stage.
func (s *ToneStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	return applyLUT(src, &s.lut, s.Pool)
}

// applyLUT maps every sample of src through lut into a new buffer.
func applyLUT(src *images.PixelBuffer, lut *[256]uint8, pool *kernels.Pool) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	in := src.Pix()
	out := pool.Get(len(in))
	stride := src.Stride()
	images.Parallel(src.Height(), func(partStart, partEnd int) {
		for i := partStart * stride; i < partEnd*stride; i++ {
			out[i] = lut[in[i]]
		}
	})
	return images.NewPixelBuffer(src.Width(), src.Height(), out)
}
