package enhance

import (
	"image"
	"math"

	"github.com/disintegration/gift"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-clarity/images"
)

// Unsharp mask settings of the alternate chain.
const (
	UnsharpRadius    = 2.0
	UnsharpThreshold = 3
)

// ResampleStage scales both dimensions by the same factor with a Lanczos3
// filter. Target dimensions are floored and never drop below one pixel.
type ResampleStage struct {
	Factor float64
}

// Name implements Stage.
func (s *ResampleStage) Name() string { return StageResample }

// OutputSize implements Resizer.
func (s *ResampleStage) OutputSize(width, height int) (int, int) {
	scale := func(v int) int {
		n := int(math.Floor(float64(v) * s.Factor))
		if n < 1 {
			return 1
		}
		return n
	}
	return scale(width), scale(height)
}

// Apply implements Stage.
//
// Arguments:
// - src: The source buffer.
//
// Returns:
// - A new buffer of OutputSize(src.Width(), src.Height()).
// - An error if src is malformed or the factor is not positive.
//
// @example
// out, err := (&ResampleStage{Factor: 2}).Apply(tenByTen) // 20×20
func (s *ResampleStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if !(s.Factor > 0) || math.IsInf(s.Factor, 0) {
		return nil, errors.Wrapf(ErrInvalidParameters, "scale_factor %v: must be > 0", s.Factor)
	}

	w, h := s.OutputSize(src.Width(), src.Height())
	resized := resize.Resize(uint(w), uint(h), src.ToRGBA(), resize.Lanczos3)
	return images.FromImage(resized)
}

// ContrastGainStage blends every sample away from (gain > 1) or towards
// (gain < 1) the mean luma of the image.
type ContrastGainStage struct {
	Gain float64
}

// Name implements Stage.
func (s *ContrastGainStage) Name() string { return StageContrastGain }

// meanLuma returns the rounded mean of the ITU-R 601-2 luma of src, computed
// in 16-bit fixed point per pixel.
func meanLuma(src *images.PixelBuffer) int {
	pix := src.Pix()
	var sum uint64
	for i := 0; i < len(pix); i += images.Channels {
		b, g, r := uint32(pix[i]), uint32(pix[i+1]), uint32(pix[i+2])
		sum += uint64((r*19595 + g*38470 + b*7471 + 0x8000) >> 16)
	}
	pixels := float64(len(pix) / images.Channels)
	return int(float64(sum)/pixels + 0.5)
}

// Apply implements Stage.
func (s *ContrastGainStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	mean := float32(meanLuma(src))
	gain := float32(s.Gain)
	var lut [256]uint8
	for v := range lut {
		lut[v] = images.TruncUint8(float64(mean + gain*(float32(v)-mean)))
	}
	return applyLUT(src, &lut, nil)
}

// UnsharpStage sharpens by adding back the difference between the image and a
// Gaussian-blurred copy. A sample is only sharpened when its difference from
// the blurred copy is at least Threshold levels; the comparison uses the raw
// difference, before it is scaled by Amount.
type UnsharpStage struct {
	// Radius is the Gaussian sigma in pixels.
	Radius float64
	// Amount is the strength as a fraction (0.6 = 60%).
	Amount float64
	// Threshold is the minimum difference, in 8-bit levels, that is sharpened.
	Threshold int
}

// Name implements Stage.
func (s *UnsharpStage) Name() string { return StageUnsharp }

// Apply implements Stage.
//
// Every sample becomes in + diff*percent/100 (integer, truncated towards zero,
// saturated) where diff = in - blurred and percent = round(Amount*100), or
// stays in when |diff| < Threshold.
func (s *UnsharpStage) Apply(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	percent := int(math.Round(s.Amount * 100))
	if percent == 0 {
		return src.Clone(), nil
	}

	g := gift.New(gift.GaussianBlur(float32(s.Radius)))
	img := src.ToRGBA()
	blurred := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(blurred, img)

	w, h := src.Width(), src.Height()
	in := src.Pix()
	out := make([]uint8, len(in))
	// BGR sample c reads RGBA byte rgbaIndex[c].
	rgbaIndex := [images.Channels]int{2, 1, 0}
	images.Parallel(h, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * images.Channels
				o := blurred.PixOffset(x+blurred.Rect.Min.X, y+blurred.Rect.Min.Y)
				for c := 0; c < images.Channels; c++ {
					v := int(in[i+c])
					diff := v - int(blurred.Pix[o+rgbaIndex[c]])
					if diff < s.Threshold && -diff < s.Threshold {
						out[i+c] = in[i+c]
						continue
					}
					out[i+c] = images.ClampUint8(v + diff*percent/100)
				}
			}
		}
	})
	return images.NewPixelBuffer(w, h, out)
}

// NewResampleChain returns the alternate stage sequence: resample, contrast
// gain, unsharp mask.
func NewResampleChain(p Parameters) []Stage {
	return []Stage{
		&ResampleStage{Factor: p.ScaleFactor},
		&ContrastGainStage{Gain: p.ContrastGain()},
		&UnsharpStage{Radius: UnsharpRadius, Amount: p.UnsharpAmount(), Threshold: UnsharpThreshold},
	}
}
