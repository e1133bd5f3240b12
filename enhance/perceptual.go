package enhance

import (
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/nvr-ai/go-clarity/images"
)

// chromaOffset and chromaScale map go-colorful's a*, b* (roughly [-1, 1]) onto
// the 0-255 offset scale used by 8-bit Lab encodings.
const (
	chromaScale  = 100
	chromaOffset = 128
)

// perceptualBuffer is the CIE L*a*b* (D65) form of a PixelBuffer. Lightness is
// quantized to 8 bits for equalization; chroma is kept unquantized so the
// round trip adds no banding to hue.
type perceptualBuffer struct {
	width  int
	height int
	l      []uint8
	a      []float32
	b      []float32
}

// srgbToLinear caches sRGB decompanding for every 8-bit sample.
var srgbToLinear = func() (lut [256]float64) {
	for i := range lut {
		v := float64(i) / 255
		lut[i], _, _ = colorful.Color{R: v, G: v, B: v}.LinearRgb()
	}
	return lut
}()

// toPerceptual converts a BGR buffer to Lab.
func toPerceptual(src *images.PixelBuffer) *perceptualBuffer {
	w, h := src.Width(), src.Height()
	n := w * h
	pb := &perceptualBuffer{
		width:  w,
		height: h,
		l:      make([]uint8, n),
		a:      make([]float32, n),
		b:      make([]float32, n),
	}

	pix := src.Pix()
	images.Parallel(h, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				s := pix[i*images.Channels : i*images.Channels+3 : i*images.Channels+3]
				lx, ly, lz := colorful.LinearRgbToXyz(srgbToLinear[s[2]], srgbToLinear[s[1]], srgbToLinear[s[0]])
				l, a, b := colorful.XyzToLab(lx, ly, lz)
				pb.l[i] = images.RoundUint8(l * 255)
				pb.a[i] = float32(a*chromaScale + chromaOffset)
				pb.b[i] = float32(b*chromaScale + chromaOffset)
			}
		}
	})
	return pb
}

// fromPerceptual recombines an equalized lightness plane with the buffer's
// untouched chroma and converts back to BGR, clamping out-of-gamut colors.
func fromPerceptual(pb *perceptualBuffer, lightness []uint8) (*images.PixelBuffer, error) {
	w, h := pb.width, pb.height
	pix := make([]uint8, w*h*images.Channels)

	images.Parallel(h, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				l := float64(lightness[i]) / 255
				a := (float64(pb.a[i]) - chromaOffset) / chromaScale
				b := (float64(pb.b[i]) - chromaOffset) / chromaScale

				lx, ly, lz := colorful.LabToXyz(l, a, b)
				r, g, bl := colorful.XyzToLinearRgb(lx, ly, lz)
				r8, g8, b8 := colorful.LinearRgb(r, g, bl).Clamped().RGB255()

				d := pix[i*images.Channels : i*images.Channels+3 : i*images.Channels+3]
				d[0], d[1], d[2] = b8, g8, r8
			}
		}
	})

	return images.NewPixelBuffer(w, h, pix)
}
