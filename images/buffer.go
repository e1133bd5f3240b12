// Package images - Pixel buffers exchanged between the codec boundary and the
// enhancement stages.
package images

import (
	"image"
	"image/color"
	"image/draw"
)

// Channels is the number of 8-bit samples stored per pixel.
const Channels = 3

// PixelBuffer is an owned, immutable-once-constructed bitmap of shape
// (height, width, 3). Samples are stored row-major in blue, green, red order
// (the native order of OpenCV decoders) with a stride of width*3.
type PixelBuffer struct {
	width  int
	height int
	pix    []uint8
}

// NewPixelBuffer wraps pix as a PixelBuffer. The buffer takes ownership of pix;
// the caller must not modify the slice afterwards.
//
// Arguments:
// - width: The width in pixels (> 0).
// - height: The height in pixels (> 0).
// - pix: BGR samples, len(pix) == width*height*3.
//
// Returns:
// - The PixelBuffer.
// - An *InvalidBufferError if the shape invariant does not hold.
//
// @example
// buf, err := NewPixelBuffer(2, 1, []uint8{255, 0, 0, 0, 0, 255}) // blue, red
func NewPixelBuffer(width, height int, pix []uint8) (*PixelBuffer, error) {
	if err := checkShape(width, height, len(pix)); err != nil {
		return nil, err
	}
	return &PixelBuffer{width: width, height: height, pix: pix}, nil
}

// NewUniformBuffer creates a buffer where every pixel has the given color.
//
// Arguments:
// - width: The width in pixels.
// - height: The height in pixels.
// - b, g, r: The blue, green and red samples.
//
// Returns:
// - The filled PixelBuffer.
// - An *InvalidBufferError for non-positive dimensions.
//
// @example
// gray, _ := NewUniformBuffer(4, 4, 128, 128, 128)
func NewUniformBuffer(width, height int, b, g, r uint8) (*PixelBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &InvalidBufferError{Width: width, Height: height, Reason: "dimensions must be positive"}
	}
	pix := make([]uint8, width*height*Channels)
	for i := 0; i < len(pix); i += Channels {
		pix[i+0] = b
		pix[i+1] = g
		pix[i+2] = r
	}
	return &PixelBuffer{width: width, height: height, pix: pix}, nil
}

func checkShape(width, height, length int) error {
	if width <= 0 || height <= 0 {
		return &InvalidBufferError{Width: width, Height: height, Length: length, Reason: "dimensions must be positive"}
	}
	if length != width*height*Channels {
		return &InvalidBufferError{Width: width, Height: height, Length: length, Reason: "sample count does not match width*height*3"}
	}
	return nil
}

// Validate checks the shape invariant. It is safe to call on a nil buffer.
func (b *PixelBuffer) Validate() error {
	if b == nil {
		return &InvalidBufferError{Reason: "nil buffer"}
	}
	return checkShape(b.width, b.height, len(b.pix))
}

// Width returns the width in pixels.
func (b *PixelBuffer) Width() int { return b.width }

// Height returns the height in pixels.
func (b *PixelBuffer) Height() int { return b.height }

// Stride returns the number of samples per row.
func (b *PixelBuffer) Stride() int { return b.width * Channels }

// Bounds returns the buffer rectangle anchored at the origin.
func (b *PixelBuffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// Pix returns the underlying samples. The slice aliases the buffer and must be
// treated as read-only.
func (b *PixelBuffer) Pix() []uint8 { return b.pix }

// PixOffset returns the index of the blue sample of pixel (x, y).
func (b *PixelBuffer) PixOffset(x, y int) int { return y*b.width*Channels + x*Channels }

// At returns the blue, green and red samples of pixel (x, y).
func (b *PixelBuffer) At(x, y int) (uint8, uint8, uint8) {
	i := b.PixOffset(x, y)
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// SameShape reports whether both buffers have identical dimensions.
func (b *PixelBuffer) SameShape(o *PixelBuffer) bool {
	return b != nil && o != nil && b.width == o.width && b.height == o.height
}

// Equal reports whether both buffers have identical dimensions and samples.
func (b *PixelBuffer) Equal(o *PixelBuffer) bool {
	if !b.SameShape(o) {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the buffer.
func (b *PixelBuffer) Clone() *PixelBuffer {
	pix := make([]uint8, len(b.pix))
	copy(pix, b.pix)
	return &PixelBuffer{width: b.width, height: b.height, pix: pix}
}

// ToRGBA converts the buffer to an opaque *image.RGBA.
//
// Returns:
// - A new RGBA image with alpha 255 everywhere.
//
// @example
// img := buf.ToRGBA()
// png.Encode(w, img)
func (b *PixelBuffer) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(b.Bounds())
	Parallel(b.height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			srcRow := b.pix[y*b.width*Channels : (y+1)*b.width*Channels]
			dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+b.width*4]
			for x := 0; x < b.width; x++ {
				s := srcRow[x*Channels : x*Channels+3 : x*Channels+3]
				d := dstRow[x*4 : x*4+4 : x*4+4]
				d[0] = s[2]
				d[1] = s[1]
				d[2] = s[0]
				d[3] = 0xff
			}
		}
	})
	return dst
}

// FromImage converts any image.Image into a PixelBuffer. Grayscale sources are
// replicated into all three channels and alpha is dropped, keeping the
// non-premultiplied color of each pixel.
//
// Arguments:
// - img: The source image.
//
// Returns:
// - A new PixelBuffer with the image's dimensions.
// - An *InvalidBufferError if the image is nil or empty.
//
// @example
// buf, err := FromImage(decoded)
func FromImage(img image.Image) (*PixelBuffer, error) {
	if img == nil {
		return nil, &InvalidBufferError{Reason: "nil image"}
	}
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, &InvalidBufferError{Width: width, Height: height, Reason: "dimensions must be positive"}
	}

	pix := make([]uint8, width*height*Channels)

	switch src := img.(type) {
	case *image.Gray:
		Parallel(height, func(partStart, partEnd int) {
			for y := partStart; y < partEnd; y++ {
				off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
				row := src.Pix[off : off+width]
				for x, v := range row {
					i := (y*width + x) * Channels
					pix[i], pix[i+1], pix[i+2] = v, v, v
				}
			}
		})
	default:
		// Everything else goes through straight (non-premultiplied) RGBA so
		// that transparent pixels keep their color rather than turning black.
		nrgba, ok := img.(*image.NRGBA)
		if !ok {
			nrgba = image.NewNRGBA(image.Rect(0, 0, width, height))
			draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
			bounds = nrgba.Bounds()
		}
		Parallel(height, func(partStart, partEnd int) {
			for y := partStart; y < partEnd; y++ {
				off := (y+bounds.Min.Y-nrgba.Rect.Min.Y)*nrgba.Stride + (bounds.Min.X-nrgba.Rect.Min.X)*4
				row := nrgba.Pix[off : off+width*4]
				for x := 0; x < width; x++ {
					i := (y*width + x) * Channels
					pix[i+0] = row[x*4+2]
					pix[i+1] = row[x*4+1]
					pix[i+2] = row[x*4+0]
				}
			}
		})
	}

	return &PixelBuffer{width: width, height: height, pix: pix}, nil
}

// ColorAt returns pixel (x, y) as an opaque color.RGBA, mostly for tests and
// debugging output.
func (b *PixelBuffer) ColorAt(x, y int) color.RGBA {
	bl, g, r := b.At(x, y)
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}
