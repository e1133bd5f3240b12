// Package images - Decoder/encoder boundary between encoded bytes and
// PixelBuffers.
package images

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"sync"

	"github.com/chai2010/webp"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

// DefaultJPEGQuality is the JPEG quality used when EncodeOptions leaves it unset.
const DefaultJPEGQuality = 95

// EncodeOptions tunes the encoders. The zero value encodes with the defaults.
type EncodeOptions struct {
	// JPEGQuality in [1, 100]; 0 selects DefaultJPEGQuality.
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`
	// PNGCompression selects the PNG deflate level.
	PNGCompression png.CompressionLevel `json:"png_compression" yaml:"png_compression"`
	// WebPLossless selects lossless WebP output.
	WebPLossless bool `json:"webp_lossless" yaml:"webp_lossless"`
	// WebPQuality in [0, 100] for lossy WebP; 0 selects DefaultJPEGQuality.
	WebPQuality float32 `json:"webp_quality" yaml:"webp_quality"`
}

var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// DecodeConfig reads only the header of an encoded image.
//
// Arguments:
// - data: The encoded image bytes.
//
// Returns:
// - The image configuration (dimensions and color model).
// - The detected format.
// - A *DecodeError if the header cannot be read or describes an empty image.
func DecodeConfig(data []byte) (image.Config, ImageFormat, error) {
	if len(data) == 0 {
		return image.Config{}, "", &DecodeError{Err: ErrEmptyInput}
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, "", &DecodeError{Err: errors.Wrap(err, "read header")}
	}

	format := ImageFormat(name)
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, format, &DecodeError{
			Format: format,
			Err:    errors.Errorf("invalid dimensions %dx%d", cfg.Width, cfg.Height),
		}
	}

	return cfg, format, nil
}

// Decode converts encoded bytes into a PixelBuffer. PNG, JPEG, WebP and BMP
// containers are recognized by their magic bytes.
//
// Arguments:
// - data: The encoded image bytes.
//
// Returns:
// - The decoded PixelBuffer (BGR, three channels).
// - The detected format.
// - A *DecodeError if the bytes cannot be interpreted as an image.
//
// @example
// buf, format, err := Decode(upload)
//
//	if err != nil {
//	    return err
//	}
func Decode(data []byte) (*PixelBuffer, ImageFormat, error) {
	if _, _, err := DecodeConfig(data); err != nil {
		return nil, "", err
	}

	img, name, err := image.Decode(bytes.NewReader(data))
	format := ImageFormat(name)
	if err != nil {
		return nil, format, &DecodeError{Format: format, Err: errors.Wrap(err, "read pixels")}
	}

	buf, err := FromImage(img)
	if err != nil {
		return nil, format, &DecodeError{Format: format, Err: err}
	}

	return buf, format, nil
}

// Encode serializes a PixelBuffer.
//
// Arguments:
// - buf: The buffer to encode.
// - format: The target format; empty selects PNG.
// - opts: Encoder tuning, may be nil.
//
// Returns:
// - The encoded bytes.
// - An *EncodeError for unsupported formats or encoder failures, or an
// *InvalidBufferError if buf is malformed.
//
// @example
// data, err := Encode(buf, FormatJPEG, &EncodeOptions{JPEGQuality: 90})
func Encode(buf *PixelBuffer, format ImageFormat, opts *EncodeOptions) ([]byte, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatPNG
	}
	if opts == nil {
		opts = &EncodeOptions{}
	}

	w := bufferPool.Get().(*bytes.Buffer)
	defer func() {
		w.Reset()
		bufferPool.Put(w)
	}()

	img := buf.ToRGBA()

	var err error
	switch format {
	case FormatPNG:
		enc := png.Encoder{CompressionLevel: opts.PNGCompression}
		err = enc.Encode(w, img)
	case FormatJPEG:
		quality := opts.JPEGQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatWebP:
		quality := opts.WebPQuality
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		err = webp.Encode(w, img, &webp.Options{Lossless: opts.WebPLossless, Quality: quality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	default:
		return nil, &EncodeError{Format: format, Err: errors.New("unsupported output format")}
	}
	if err != nil {
		return nil, &EncodeError{Format: format, Err: err}
	}

	out := make([]byte, w.Len())
	copy(out, w.Bytes())
	return out, nil
}
