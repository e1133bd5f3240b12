package images

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyInput is returned (wrapped in a *DecodeError) when there are no bytes
// to decode.
var ErrEmptyInput = errors.New("empty image data")

// DecodeError reports bytes that are not a readable image container: empty
// input, a corrupt header, zero dimensions or an unregistered codec.
type DecodeError struct {
	// Format is the detected container format, if the header could be read.
	Format ImageFormat
	// Err is the underlying cause.
	Err error
}

func (e *DecodeError) Error() string {
	if e.Format != "" {
		return fmt.Sprintf("decode %s image: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("decode image: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError reports an unsupported output format or an encoder failure.
type EncodeError struct {
	// Format is the requested output format.
	Format ImageFormat
	// Err is the underlying cause.
	Err error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %q image: %v", e.Format, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EncodeError) Unwrap() error { return e.Err }

// InvalidBufferError reports a PixelBuffer that violates the shape invariant.
// Seeing one between stages is a defect, not a user error.
type InvalidBufferError struct {
	Width  int
	Height int
	// Length is the number of samples present.
	Length int
	// Reason describes the violated constraint.
	Reason string
}

func (e *InvalidBufferError) Error() string {
	return fmt.Sprintf("invalid pixel buffer %dx%d (%d samples): %s", e.Width, e.Height, e.Length, e.Reason)
}
