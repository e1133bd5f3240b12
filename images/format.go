package images

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatPNG is the PNG image format, the default output format.
	FormatPNG ImageFormat = "png"
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
)

// Formats lists every format the codec boundary can decode and encode.
var Formats = []ImageFormat{FormatPNG, FormatJPEG, FormatWebP, FormatBMP}

// FormatList returns the supported format names joined for messages and help text.
func FormatList() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

// Extension returns the canonical file extension, including the dot.
func (f ImageFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return ".jpg"
	case "":
		return ".png"
	default:
		return "." + string(f)
	}
}

// ParseFormat maps a format name or file extension ("jpg", ".JPEG", "png")
// to an ImageFormat.
//
// Arguments:
// - s: The name or extension.
//
// Returns:
// - The ImageFormat.
// - An error if the format is not supported.
//
// @example
// f, err := ParseFormat(filepath.Ext("photo.JPG")) // FormatJPEG
func ParseFormat(s string) (ImageFormat, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "webp":
		return FormatWebP, nil
	case "bmp":
		return FormatBMP, nil
	default:
		return "", errors.Errorf("unsupported image format %q, want one of %s", s, FormatList())
	}
}

// FormatFromPath returns the format implied by a file's extension.
func FormatFromPath(path string) (ImageFormat, error) {
	return ParseFormat(filepath.Ext(path))
}
