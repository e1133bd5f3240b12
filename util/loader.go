// Package util - batch-mode file helpers for the CLI.
package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-clarity/images"
)

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file.
	Name string
	// Format is the format implied by the extension.
	Format images.ImageFormat
	// Data is the raw bytes of the image file.
	Data []byte
}

// LoadDirectoryImageFiles reads all image files from a directory. Files whose
// extension is not a supported format are skipped; subdirectories are not
// descended into.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: Slice of ImageFile sorted by name, each holding the raw bytes.
// - error: Error if the directory or a file cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read directory %s", dir)
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		format, err := images.FormatFromPath(entry.Name())
		if err != nil {
			continue
		}

		imgPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", imgPath)
		}
		files = append(files, ImageFile{
			Path:   imgPath,
			Name:   entry.Name(),
			Format: format,
			Data:   data,
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}

// IsDirectory reports whether path names an existing directory.
func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// OutputPath derives where the enhanced copy of name is written: the same base
// name inside outDir with the extension of format.
//
// @example
// OutputPath("out", "frame-001.jpeg", images.FormatPNG) // "out/frame-001.png"
func OutputPath(outDir, name string, format images.ImageFormat) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(outDir, base+format.Extension())
}

// OutputPaths derives the output path of every name in a batch.
//
// Arguments:
// - outDir: The output directory.
// - names: The input base names.
// - format: The output format.
//
// Returns:
// - One path per name, in order.
// - An error naming both inputs when two of them map to the same output,
// for example "a.png" and "a.jpg" written as PNG. Paths are compared
// case-insensitively.
func OutputPaths(outDir string, names []string, format images.ImageFormat) ([]string, error) {
	paths := make([]string, len(names))
	seen := make(map[string]string, len(names))
	for i, name := range names {
		path := OutputPath(outDir, name, format)
		key := strings.ToLower(path)
		if prev, ok := seen[key]; ok {
			return nil, errors.Errorf("%s and %s would both be written to %s", prev, name, path)
		}
		seen[key] = name
		paths[i] = path
	}
	return paths, nil
}

// WriteOutput writes data to path, creating parent directories as needed.
func WriteOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}
	return nil
}
