// Package config - file-based configuration for the enhancer CLI.
package config

import (
	"bytes"
	"os"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/inference"
)

// Log output formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Config is the complete CLI configuration. File values are overridden by
// flags that were set explicitly on the command line.
type Config struct {
	// Strategy is the registry name of the enhancement strategy.
	Strategy string `yaml:"strategy"`
	// Format is the output format; empty selects PNG.
	Format images.ImageFormat `yaml:"format"`
	// Concurrency bounds how many images of a directory run at once.
	Concurrency int `yaml:"concurrency"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "console" or "json".
	LogFormat string `yaml:"log_format"`
	// Parameters holds stage overrides; unset fields take their defaults.
	Parameters enhance.Options `yaml:"parameters"`
	// Encode tunes the output encoder.
	Encode images.EncodeOptions `yaml:"encode"`
	// ONNX configures the onnx strategy; it is only validated when selected.
	ONNX inference.Config `yaml:"onnx"`
}

// Default returns the configuration used when no file is given.
//
// @example
// cfg := config.Default()
// cfg.Strategy = enhance.StrategyResample
func Default() Config {
	return Config{
		Strategy:    enhance.StrategyClarity,
		Format:      images.FormatPNG,
		Concurrency: runtime.NumCPU(),
		LogLevel:    zerolog.InfoLevel.String(),
		LogFormat:   LogFormatConsole,
		Encode:      images.EncodeOptions{JPEGQuality: images.DefaultJPEGQuality},
		ONNX:        inference.DefaultConfig(),
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
//
// Arguments:
// - path: The YAML file.
//
// Returns:
// - The validated Config.
// - An error if the file cannot be read, parsed or validated.
//
// @example
// cfg, err := config.Load("enhancer.yaml")
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML bytes over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config")
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields the CLI depends on. The ONNX section is checked
// only when the onnx strategy is selected.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Strategy) == "" {
		return errors.New("strategy is required")
	}
	if c.Format != "" {
		if _, err := images.ParseFormat(string(c.Format)); err != nil {
			return errors.Wrap(err, "format")
		}
	}
	if c.Concurrency < 1 {
		return errors.Errorf("concurrency %d: must be >= 1", c.Concurrency)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case LogFormatConsole, LogFormatJSON:
	default:
		return errors.Errorf("log_format %q: want %s or %s", c.LogFormat, LogFormatConsole, LogFormatJSON)
	}
	if q := c.Encode.JPEGQuality; q < 0 || q > 100 {
		return errors.Errorf("encode.jpeg_quality %d: must be in [0, 100]", q)
	}
	if q := c.Encode.WebPQuality; q < 0 || q > 100 {
		return errors.Errorf("encode.webp_quality %v: must be in [0, 100]", q)
	}
	if _, err := c.Parameters.Resolve(); err != nil {
		return errors.Wrap(err, "parameters")
	}
	if c.Strategy == inference.StrategyName {
		if err := c.ONNX.Validate(); err != nil {
			return errors.Wrap(err, "onnx")
		}
	}
	return nil
}

// ResolveParameters resolves the configured overrides against the defaults.
func (c Config) ResolveParameters() (enhance.Parameters, error) {
	return c.Parameters.Resolve()
}

// OutputFormat returns the normalized output format.
func (c Config) OutputFormat() (images.ImageFormat, error) {
	if c.Format == "" {
		return images.FormatPNG, nil
	}
	return images.ParseFormat(string(c.Format))
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "marshal config")
	}
	return buf.Bytes(), nil
}
