package enhance

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-clarity/images"
)

// Codec boundary stage names.
const (
	StageDecode  = "decode"
	StageUpscale = "upscale"
	StageEncode  = "encode"
)

// Enhancer orchestrates decode, enhancement and encode. It only returns bytes
// once the whole chain has succeeded.
type Enhancer struct {
	upscaler Upscaler
	logger   zerolog.Logger
	encode   images.EncodeOptions
}

// NewEnhancer creates an orchestrator around a strategy.
//
// Arguments:
// - u: The enhancement strategy.
// - logger: The logger; zerolog.Nop() silences it.
// - encode: Encoder tuning, may be nil.
//
// Returns:
// - The Enhancer.
//
// @example
// e := NewEnhancer(NewClarity(), log, nil)
// out, err := e.Enhance(upload, DefaultParameters(), images.FormatPNG)
func NewEnhancer(u Upscaler, logger zerolog.Logger, encode *images.EncodeOptions) *Enhancer {
	e := &Enhancer{upscaler: u, logger: logger}
	if encode != nil {
		e.encode = *encode
	}
	return e
}

// Enhance decodes data, runs the strategy and encodes the result.
//
// Arguments:
// - data: The encoded source image.
// - params: Resolved parameters.
// - format: The output format; empty selects PNG.
//
// Returns:
// - The encoded result.
// - An *EnhancementError whose Stage is "decode", "encode" or the failing
// stage, with the typed cause (*images.DecodeError, *images.EncodeError,
// *images.InvalidBufferError) preserved.
func (e *Enhancer) Enhance(data []byte, params Parameters, format images.ImageFormat) ([]byte, error) {
	start := time.Now()
	if format == "" {
		format = images.FormatPNG
	}

	src, srcFormat, err := images.Decode(data)
	if err != nil {
		return nil, wrapStage(StageDecode, err)
	}

	out, err := e.upscaler.Upscale(src, params)
	if err != nil {
		return nil, wrapStage(StageUpscale, err)
	}

	encoded, err := images.Encode(out, format, &e.encode)
	if err != nil {
		return nil, wrapStage(StageEncode, err)
	}

	e.logger.Debug().
		Str("input_format", string(srcFormat)).
		Str("output_format", string(format)).
		Int("input_width", src.Width()).
		Int("input_height", src.Height()).
		Int("output_width", out.Width()).
		Int("output_height", out.Height()).
		Str("checksum", images.Checksum(out)).
		Dur("elapsed", time.Since(start)).
		Msg("image enhanced")

	return encoded, nil
}

// BatchItem is one image of a batch.
type BatchItem struct {
	Name string
	Data []byte
}

// BatchResult is the outcome of one BatchItem. Exactly one of Data and Err is
// set.
type BatchResult struct {
	Name string
	Data []byte
	Err  error
}

// EnhanceBatch enhances items in parallel. Every item owns its own buffers and
// fails independently.
//
// Arguments:
// - items: The images to enhance.
// - params: Resolved parameters shared by every item.
// - format: The output format.
// - maxConcurrency: Maximum number of images processed at once.
//
// Returns:
// - One result per item, in input order.
//
// @example
// results := e.EnhanceBatch(items, params, images.FormatJPEG, 4)
func (e *Enhancer) EnhanceBatch(items []BatchItem, params Parameters, format images.ImageFormat, maxConcurrency int) []BatchResult {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}

	results := make([]BatchResult, len(items))
	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(idx int, item BatchItem) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			data, err := e.Enhance(item.Data, params, format)
			results[idx] = BatchResult{Name: item.Name, Data: data, Err: err}
			if err != nil {
				e.logger.Warn().Err(err).Str("image", item.Name).Msg("enhancement failed")
			}
		}(i, item)
	}

	wg.Wait()
	return results
}
