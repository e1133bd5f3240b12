package enhance

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-clarity/images"
)

// Built-in strategy names.
const (
	StrategyClarity  = "clarity"
	StrategyResample = "resample"
)

// Upscaler is the capability shared by every enhancement strategy: buffer in,
// enhanced buffer out.
type Upscaler interface {
	Upscale(src *images.PixelBuffer, params Parameters) (*images.PixelBuffer, error)
}

// UpscalerFunc adapts a function to the Upscaler interface.
type UpscalerFunc func(src *images.PixelBuffer, params Parameters) (*images.PixelBuffer, error)

// Upscale implements Upscaler.
func (f UpscalerFunc) Upscale(src *images.PixelBuffer, params Parameters) (*images.PixelBuffer, error) {
	return f(src, params)
}

// NewClarityChain returns the primary stage sequence: local contrast,
// sharpening, global tone.
func NewClarityChain(p Parameters) []Stage {
	return []Stage{
		NewContrastStage(p),
		NewSharpenStage(p),
		NewToneStage(p.ContrastAlpha, p.BrightnessBeta),
	}
}

// Clarity is the primary strategy: local contrast equalization, sharpening and
// a global tone remap at native resolution.
type Clarity struct {
	opts []PipelineOption
}

// NewClarity returns the primary strategy. opts are applied to every pipeline
// it builds.
func NewClarity(opts ...PipelineOption) *Clarity {
	return &Clarity{opts: opts}
}

// Upscale implements Upscaler.
func (c *Clarity) Upscale(src *images.PixelBuffer, params Parameters) (*images.PixelBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, wrapStage("parameters", err)
	}
	return NewPipeline(NewClarityChain(params), c.opts...).Run(src)
}

// Resample is the alternate strategy: Lanczos resample, contrast gain and
// unsharp mask.
type Resample struct {
	opts []PipelineOption
}

// NewResample returns the alternate strategy.
func NewResample(opts ...PipelineOption) *Resample {
	return &Resample{opts: opts}
}

// Upscale implements Upscaler.
func (r *Resample) Upscale(src *images.PixelBuffer, params Parameters) (*images.PixelBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, wrapStage("parameters", err)
	}
	return NewPipeline(NewResampleChain(params), r.opts...).Run(src)
}

// Registry maps strategy names to Upscalers.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Upscaler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Upscaler)}
}

// DefaultRegistry returns a registry holding the built-in strategies.
//
// Arguments:
// - opts: Pipeline options shared by the built-in strategies.
//
// Returns:
// - A registry with "clarity" and "resample".
func DefaultRegistry(opts ...PipelineOption) *Registry {
	r := NewRegistry()
	r.Register(StrategyClarity, NewClarity(opts...))
	r.Register(StrategyResample, NewResample(opts...))
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(name string, u Upscaler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[name] = u
}

// Get returns the strategy registered under name.
//
// Returns:
// - The Upscaler.
// - An error wrapping ErrUnknownStrategy if name is not registered.
func (r *Registry) Get(name string) (Upscaler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.strategies[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownStrategy, "%q", name)
	}
	return u, nil
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
