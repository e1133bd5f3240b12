package enhance

import (
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/images/kernels"
)

// Hook observes stage execution. Buffers passed to hooks are only valid for
// the duration of the call.
type Hook interface {
	// BeforeStage is called before a stage runs.
	BeforeStage(stage string, in *images.PixelBuffer)
	// AfterStage is called after a stage finished, with its output (nil on
	// failure), wall-clock duration and error.
	AfterStage(stage string, out *images.PixelBuffer, elapsed time.Duration, err error)
}

// poolUser is implemented by stages that can draw output samples from a pool.
// withPool returns a copy; the receiver is never modified.
type poolUser interface {
	withPool(p *kernels.Pool) Stage
}

func (s *SharpenStage) withPool(p *kernels.Pool) Stage {
	c := *s
	c.Pool = p
	return &c
}

func (s *ToneStage) withPool(p *kernels.Pool) Stage {
	c := *s
	c.Pool = p
	return &c
}

// Pipeline runs an ordered list of stages, verifying the shape invariant after
// every stage. A Pipeline holds no per-run state and is safe for concurrent use
// as long as its hooks are.
type Pipeline struct {
	stages []Stage
	hooks  []Hook
	logger zerolog.Logger
	pool   *kernels.Pool
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the logger used for per-stage debug output.
func WithLogger(logger zerolog.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

// WithHooks appends stage hooks.
func WithHooks(hooks ...Hook) PipelineOption {
	return func(p *Pipeline) { p.hooks = append(p.hooks, hooks...) }
}

// WithPool recycles intermediate buffers through pool. Stages that support it
// draw their output samples from the same pool.
func WithPool(pool *kernels.Pool) PipelineOption {
	return func(p *Pipeline) { p.pool = pool }
}

// NewPipeline creates a pipeline over stages.
//
// Arguments:
// - stages: The stages, in execution order.
// - opts: Optional logger, hooks and pool.
//
// Returns:
// - The pipeline.
//
// @example
// p := NewPipeline(NewClarityChain(params), WithLogger(log), WithHooks(timer))
// out, err := p.Run(buf)
func NewPipeline(stages []Stage, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		stages: append([]Stage(nil), stages...),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.pool != nil {
		for i, st := range p.stages {
			if u, ok := st.(poolUser); ok {
				p.stages[i] = u.withPool(p.pool)
			}
		}
	}
	return p
}

// Stages returns the stage names in execution order.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, st := range p.stages {
		names[i] = st.Name()
	}
	return names
}

// Run executes every stage in order. src is never modified or released.
//
// Arguments:
// - src: The input buffer.
//
// Returns:
// - The output of the last stage; a copy of src when there are no stages.
// - An *EnhancementError wrapping the first failure. No partial output is
// returned.
func (p *Pipeline) Run(src *images.PixelBuffer) (*images.PixelBuffer, error) {
	if len(p.stages) == 0 {
		if err := src.Validate(); err != nil {
			return nil, wrapStage("input", err)
		}
		return src.Clone(), nil
	}

	cur := src
	for _, st := range p.stages {
		name := st.Name()
		for _, h := range p.hooks {
			h.BeforeStage(name, cur)
		}

		start := time.Now()
		out, err := st.Apply(cur)
		if err == nil {
			err = verifyOutput(st, cur, out)
		}
		elapsed := time.Since(start)

		for _, h := range p.hooks {
			h.AfterStage(name, out, elapsed, err)
		}

		if err != nil {
			p.logger.Debug().Err(err).Str("stage", name).Dur("elapsed", elapsed).Msg("stage failed")
			p.release(src, cur)
			return nil, wrapStage(name, err)
		}

		p.logger.Debug().
			Str("stage", name).
			Int("width", out.Width()).
			Int("height", out.Height()).
			Dur("elapsed", elapsed).
			Msg("stage complete")

		if out != cur {
			p.release(src, cur)
		}
		cur = out
	}
	return cur, nil
}

// release returns an intermediate buffer to the pool. The caller's input is
// never released.
func (p *Pipeline) release(src, buf *images.PixelBuffer) {
	if p.pool == nil || buf == nil || buf == src {
		return
	}
	p.pool.Put(buf)
}

// verifyOutput enforces the shape invariant on a stage's output.
func verifyOutput(st Stage, in, out *images.PixelBuffer) error {
	if err := out.Validate(); err != nil {
		return err
	}
	wantW, wantH := in.Width(), in.Height()
	if r, ok := st.(Resizer); ok {
		wantW, wantH = r.OutputSize(wantW, wantH)
	}
	if out.Width() != wantW || out.Height() != wantH {
		return errors.WithStack(&images.InvalidBufferError{
			Width:  out.Width(),
			Height: out.Height(),
			Length: len(out.Pix()),
			Reason: "stage changed dimensions unexpectedly",
		})
	}
	return nil
}
