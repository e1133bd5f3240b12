// Package enhance - Deterministic enhancement stages, pipelines and strategies
// operating on decoded PixelBuffers.
package enhance

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-clarity/images/kernels"
)

const (
	// DefaultClipLimit is the CLAHE clip limit.
	DefaultClipLimit = 3.0
	// DefaultTileRows is the number of CLAHE tile rows.
	DefaultTileRows = 8
	// DefaultTileCols is the number of CLAHE tile columns.
	DefaultTileCols = 8
	// DefaultContrastAlpha is the tone stage gain.
	DefaultContrastAlpha = 1.2
	// DefaultBrightnessBeta is the tone stage offset.
	DefaultBrightnessBeta = 10.0
	// DefaultScaleFactor is the resample factor of the alternate chain.
	DefaultScaleFactor = 2.0
	// DefaultCreativity drives the contrast gain of the alternate chain.
	DefaultCreativity = 0.35
	// DefaultResemblance drives the unsharp strength of the alternate chain.
	DefaultResemblance = 0.6
)

// TileGrid is the CLAHE tiling, rows × columns.
type TileGrid struct {
	Rows int `json:"rows" yaml:"rows"`
	Cols int `json:"cols" yaml:"cols"`
}

// String formats the grid as "RxC".
func (g TileGrid) String() string {
	return fmt.Sprintf("%dx%d", g.Rows, g.Cols)
}

// ParseTileGrid parses "RxC" (for example "8x8") or a single number meaning a
// square grid.
//
// Arguments:
// - s: The textual grid.
//
// Returns:
// - The parsed TileGrid.
// - An error wrapping ErrInvalidParameters if s is malformed or not positive.
//
// @example
// grid, err := ParseTileGrid("4x6") // TileGrid{Rows: 4, Cols: 6}
func ParseTileGrid(s string) (TileGrid, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	parts := strings.Split(s, "x")
	if len(parts) == 1 {
		parts = append(parts, parts[0])
	}
	if len(parts) != 2 {
		return TileGrid{}, errors.Wrapf(ErrInvalidParameters, "tile_grid %q: want RxC", s)
	}
	rows, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return TileGrid{}, errors.Wrapf(ErrInvalidParameters, "tile_grid %q: rows: %v", s, err)
	}
	cols, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return TileGrid{}, errors.Wrapf(ErrInvalidParameters, "tile_grid %q: cols: %v", s, err)
	}
	g := TileGrid{Rows: rows, Cols: cols}
	if rows <= 0 || cols <= 0 {
		return TileGrid{}, errors.Wrapf(ErrInvalidParameters, "tile_grid %s: must be positive", g)
	}
	return g, nil
}

// Parameters is the resolved, immutable configuration of every stage. Build
// it with DefaultParameters or Options.Resolve.
type Parameters struct {
	// ClipLimit is the CLAHE clip limit relative to a uniform histogram; 0
	// disables clipping.
	ClipLimit float64 `json:"clip_limit" yaml:"clip_limit"`
	// TileGrid is the CLAHE tiling.
	TileGrid TileGrid `json:"tile_grid" yaml:"tile_grid"`
	// SharpenKernel is the fixed 3×3 high-pass kernel.
	SharpenKernel kernels.Kernel3x3 `json:"-" yaml:"-"`
	// ContrastAlpha is the tone stage gain.
	ContrastAlpha float64 `json:"contrast_alpha" yaml:"contrast_alpha"`
	// BrightnessBeta is the tone stage offset.
	BrightnessBeta float64 `json:"brightness_beta" yaml:"brightness_beta"`
	// ScaleFactor is the resample factor of the alternate chain, > 0.
	ScaleFactor float64 `json:"scale_factor" yaml:"scale_factor"`
	// Creativity in [0, 1] drives the contrast gain of the alternate chain.
	Creativity float64 `json:"creativity" yaml:"creativity"`
	// Resemblance in [0, 1] drives the unsharp strength of the alternate chain.
	Resemblance float64 `json:"resemblance" yaml:"resemblance"`
}

// DefaultParameters returns the documented defaults.
func DefaultParameters() Parameters {
	return Parameters{
		ClipLimit:      DefaultClipLimit,
		TileGrid:       TileGrid{Rows: DefaultTileRows, Cols: DefaultTileCols},
		SharpenKernel:  kernels.Sharpen,
		ContrastAlpha:  DefaultContrastAlpha,
		BrightnessBeta: DefaultBrightnessBeta,
		ScaleFactor:    DefaultScaleFactor,
		Creativity:     DefaultCreativity,
		Resemblance:    DefaultResemblance,
	}
}

// Validate checks every field's domain.
//
// Returns:
// - nil, or an error wrapping ErrInvalidParameters naming the first bad field.
func (p Parameters) Validate() error {
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	switch {
	case !finite(p.ClipLimit) || p.ClipLimit < 0:
		return errors.Wrapf(ErrInvalidParameters, "clip_limit %v: must be a finite value >= 0", p.ClipLimit)
	case p.TileGrid.Rows <= 0 || p.TileGrid.Cols <= 0:
		return errors.Wrapf(ErrInvalidParameters, "tile_grid %s: must be positive", p.TileGrid)
	case !finite(p.ContrastAlpha):
		return errors.Wrapf(ErrInvalidParameters, "contrast_alpha %v: must be finite", p.ContrastAlpha)
	case !finite(p.BrightnessBeta):
		return errors.Wrapf(ErrInvalidParameters, "brightness_beta %v: must be finite", p.BrightnessBeta)
	case !finite(p.ScaleFactor) || p.ScaleFactor <= 0:
		return errors.Wrapf(ErrInvalidParameters, "scale_factor %v: must be > 0", p.ScaleFactor)
	case !finite(p.Creativity) || p.Creativity < 0 || p.Creativity > 1:
		return errors.Wrapf(ErrInvalidParameters, "creativity %v: must be in [0, 1]", p.Creativity)
	case !finite(p.Resemblance) || p.Resemblance < 0 || p.Resemblance > 1:
		return errors.Wrapf(ErrInvalidParameters, "resemblance %v: must be in [0, 1]", p.Resemblance)
	}
	return nil
}

// ContrastGain is the alternate chain's contrast multiplier, 1 + creativity/2.
func (p Parameters) ContrastGain() float64 {
	return 1.0 + p.Creativity*0.5
}

// UnsharpAmount is the unsharp mask strength as a fraction. The strength is an
// integer percentage (resemblance*100, truncated), so 0.6 yields 0.60.
func (p Parameters) UnsharpAmount() float64 {
	return float64(int(p.Resemblance*100)) / 100
}

// Options is the optional-field form of Parameters supplied by a calling
// layer. A nil field means "use the default", which keeps explicit zeros such
// as BrightnessBeta = 0 distinguishable from unset fields.
type Options struct {
	ClipLimit      *float64  `json:"clip_limit,omitempty" yaml:"clip_limit,omitempty"`
	TileGrid       *TileGrid `json:"tile_grid,omitempty" yaml:"tile_grid,omitempty"`
	ContrastAlpha  *float64  `json:"contrast_alpha,omitempty" yaml:"contrast_alpha,omitempty"`
	BrightnessBeta *float64  `json:"brightness_beta,omitempty" yaml:"brightness_beta,omitempty"`
	ScaleFactor    *float64  `json:"scale_factor,omitempty" yaml:"scale_factor,omitempty"`
	Creativity     *float64  `json:"creativity,omitempty" yaml:"creativity,omitempty"`
	Resemblance    *float64  `json:"resemblance,omitempty" yaml:"resemblance,omitempty"`
}

// Float returns a pointer to v, for filling Options literals.
func Float(v float64) *float64 { return &v }

// Resolve applies defaults to every unset field and validates the result.
//
// Returns:
// - The resolved Parameters.
// - An error wrapping ErrInvalidParameters if a supplied value is out of range.
//
// @example
// params, err := Options{BrightnessBeta: Float(0)}.Resolve()
func (o Options) Resolve() (Parameters, error) {
	p := DefaultParameters()
	if o.ClipLimit != nil {
		p.ClipLimit = *o.ClipLimit
	}
	if o.TileGrid != nil {
		p.TileGrid = *o.TileGrid
	}
	if o.ContrastAlpha != nil {
		p.ContrastAlpha = *o.ContrastAlpha
	}
	if o.BrightnessBeta != nil {
		p.BrightnessBeta = *o.BrightnessBeta
	}
	if o.ScaleFactor != nil {
		p.ScaleFactor = *o.ScaleFactor
	}
	if o.Creativity != nil {
		p.Creativity = *o.Creativity
	}
	if o.Resemblance != nil {
		p.Resemblance = *o.Resemblance
	}
	if err := p.Validate(); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// Field names accepted by ParseFields.
const (
	FieldClipLimit      = "clip_limit"
	FieldTileGrid       = "tile_grid"
	FieldContrastAlpha  = "contrast_alpha"
	FieldBrightnessBeta = "brightness_beta"
	FieldScaleFactor    = "scale_factor"
	FieldCreativity     = "creativity"
	FieldResemblance    = "resemblance"
)

// ParseFields builds Options from form-style string fields. Empty values are
// treated as unset; unknown keys are ignored.
//
// Arguments:
// - fields: Field name to raw value, e.g. {"scale_factor": "4"}.
//
// Returns:
// - The Options.
// - An error wrapping ErrInvalidParameters for unparseable values.
//
// @example
// opts, err := ParseFields(map[string]string{"creativity": "0.5", "tile_grid": "4x4"})
func ParseFields(fields map[string]string) (Options, error) {
	var o Options
	floats := map[string]**float64{
		FieldClipLimit:      &o.ClipLimit,
		FieldContrastAlpha:  &o.ContrastAlpha,
		FieldBrightnessBeta: &o.BrightnessBeta,
		FieldScaleFactor:    &o.ScaleFactor,
		FieldCreativity:     &o.Creativity,
		FieldResemblance:    &o.Resemblance,
	}

	for key, raw := range fields {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if key == FieldTileGrid {
			g, err := ParseTileGrid(raw)
			if err != nil {
				return Options{}, err
			}
			o.TileGrid = &g
			continue
		}
		dst, ok := floats[key]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Options{}, errors.Wrapf(ErrInvalidParameters, "%s %q: not a number", key, raw)
		}
		*dst = &v
	}
	return o, nil
}
