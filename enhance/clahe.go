package enhance

import (
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-clarity/images"
)

const histBins = 256

// tileAxis describes the tiling along one axis: tile boundaries plus, for
// every pixel coordinate, the two neighboring tile centers and the weight of
// the second one.
type tileAxis struct {
	starts []int
	lo     []int
	hi     []int
	weight []float64
}

// newTileAxis splits size pixels into at most tiles tiles. When the axis is
// shorter than the requested tile count every pixel becomes its own tile.
func newTileAxis(size, tiles int) tileAxis {
	if tiles > size {
		tiles = size
	}
	if tiles < 1 {
		tiles = 1
	}

	ax := tileAxis{
		starts: make([]int, tiles+1),
		lo:     make([]int, size),
		hi:     make([]int, size),
		weight: make([]float64, size),
	}
	for i := 0; i <= tiles; i++ {
		ax.starts[i] = i * size / tiles
	}

	centers := make([]float64, tiles)
	for i := 0; i < tiles; i++ {
		centers[i] = float64(ax.starts[i]+ax.starts[i+1]-1) / 2
	}

	t := 0
	for p := 0; p < size; p++ {
		pos := float64(p)
		for t < tiles-1 && pos >= centers[t+1] {
			t++
		}
		switch {
		case pos <= centers[0]:
			ax.lo[p], ax.hi[p], ax.weight[p] = 0, 0, 0
		case t == tiles-1:
			ax.lo[p], ax.hi[p], ax.weight[p] = t, t, 0
		default:
			ax.lo[p], ax.hi[p] = t, t+1
			ax.weight[p] = (pos - centers[t]) / (centers[t+1] - centers[t])
		}
	}
	return ax
}

// tiles returns the number of tiles on this axis.
func (ax tileAxis) tiles() int { return len(ax.starts) - 1 }

// tileMapping computes the clip-limited equalization mapping of one tile.
//
// Counts above clipLimit*pixels/256 are cut and the excess is spread evenly
// over all bins. The mapping uses the mid-rank of each bin, so a value that
// fills a whole tile maps to the middle of the output range rather than to
// its top.
func tileMapping(plane []uint8, stride, x0, x1, y0, y1 int, clipLimit float64) [histBins]float64 {
	var hist [histBins]float64
	for y := y0; y < y1; y++ {
		row := plane[y*stride+x0 : y*stride+x1]
		for _, v := range row {
			hist[v]++
		}
	}
	pixels := float64((x1 - x0) * (y1 - y0))

	if clipLimit > 0 {
		limit := clipLimit * pixels / histBins
		excess := 0.0
		for i, c := range hist {
			if c > limit {
				excess += c - limit
				hist[i] = limit
			}
		}
		if excess > 0 {
			floats.AddConst(excess/histBins, hist[:])
		}
	}

	var cdf [histBins]float64
	floats.CumSum(cdf[:], hist[:])

	var lut [histBins]float64
	scale := float64(histBins-1) / pixels
	for v := range lut {
		lut[v] = (cdf[v] - hist[v]/2) * scale
	}
	return lut
}

// equalizeLightness applies contrast-limited adaptive histogram equalization to
// an 8-bit plane. Mappings of the four nearest tiles are blended bilinearly by
// distance to the tile centers and the result is rounded once.
//
// Arguments:
// - plane: The width×height lightness samples, row-major.
// - width, height: The plane dimensions.
// - clipLimit: The clip limit relative to a uniform histogram; 0 disables clipping.
// - grid: The requested tiling; degraded to at most one tile per pixel.
//
// Returns:
// - A new equalized plane.
func equalizeLightness(plane []uint8, width, height int, clipLimit float64, grid TileGrid) []uint8 {
	xs := newTileAxis(width, grid.Cols)
	ys := newTileAxis(height, grid.Rows)
	tx, ty := xs.tiles(), ys.tiles()

	luts := make([][histBins]float64, tx*ty)
	images.Parallel(len(luts), func(partStart, partEnd int) {
		for t := partStart; t < partEnd; t++ {
			i, j := t%tx, t/tx
			luts[t] = tileMapping(plane, width,
				xs.starts[i], xs.starts[i+1],
				ys.starts[j], ys.starts[j+1],
				clipLimit)
		}
	})

	out := make([]uint8, len(plane))
	images.Parallel(height, func(partStart, partEnd int) {
		for y := partStart; y < partEnd; y++ {
			top, bottom, wy := ys.lo[y]*tx, ys.hi[y]*tx, ys.weight[y]
			for x := 0; x < width; x++ {
				v := plane[y*width+x]
				left, right, wx := xs.lo[x], xs.hi[x], xs.weight[x]

				upper := (1-wx)*luts[top+left][v] + wx*luts[top+right][v]
				lower := (1-wx)*luts[bottom+left][v] + wx*luts[bottom+right][v]
				out[y*width+x] = images.RoundUint8((1-wy)*upper + wy*lower)
			}
		}
	})
	return out
}
