// Package opencv - OpenCV-backed enhancement strategy: CLAHE on Lab lightness,
// filter2D sharpening and convertScaleAbs tone mapping.
package opencv

import (
	"crypto/md5"
	"fmt"
	"image"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-clarity/enhance"
	"github.com/nvr-ai/go-clarity/images"
)

// StrategyName is the registry name of the OpenCV strategy.
const StrategyName = "opencv"

// Upscaler runs the primary enhancement chain through OpenCV. Output is close
// to, but not bit-identical with, enhance.Clarity: OpenCV quantizes Lab
// chroma to 8 bits and convertScaleAbs rounds instead of truncating.
type Upscaler struct {
	logger zerolog.Logger
}

// New creates the OpenCV strategy.
func New(logger zerolog.Logger) *Upscaler {
	return &Upscaler{logger: logger}
}

// Upscale implements enhance.Upscaler.
//
// Arguments:
// - src: The BGR source buffer.
// - params: Resolved parameters; ClipLimit, TileGrid, SharpenKernel,
// ContrastAlpha and BrightnessBeta are used.
//
// Returns:
// - The enhanced buffer, same dimensions as src.
// - An *enhance.EnhancementError naming the failing step.
//
// @example
// out, err := opencv.New(log).Upscale(buf, enhance.DefaultParameters())
func (u *Upscaler) Upscale(src *images.PixelBuffer, params enhance.Parameters) (*images.PixelBuffer, error) {
	if err := params.Validate(); err != nil {
		return nil, &enhance.EnhancementError{Stage: "parameters", Err: err}
	}

	mat, err := ToMat(src)
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: "input", Err: err}
	}
	defer mat.Close()

	contrasted, err := applyCLAHE(mat, params)
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: enhance.StageContrast, Err: err}
	}
	defer contrasted.Close()

	sharpened, err := applySharpen(contrasted, params)
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: enhance.StageSharpen, Err: err}
	}
	defer sharpened.Close()

	toned := gocv.NewMat()
	defer toned.Close()
	gocv.ConvertScaleAbs(sharpened, &toned, params.ContrastAlpha, params.BrightnessBeta)
	if toned.Empty() {
		return nil, &enhance.EnhancementError{Stage: enhance.StageTone, Err: errors.New("convertScaleAbs produced an empty matrix")}
	}

	out, err := FromMat(toned)
	if err != nil {
		return nil, &enhance.EnhancementError{Stage: enhance.StageTone, Err: err}
	}

	u.logger.Debug().
		Int("width", out.Width()).
		Int("height", out.Height()).
		Str("checksum", MatChecksum(toned)).
		Msg("opencv enhancement complete")

	return out, nil
}

// applyCLAHE equalizes the L channel of mat in Lab space. The tile grid is
// reduced to at most one tile per pixel so tiny images stay valid.
func applyCLAHE(mat gocv.Mat, params enhance.Parameters) (gocv.Mat, error) {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(mat, &lab, gocv.ColorBGRToLab)

	channels := gocv.Split(lab)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 3 {
		return gocv.NewMat(), errors.Errorf("expected 3 Lab channels, got %d", len(channels))
	}

	cols := params.TileGrid.Cols
	if cols > mat.Cols() {
		cols = mat.Cols()
	}
	rows := params.TileGrid.Rows
	if rows > mat.Rows() {
		rows = mat.Rows()
	}

	clahe := gocv.NewCLAHEWithParams(params.ClipLimit, image.Point{X: cols, Y: rows})
	defer clahe.Close()

	equalized := gocv.NewMat()
	clahe.Apply(channels[0], &equalized)
	channels[0].Close()
	channels[0] = equalized

	merged := gocv.NewMat()
	defer merged.Close()
	gocv.Merge(channels, &merged)

	out := gocv.NewMat()
	gocv.CvtColor(merged, &out, gocv.ColorLabToBGR)
	if out.Empty() {
		out.Close()
		return gocv.NewMat(), errors.New("Lab to BGR conversion produced an empty matrix")
	}
	return out, nil
}

// applySharpen convolves mat with the sharpen kernel, replicating border pixels.
func applySharpen(mat gocv.Mat, params enhance.Parameters) (gocv.Mat, error) {
	kernel := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV32F)
	defer kernel.Close()
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			kernel.SetFloatAt(r, c, float32(params.SharpenKernel[r][c]))
		}
	}

	out := gocv.NewMat()
	if err := gocv.Filter2D(mat, &out, -1, kernel, image.Point{X: -1, Y: -1}, 0, gocv.BorderReplicate); err != nil {
		out.Close()
		return gocv.NewMat(), errors.Wrap(err, "filter2D")
	}
	return out, nil
}

// ToMat copies a PixelBuffer into a new CV_8UC3 Mat. Both use BGR order, so
// the samples are copied verbatim. The caller owns the Mat.
//
// Arguments:
// - buf: The source buffer.
//
// Returns:
// - The Mat.
// - An error if buf is malformed or the Mat cannot be created.
func ToMat(buf *images.PixelBuffer) (gocv.Mat, error) {
	if err := buf.Validate(); err != nil {
		return gocv.NewMat(), err
	}
	data := buf.Clone().Pix()
	view, err := gocv.NewMatFromBytes(buf.Height(), buf.Width(), gocv.MatTypeCV8UC3, data)
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "create matrix from buffer")
	}
	defer view.Close()

	// The view references Go memory; the clone owns C memory.
	mat := view.Clone()
	runtime.KeepAlive(data)
	return mat, nil
}

// FromMat copies a CV_8UC3 Mat into a new PixelBuffer.
//
// Arguments:
// - mat: The source Mat (BGR, 8-bit, 3 channels).
//
// Returns:
// - The PixelBuffer.
// - An error if mat is empty or has the wrong type.
func FromMat(mat gocv.Mat) (*images.PixelBuffer, error) {
	if mat.Empty() {
		return nil, &images.InvalidBufferError{Reason: "empty matrix"}
	}
	if mat.Type() != gocv.MatTypeCV8UC3 {
		return nil, &images.InvalidBufferError{
			Width:  mat.Cols(),
			Height: mat.Rows(),
			Reason: fmt.Sprintf("unexpected matrix type %v", mat.Type()),
		}
	}
	return images.NewPixelBuffer(mat.Cols(), mat.Rows(), mat.ToBytes())
}

// MatChecksum generates a deterministic checksum for a Mat to verify idempotency.
//
// Arguments:
// - mat: The Mat to compute checksum for.
//
// Returns:
// - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	checksum := MatChecksum(frame)
//	fmt.Printf("Frame checksum: %s\n", checksum)
//
// ```
func MatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}

	data, _ := mat.DataPtrUint8()
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}
