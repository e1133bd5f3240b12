package inference

import (
	"github.com/chewxy/math32"

	"github.com/nvr-ai/go-clarity/images"
)

// BufferToTensor converts a BGR PixelBuffer into a planar NCHW float32 RGB
// tensor normalized to [0, 1].
//
// Arguments:
// - buf: The source buffer.
//
// Returns:
// - The tensor data, length 3*width*height, ordered red, green, blue planes.
// - An error if buf is malformed.
//
// @example
// data, err := BufferToTensor(buf)
// input, err := ort.NewTensor(ort.NewShape(1, 3, int64(buf.Height()), int64(buf.Width())), data)
func BufferToTensor(buf *images.PixelBuffer) ([]float32, error) {
	if err := buf.Validate(); err != nil {
		return nil, err
	}

	channelSize := buf.Width() * buf.Height()
	data := make([]float32, channelSize*3)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	pix := buf.Pix()
	for i := 0; i < channelSize; i++ {
		blue[i] = float32(pix[i*3+0]) / 255.0
		green[i] = float32(pix[i*3+1]) / 255.0
		red[i] = float32(pix[i*3+2]) / 255.0
	}
	return data, nil
}

// TensorToBuffer converts planar NCHW float32 RGB data in [0, 1] back into a
// BGR PixelBuffer. Values are clamped and rounded to the nearest level.
//
// Arguments:
// - data: The tensor data, length 3*width*height.
// - width, height: The spatial dimensions of the tensor.
//
// Returns:
// - The PixelBuffer.
// - An *images.InvalidBufferError if the dimensions do not match data.
func TensorToBuffer(data []float32, width, height int) (*images.PixelBuffer, error) {
	channelSize := width * height
	if width <= 0 || height <= 0 || len(data) != channelSize*3 {
		return nil, &images.InvalidBufferError{
			Width:  width,
			Height: height,
			Length: len(data),
			Reason: "tensor length does not match 3*width*height",
		}
	}

	toLevel := func(v float32) uint8 {
		if math32.IsNaN(v) {
			return 0
		}
		return uint8(math32.Round(math32.Max(0, math32.Min(1, v)) * 255))
	}

	pix := make([]uint8, channelSize*images.Channels)
	images.Parallel(height, func(partStart, partEnd int) {
		for i := partStart * width; i < partEnd*width; i++ {
			pix[i*3+0] = toLevel(data[channelSize*2+i])
			pix[i*3+1] = toLevel(data[channelSize+i])
			pix[i*3+2] = toLevel(data[i])
		}
	})
	return images.NewPixelBuffer(width, height, pix)
}
