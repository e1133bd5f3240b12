package enhance

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/nvr-ai/go-clarity/images"
	"github.com/nvr-ai/go-clarity/images/kernels"
)

var benchResolutions = []struct {
	name          string
	width, height int
}{
	{"640x480", 640, 480},
	{"1280x720", 1280, 720},
	{"1920x1080", 1920, 1080},
}

func BenchmarkClarity(b *testing.B) {
	params := DefaultParameters()
	for _, res := range benchResolutions {
		buf := gradientBuffer(b, res.width, res.height)
		b.Run(res.name, func(b *testing.B) {
			u := NewClarity()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = u.Upscale(buf, params)
			}
		})
	}
}

func BenchmarkClarityPooled(b *testing.B) {
	params := DefaultParameters()
	pool := kernels.NewPool()
	buf := gradientBuffer(b, 1920, 1080)
	u := NewClarity(WithPool(pool))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		out, _ := u.Upscale(buf, params)
		pool.Put(out)
	}
}

func BenchmarkResample(b *testing.B) {
	params := DefaultParameters()
	for _, res := range benchResolutions[:2] {
		buf := gradientBuffer(b, res.width, res.height)
		b.Run(res.name, func(b *testing.B) {
			u := NewResample()
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = u.Upscale(buf, params)
			}
		})
	}
}

func BenchmarkEnhanceBatch(b *testing.B) {
	params := DefaultParameters()
	data, err := images.Encode(gradientBuffer(b, 640, 480), images.FormatPNG, nil)
	if err != nil {
		b.Fatal(err)
	}
	items := make([]BatchItem, 8)
	for i := range items {
		items[i] = BatchItem{Name: fmt.Sprintf("frame-%d.png", i), Data: data}
	}

	e := NewEnhancer(NewClarity(), zerolog.Nop(), nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = e.EnhanceBatch(items, params, images.FormatPNG, 4)
	}
}
