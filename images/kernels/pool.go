package kernels

import (
	"sync"

	"github.com/nvr-ai/go-clarity/images"
)

// Pool lets callers reuse large sample slices to reduce GC pressure when many
// images of the same size pass through the stages. A nil *Pool is valid and
// simply allocates.
type Pool struct {
	samples sync.Pool // *[]uint8
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{}
}

// Get returns a slice of exactly n samples. Its contents are undefined; callers
// must overwrite every sample.
func (p *Pool) Get(n int) []uint8 {
	if p == nil {
		return make([]uint8, n)
	}
	if v := p.samples.Get(); v != nil {
		s := v.(*[]uint8)
		if cap(*s) >= n {
			return (*s)[:n]
		}
	}
	return make([]uint8, n)
}

// Put hands the samples of buf back to the pool. The buffer must not be used
// afterwards.
func (p *Pool) Put(buf *images.PixelBuffer) {
	if p == nil || buf == nil {
		return
	}
	s := buf.Pix()
	if len(s) == 0 {
		return
	}
	p.samples.Put(&s)
}
