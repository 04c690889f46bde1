package optimize

import (
	"bytes"
	"sync"
)

// BufferPool recycles the scratch buffers used to encode broadcast frames.
// A frame is encoded once per fan-out, so the buffers are short-lived and
// pool well.
type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool() *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

// Put resets and returns a buffer. Oversized buffers are dropped so one
// large frame does not pin memory forever.
func (p *BufferPool) Put(b *bytes.Buffer) {
	if b.Cap() > 1<<20 {
		return
	}
	b.Reset()
	p.pool.Put(b)
}
