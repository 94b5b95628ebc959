package internal

import (
	"bytes"
	"sync"
)

// maxPooledBufferSize keeps one huge payload from pinning memory in the pool.
const maxPooledBufferSize = 64 * 1024

type BufferPool struct {
	pool sync.Pool
}

func NewBufferPool(initialSize int) *BufferPool {
	return &BufferPool{
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initialSize))
			},
		},
	}
}

func (p *BufferPool) Get() *bytes.Buffer {
	return p.pool.Get().(*bytes.Buffer)
}

func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBufferSize {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
