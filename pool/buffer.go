// Package pool provides pooled scratch buffers for encoding output files.
package pool

import (
	"bytes"
	"sync"
)

// maxBufferSize caps the buffers kept for reuse. A closed standard set
// encodes to a few megabytes; anything larger is left to the collector.
const maxBufferSize = 8 << 20

var bufferPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, 64<<10))
	},
}

// AcquireBuffer gets an empty buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufferPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool. The caller must not use b afterwards.
func ReleaseBuffer(b *bytes.Buffer) {
	if b == nil {
		return
	}
	// Don't return oversized buffers
	if b.Cap() <= maxBufferSize {
		bufferPool.Put(b)
	}
}
