package transport

import (
	"sync"

	"github.com/joshuafuller/svcinfo/internal/protocol"
)

// bufferPool recycles receive buffers so the receive loop does not allocate
// a full datagram buffer per packet.
var bufferPool = sync.Pool{
	New: func() any {
		buf := make([]byte, protocol.MaxMessageSize)
		return &buf
	},
}

// GetBuffer takes a MaxMessageSize buffer from the pool.
func GetBuffer() *[]byte {
	return bufferPool.Get().(*[]byte)
}

// PutBuffer returns a buffer obtained from GetBuffer.
func PutBuffer(buf *[]byte) {
	if buf == nil || cap(*buf) < protocol.MaxMessageSize {
		return
	}
	*buf = (*buf)[:protocol.MaxMessageSize]
	bufferPool.Put(buf)
}
