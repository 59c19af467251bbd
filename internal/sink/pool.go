package sink

import (
	"sync"

	"github.com/zsiec/ingex/internal/logger"
)

// BufferPool keeps one reusable frame buffer per sink stream. Buffers of
// closed streams go to a bounded free list.
type BufferPool struct {
	buffers  sync.Map // sink stream ID -> *streamBuffer
	freeList chan []byte
	logger   logger.Logger
	mu       sync.Mutex
}

type streamBuffer struct {
	mu  sync.Mutex
	buf []byte
}

// NewBufferPool creates a pool whose free list holds up to freeSize buffers.
func NewBufferPool(freeSize int, log logger.Logger) *BufferPool {
	if log == nil {
		log = logger.Discard
	}
	return &BufferPool{
		freeList: make(chan []byte, freeSize),
		logger:   log,
	}
}

func (bp *BufferPool) stream(streamID int) *streamBuffer {
	if sb, ok := bp.buffers.Load(streamID); ok {
		return sb.(*streamBuffer)
	}

	bp.mu.Lock()
	defer bp.mu.Unlock()

	if sb, ok := bp.buffers.Load(streamID); ok {
		return sb.(*streamBuffer)
	}
	sb := &streamBuffer{}
	select {
	case sb.buf = <-bp.freeList:
	default:
	}
	bp.buffers.Store(streamID, sb)
	bp.logger.WithField("sink_stream", streamID).Debug("Sink buffer allocated")
	return sb
}

// Get returns the stream's buffer resized to size. The previous contents are
// invalid after the call.
func (bp *BufferPool) Get(streamID, size int) []byte {
	sb := bp.stream(streamID)
	sb.mu.Lock()
	defer sb.mu.Unlock()
	if cap(sb.buf) < size {
		sb.buf = make([]byte, size)
	}
	sb.buf = sb.buf[:size]
	return sb.buf
}

// Put releases the stream's buffer to the free list.
func (bp *BufferPool) Put(streamID int) {
	v, ok := bp.buffers.LoadAndDelete(streamID)
	if !ok {
		return
	}
	sb := v.(*streamBuffer)
	sb.mu.Lock()
	buf := sb.buf
	sb.buf = nil
	sb.mu.Unlock()
	if buf == nil {
		return
	}
	select {
	case bp.freeList <- buf[:0]:
	default:
		bp.logger.WithField("sink_stream", streamID).Debug("Free list full, discarding buffer")
	}
}

// BufferPoolStats holds pool statistics
type BufferPoolStats struct {
	ActiveBuffers int   `json:"active_buffers"`
	FreeBuffers   int   `json:"free_buffers"`
	TotalBytes    int64 `json:"total_bytes"`
}

func (bp *BufferPool) Stats() BufferPoolStats {
	var st BufferPoolStats
	bp.buffers.Range(func(_, value interface{}) bool {
		sb := value.(*streamBuffer)
		sb.mu.Lock()
		st.TotalBytes += int64(cap(sb.buf))
		sb.mu.Unlock()
		st.ActiveBuffers++
		return true
	})
	st.FreeBuffers = len(bp.freeList)
	return st
}
