package sink

import (
	"sync"

	"github.com/zsiec/ingex/internal/media"
)

// Memory records every delivered frame. It backs dry runs and tests.
type Memory struct {
	*registry

	// FailReceive, when set, is returned by every ReceiveStreamFrame.
	FailReceive error

	mu        sync.Mutex
	pending   map[int][]byte
	frames    map[int][][]byte
	receives  map[int]int
	completed []media.FrameInfo
	cancelled int
}

func NewMemory(accept []media.Format, maxStreams int) *Memory {
	return &Memory{
		registry: newRegistry(accept, maxStreams, nil),
		pending:  make(map[int][]byte),
		frames:   make(map[int][][]byte),
		receives: make(map[int]int),
	}
}

// ReceiveStreamFrame copies the frame; it is kept once the frame completes.
func (m *Memory) ReceiveStreamFrame(id int, data []byte) error {
	if _, ok := m.registered(id); !ok {
		return ErrUnregistered
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receives[id]++
	if m.FailReceive != nil {
		return m.FailReceive
	}
	m.pending[id] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) CompleteFrame(frame *media.FrameInfo) error {
	m.mu.Lock()
	var bytes int64
	for id, data := range m.pending {
		m.frames[id] = append(m.frames[id], data)
		bytes += int64(len(data))
	}
	n := len(m.pending)
	m.pending = make(map[int][]byte)
	if frame != nil {
		m.completed = append(m.completed, *frame)
	}
	m.mu.Unlock()

	m.registry.mu.Lock()
	m.registry.stats.Completed++
	m.registry.stats.Frames += int64(n)
	m.registry.stats.Bytes += bytes
	m.registry.mu.Unlock()
	return nil
}

func (m *Memory) CancelFrame() {
	m.mu.Lock()
	m.pending = make(map[int][]byte)
	m.cancelled++
	m.mu.Unlock()

	m.registry.mu.Lock()
	m.registry.stats.Cancelled++
	m.registry.mu.Unlock()
}

func (m *Memory) Close() error { return nil }

// Frames returns the completed frames of a sink stream.
func (m *Memory) Frames(id int) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.frames[id]...)
}

// Receives counts ReceiveStreamFrame calls for a stream, failed ones included.
func (m *Memory) Receives(id int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receives[id]
}

func (m *Memory) Completed() []media.FrameInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]media.FrameInfo(nil), m.completed...)
}

func (m *Memory) Cancelled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelled
}
