package source

import (
	"context"
	"errors"

	"github.com/zsiec/ingex/internal/media"
)

// ErrNoActiveStreams is returned by Multi.ReadFrame once every stream is disabled.
var ErrNoActiveStreams = errors.New("source: every stream is disabled")

// Multi presents several sources as one, numbering their streams in order.
// The essence ends when any member with an enabled stream ends.
type Multi struct {
	members []media.Source
	offsets []int
	total   int
}

func NewMulti(members ...media.Source) *Multi {
	m := &Multi{members: members, offsets: make([]int, len(members))}
	for i, s := range members {
		m.offsets[i] = m.total
		m.total += s.NumStreams()
	}
	return m
}

func (m *Multi) NumStreams() int { return m.total }

// locate maps a stream index to its member and local index.
func (m *Multi) locate(i int) (media.Source, int, bool) {
	if i < 0 || i >= m.total {
		return nil, 0, false
	}
	for k := len(m.members) - 1; k >= 0; k-- {
		if i >= m.offsets[k] {
			return m.members[k], i - m.offsets[k], true
		}
	}
	return nil, 0, false
}

func (m *Multi) StreamInfo(i int) (*media.StreamInfo, bool) {
	s, local, ok := m.locate(i)
	if !ok {
		return nil, false
	}
	return s.StreamInfo(local)
}

func (m *Multi) IsDisabled(i int) bool {
	s, local, ok := m.locate(i)
	return ok && s.IsDisabled(local)
}

func (m *Multi) DisableStream(i int) {
	if s, local, ok := m.locate(i); ok {
		s.DisableStream(local)
	}
}

func (m *Multi) FinaliseBlank(info *media.StreamInfo) {
	for _, s := range m.members {
		s.FinaliseBlank(info)
	}
}

func (m *Multi) active(k int) bool {
	s := m.members[k]
	for i := 0; i < s.NumStreams(); i++ {
		if !s.IsDisabled(i) {
			return true
		}
	}
	return false
}

// ReadFrame reads one frame from every member with an enabled stream and
// returns the frame info of the first.
func (m *Multi) ReadFrame(ctx context.Context, l media.FrameListener) (*media.FrameInfo, error) {
	var first *media.FrameInfo
	for k, s := range m.members {
		if !m.active(k) {
			continue
		}
		frame, err := s.ReadFrame(ctx, offsetListener{l: l, offset: m.offsets[k]})
		if err != nil {
			return nil, err
		}
		if first == nil {
			first = frame
		}
	}
	if first == nil {
		return nil, ErrNoActiveStreams
	}
	return first, nil
}

func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.members {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// offsetListener shifts member-local stream indexes into the combined range.
type offsetListener struct {
	l      media.FrameListener
	offset int
}

func (o offsetListener) AcceptFrame(id int, frame *media.FrameInfo) bool {
	return o.l.AcceptFrame(id+o.offset, frame)
}

func (o offsetListener) AllocateBuffer(id int, size int) ([]byte, error) {
	return o.l.AllocateBuffer(id+o.offset, size)
}

func (o offsetListener) DeallocateBuffer(id int, buf []byte) {
	o.l.DeallocateBuffer(id+o.offset, buf)
}

func (o offsetListener) ReceiveFrame(id int, buf []byte) error {
	return o.l.ReceiveFrame(id+o.offset, buf)
}

func (o offsetListener) ReceiveFrameConst(id int, data []byte) error {
	return o.l.ReceiveFrameConst(id+o.offset, data)
}
