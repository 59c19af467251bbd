// Package sink holds the raw file and in-memory sinks.
package sink

import (
	"errors"
	"fmt"
	"sync"

	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
)

var (
	ErrStreamLimit  = errors.New("sink: stream limit reached")
	ErrUnregistered = errors.New("sink: stream not registered")
	ErrDuplicate    = errors.New("sink: stream already registered")
	ErrRejected     = errors.New("sink: stream format not accepted")
)

// Stats summarises sink activity.
type Stats struct {
	Streams   int   `json:"streams"`
	Frames    int64 `json:"frames"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Bytes     int64 `json:"bytes"`
}

// registry is the stream bookkeeping shared by the sinks.
type registry struct {
	accept     map[media.Format]bool
	maxStreams int
	buffers    *BufferPool

	mu      sync.RWMutex
	streams map[int]*media.StreamInfo
	stats   Stats
}

func newRegistry(accept []media.Format, maxStreams int, log logger.Logger) *registry {
	r := &registry{
		accept:     make(map[media.Format]bool, len(accept)),
		maxStreams: maxStreams,
		buffers:    NewBufferPool(8, log),
		streams:    make(map[int]*media.StreamInfo),
	}
	for _, f := range accept {
		r.accept[f] = true
	}
	return r
}

func (r *registry) AcceptStream(info *media.StreamInfo) bool {
	return info != nil && r.accept[info.Format]
}

func (r *registry) RegisterStream(id int, info *media.StreamInfo) error {
	if info == nil {
		return ErrRejected
	}
	if !r.AcceptStream(info) {
		return fmt.Errorf("%w: %s", ErrRejected, info.Format)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.streams[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, id)
	}
	if r.maxStreams > 0 && len(r.streams) >= r.maxStreams {
		return fmt.Errorf("%w: %d", ErrStreamLimit, r.maxStreams)
	}
	r.streams[id] = info.Clone()
	r.stats.Streams = len(r.streams)
	return nil
}

func (r *registry) registered(id int) (*media.StreamInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.streams[id]
	return info, ok
}

func (r *registry) AcceptStreamFrame(id int, _ *media.FrameInfo) bool {
	_, ok := r.registered(id)
	return ok
}

func (r *registry) GetStreamBuffer(id, size int) ([]byte, error) {
	if _, ok := r.registered(id); !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnregistered, id)
	}
	return r.buffers.Get(id, size), nil
}

// Streams returns a copy of the registered streams keyed by sink stream ID.
func (r *registry) Streams() map[int]media.StreamInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]media.StreamInfo, len(r.streams))
	for id, info := range r.streams {
		out[id] = *info
	}
	return out
}

func (r *registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// New builds the sink selected by configuration.
func New(cfg *config.SinkConfig, log logger.Logger) (media.Sink, error) {
	accept := make([]media.Format, 0, len(cfg.Accept))
	for _, name := range cfg.Accept {
		f, err := media.ParseFormat(name)
		if err != nil {
			return nil, err
		}
		accept = append(accept, f)
	}

	switch cfg.Type {
	case "memory":
		return NewMemory(accept, cfg.MaxStreams), nil
	case "raw":
		return NewRawFile(cfg.Dir, accept, cfg.MaxStreams, log)
	}
	return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
}
