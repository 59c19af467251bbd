// Package connect bridges one source stream to one sink stream, decoding and
// reformatting coded pictures into a raw layout the sink accepts.
package connect

import (
	"errors"
	"sync/atomic"

	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
)

// InputPadding is appended to every staging buffer; decoders may read past
// the end of the coded data.
const InputPadding = 64

var (
	// ErrWorkerBusy reports a frame handed to a worker before the previous one was synced.
	ErrWorkerBusy = errors.New("connect: frame received while worker busy")
	// ErrClosed reports use of a closed connector.
	ErrClosed = errors.New("connect: connector closed")
)

// Connector is a live source-to-sink stream connection. The FrameListener
// callbacks and Sync are called from the source's read loop.
type Connector interface {
	media.FrameListener
	// Sync waits for the frame received since the last Sync and returns its
	// result. It returns nil at once when no frame was received.
	Sync() error
	Close() error
	Connection() Connection
	Stats() Stats
}

// Connection describes what a connector joins.
type Connection struct {
	SourceStream int              `json:"source_stream"`
	SinkStream   int              `json:"sink_stream"`
	Family       string           `json:"family"`
	Source       media.StreamInfo `json:"source"`
	Output       media.StreamInfo `json:"output"`
	Worker       bool             `json:"worker"`
}

// Stats counts frames through a connector.
type Stats struct {
	Frames     uint64 `json:"frames"`
	Errors     uint64 `json:"errors"`
	Violations uint64 `json:"violations"`
}

type counters struct {
	frames     atomic.Uint64
	errors     atomic.Uint64
	violations atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Frames:     c.frames.Load(),
		Errors:     c.errors.Load(),
		Violations: c.violations.Load(),
	}
}

// Env carries what connectors need to construct themselves.
type Env struct {
	Pools *codec.Pools
	// Threads is the codec-internal thread count per decoder.
	Threads int
	// UseWorker decodes on a dedicated goroutine per connector.
	UseWorker bool
	Logger    logger.Logger
}

func (e Env) logger() logger.Logger {
	if e.Logger == nil {
		return logger.Discard
	}
	return e.Logger
}

// Family is one kind of connector. Accept is a side-effect free probe;
// Create negotiates again and commits the sink stream.
type Family interface {
	Name() string
	Accept(sink media.Sink, src *media.StreamInfo) (*media.StreamInfo, bool)
	Create(env Env, sink media.Sink, sinkID, sourceID int, src *media.StreamInfo) (Connector, error)
}

// Families returns every family in probe priority order.
func Families() []Family {
	return []Family{
		Passthrough(),
		DV(),
		MPEG(),
		MJPEG(),
		DNxHD(),
		AVCIntra(),
	}
}
