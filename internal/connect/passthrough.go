package connect

import (
	"fmt"
	"sync"

	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/metrics"
)

type passthroughFamily struct{}

// Passthrough forwards streams the sink accepts unchanged.
func Passthrough() Family { return passthroughFamily{} }

func (passthroughFamily) Name() string { return "passthrough" }

func (passthroughFamily) Accept(sink media.Sink, src *media.StreamInfo) (*media.StreamInfo, bool) {
	if src.IsBlank() || !sink.AcceptStream(src) {
		return nil, false
	}
	return src.Clone(), true
}

func (f passthroughFamily) Create(env Env, sink media.Sink, sinkID, sourceID int, src *media.StreamInfo) (Connector, error) {
	out, ok := f.Accept(sink, src)
	if !ok {
		return nil, apperrors.NewNegotiationError(fmt.Sprintf("sink does not accept %s", src))
	}
	if err := sink.RegisterStream(sinkID, out); err != nil {
		return nil, apperrors.WrapSinkError(err, fmt.Sprintf("failed to register sink stream %d", sinkID))
	}

	env.logger().WithFields(logger.StreamFields(sourceID, sinkID, f.Name())).
		WithField("format", out.Format.String()).
		Info("Stream connector created")

	return &passthroughConnector{
		conn: Connection{
			SourceStream: sourceID,
			SinkStream:   sinkID,
			Family:       f.Name(),
			Source:       *src,
			Output:       *out,
		},
		sink: sink,
	}, nil
}

// passthroughConnector hands source buffers straight to the sink.
type passthroughConnector struct {
	conn   Connection
	sink   media.Sink
	result error
	stats  counters
	once   sync.Once
	closed bool
}

func (c *passthroughConnector) Connection() Connection { return c.conn }
func (c *passthroughConnector) Stats() Stats           { return c.stats.snapshot() }

func (c *passthroughConnector) AcceptFrame(_ int, frame *media.FrameInfo) bool {
	c.result = nil
	return c.sink.AcceptStreamFrame(c.conn.SinkStream, frame)
}

func (c *passthroughConnector) AllocateBuffer(_ int, size int) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	buf, err := c.sink.GetStreamBuffer(c.conn.SinkStream, size)
	if err != nil {
		c.result = apperrors.WrapSinkError(err, "sink buffer allocation failed")
		return nil, c.result
	}
	return buf, nil
}

func (c *passthroughConnector) DeallocateBuffer(int, []byte) {}

func (c *passthroughConnector) ReceiveFrame(_ int, buf []byte) error {
	if c.closed {
		return ErrClosed
	}
	if err := c.sink.ReceiveStreamFrame(c.conn.SinkStream, buf); err != nil {
		c.stats.errors.Add(1)
		c.result = apperrors.WrapSinkError(err, fmt.Sprintf("sink rejected stream %d frame", c.conn.SinkStream))
		return c.result
	}
	c.stats.frames.Add(1)
	metrics.IncrementFramePassed(c.conn.Output.Format.String())
	return nil
}

func (c *passthroughConnector) ReceiveFrameConst(id int, data []byte) error {
	buf, err := c.AllocateBuffer(id, len(data))
	if err != nil {
		return err
	}
	copy(buf, data)
	return c.ReceiveFrame(id, buf[:len(data)])
}

func (c *passthroughConnector) Sync() error {
	err := c.result
	c.result = nil
	return err
}

func (c *passthroughConnector) Close() error {
	c.once.Do(func() { c.closed = true })
	return nil
}
