package connect

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zsiec/ingex/internal/codec"
	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/metrics"
	"github.com/zsiec/ingex/internal/reformat"
)

// decodeFamily is the generic decoding family; its codecSpec supplies the
// codec specific negotiation and geometry.
type decodeFamily struct {
	spec codecSpec
}

func (f *decodeFamily) Name() string { return f.spec.name() }

func (f *decodeFamily) Accept(sink media.Sink, src *media.StreamInfo) (*media.StreamInfo, bool) {
	for _, candidate := range f.spec.outputs(src) {
		if sink.AcceptStream(&candidate) {
			return candidate.Clone(), true
		}
	}
	return nil, false
}

func (f *decodeFamily) Create(env Env, sink media.Sink, sinkID, sourceID int, src *media.StreamInfo) (Connector, error) {
	out, ok := f.Accept(sink, src)
	if !ok {
		return nil, apperrors.NewNegotiationError(
			fmt.Sprintf("sink accepts no %s output for %s", f.spec.name(), src))
	}
	p := f.spec.plan(src, out)

	if err := sink.RegisterStream(sinkID, out); err != nil {
		return nil, apperrors.WrapSinkError(err, fmt.Sprintf("failed to register sink stream %d", sinkID))
	}

	if env.Pools == nil {
		return nil, apperrors.NewInternalError("no decoder pools configured")
	}
	pool, err := env.Pools.Get(f.spec.name())
	if err != nil {
		return nil, err
	}
	lease, err := pool.Acquire(p.codec, p.width, p.height, env.Threads)
	if err != nil {
		return nil, err
	}

	log := env.logger().WithFields(logger.StreamFields(sourceID, sinkID, f.spec.name()))
	c := &decodingConnector{
		conn: Connection{
			SourceStream: sourceID,
			SinkStream:   sinkID,
			Family:       f.spec.name(),
			Source:       *src,
			Output:       *out,
			Worker:       env.UseWorker,
		},
		sink:    sink,
		plan:    p,
		outSize: media.FrameSize(out.Format, out.Width, out.Height),
		pool:    pool,
		lease:   lease,
		staging: make([]byte, p.staging+InputPadding),
		logger:  logger.NewDecodeLogger(log),
	}
	if env.UseWorker {
		c.worker = newWorker("decode_worker_"+f.spec.name(), c.decode)
	}

	log.WithFields(map[string]interface{}{
		"source_format": src.Format.String(),
		"output_format": out.Format.String(),
		"width":         out.Width,
		"height":        out.Height,
		"worker":        env.UseWorker,
	}).Info("Stream connector created")

	return c, nil
}

type decodingConnector struct {
	conn    Connection
	sink    media.Sink
	plan    plan
	outSize int

	pool  *codec.Pool
	lease *codec.Lease

	// staging holds the coded frame; it is only touched by the decode
	// goroutine while a frame is pending.
	staging []byte
	sinkBuf []byte

	received bool
	result   error
	worker   *worker

	stats     counters
	logger    *logger.SampledLogger
	closeOnce sync.Once
	closed    bool
}

func (c *decodingConnector) Connection() Connection { return c.conn }
func (c *decodingConnector) Stats() Stats           { return c.stats.snapshot() }

func (c *decodingConnector) busy() bool {
	return c.worker != nil && c.worker.busy()
}

func (c *decodingConnector) violation() error {
	c.stats.violations.Add(1)
	c.logger.ErrorWithCategory(logger.CategoryWorker, "Frame arrived while decode worker busy", nil)
	return apperrors.Wrap(ErrWorkerBusy, apperrors.ErrorTypeProtocol,
		fmt.Sprintf("stream %d: previous frame not yet synced", c.conn.SourceStream), http.StatusConflict)
}

func (c *decodingConnector) AcceptFrame(_ int, frame *media.FrameInfo) bool {
	c.received = false
	c.result = nil
	return c.sink.AcceptStreamFrame(c.conn.SinkStream, frame)
}

// AllocateBuffer returns the staging buffer for the coded frame, growing it
// when needed, and reserves the sink buffer for the decoded picture.
func (c *decodingConnector) AllocateBuffer(_ int, size int) ([]byte, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.busy() {
		return nil, c.fail(c.violation())
	}
	if size+InputPadding > len(c.staging) {
		c.staging = make([]byte, size+InputPadding)
	}

	buf, err := c.sink.GetStreamBuffer(c.conn.SinkStream, c.outSize)
	if err != nil {
		return nil, c.fail(apperrors.WrapSinkError(err, "sink buffer allocation failed"))
	}
	c.sinkBuf = buf
	return c.staging[:size], nil
}

func (c *decodingConnector) DeallocateBuffer(int, []byte) {}

func (c *decodingConnector) ReceiveFrame(_ int, buf []byte) error {
	if len(buf) > 0 && len(c.staging) > 0 && &buf[0] == &c.staging[0] {
		return c.receive(len(buf))
	}
	return c.ReceiveFrameConst(0, buf)
}

// ReceiveFrameConst copies caller-owned data into the staging buffer, since
// a worker outlives the call.
func (c *decodingConnector) ReceiveFrameConst(_ int, data []byte) error {
	if c.closed {
		return ErrClosed
	}
	if c.busy() {
		return c.fail(c.violation())
	}
	if len(data)+InputPadding > len(c.staging) {
		c.staging = make([]byte, len(data)+InputPadding)
	}
	copy(c.staging, data)
	return c.receive(len(data))
}

func (c *decodingConnector) receive(n int) error {
	if c.closed {
		return ErrClosed
	}
	// staging belongs to the worker until Sync
	if c.busy() {
		return c.fail(c.violation())
	}
	// zero the codec padding
	clear(c.staging[n : n+InputPadding])
	data := c.staging[:n]
	c.received = true

	if c.worker == nil {
		if err := c.decode(data); err != nil {
			return c.fail(err)
		}
		return nil
	}
	if err := c.worker.submit(data); err != nil {
		if errors.Is(err, ErrWorkerBusy) {
			return c.fail(c.violation())
		}
		return c.fail(err)
	}
	return nil
}

// fail keeps the first error of the frame for Sync to report.
func (c *decodingConnector) fail(err error) error {
	c.received = true
	if c.result == nil {
		c.result = err
	}
	return err
}

// decode runs decode, reformat and delivery for one frame.
func (c *decodingConnector) decode(data []byte) error {
	start := time.Now()
	family := c.conn.Family

	pic, err := c.lease.Decode(data)
	if err != nil {
		c.stats.errors.Add(1)
		metrics.IncrementDecodeError(family, string(apperrors.ErrorTypeDecode))
		if errors.Is(err, codec.ErrNoPicture) {
			c.logger.WarnWithCategory(logger.CategoryDecode, "Decoder produced no picture", nil)
		} else {
			c.logger.WarnWithCategory(logger.CategoryDecode, "Decode failed",
				map[string]interface{}{"error": err.Error()})
		}
		return apperrors.WrapDecodeError(err, fmt.Sprintf("stream %d frame dropped", c.conn.SourceStream))
	}

	if err := c.reformat(pic); err != nil {
		c.stats.errors.Add(1)
		metrics.IncrementDecodeError(family, "REFORMAT_FAILED")
		c.logger.WarnWithCategory(logger.CategoryReformat, "Reformat failed",
			map[string]interface{}{"error": err.Error()})
		return apperrors.WrapDecodeError(err, fmt.Sprintf("stream %d frame dropped", c.conn.SourceStream))
	}

	out := c.sinkBuf[:c.outSize]
	c.sinkBuf = nil
	if err := c.sink.ReceiveStreamFrame(c.conn.SinkStream, out); err != nil {
		c.stats.errors.Add(1)
		metrics.IncrementDecodeError(family, string(apperrors.ErrorTypeSink))
		return apperrors.WrapSinkError(err, fmt.Sprintf("sink rejected stream %d frame", c.conn.SinkStream))
	}

	c.stats.frames.Add(1)
	metrics.RecordDecode(family, time.Since(start).Seconds())
	metrics.AddSinkBytes(fmt.Sprint(c.conn.SinkStream), len(out))
	c.logger.DebugWithCategory(logger.CategoryDecode, "Frame decoded",
		map[string]interface{}{"coded_bytes": len(data), "output_bytes": len(out)})
	return nil
}

func (c *decodingConnector) reformat(pic *codec.Picture) error {
	if c.plan.pixel != codec.PixelFormatUnknown && pic.Format != c.plan.pixel {
		return fmt.Errorf("decoder produced %s, expected %s", pic.Format, c.plan.pixel)
	}
	if len(c.sinkBuf) < c.outSize {
		buf, err := c.sink.GetStreamBuffer(c.conn.SinkStream, c.outSize)
		if err != nil {
			return err
		}
		c.sinkBuf = buf
	}
	if c.conn.Output.Format == media.FormatUYVY {
		return reformat.UYVY(c.sinkBuf, pic, c.plan.region)
	}
	return reformat.Planar(c.sinkBuf, pic, c.plan.region)
}

// Sync waits for the pending worker frame, if any, and reports the frame's
// first error.
func (c *decodingConnector) Sync() error {
	if !c.received && !c.busy() {
		return nil
	}
	c.received = false
	stored := c.result
	c.result = nil
	if c.worker == nil || !c.worker.busy() {
		return stored
	}

	start := time.Now()
	err := c.worker.wait()
	metrics.RecordSyncWait(c.conn.Family, time.Since(start).Seconds())
	if err != nil {
		c.logger.WarnWithCategory(logger.CategorySync, "Stream sync failed",
			map[string]interface{}{"error": err.Error()})
	}
	return errors.Join(stored, err)
}

func (c *decodingConnector) Close() error {
	c.closeOnce.Do(func() {
		c.closed = true
		if c.worker != nil {
			c.worker.close()
		}
		c.pool.Release(c.lease)
		c.staging = nil
		c.sinkBuf = nil
	})
	return nil
}
