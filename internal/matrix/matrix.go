// Package matrix connects every usable source stream to the sink through the
// first connector family that accepts it.
package matrix

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/zsiec/ingex/internal/connect"
	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/metrics"
)

// ErrNoStreams is returned by Build when no source stream could be connected.
var ErrNoStreams = errors.New("matrix: no source stream could be connected")

// ErrNotConnected is returned by the listener for streams outside the matrix.
var ErrNotConnected = errors.New("matrix: stream not connected")

// Disable reasons, used as metric labels.
const (
	ReasonUnsupported  = "unsupported"
	ReasonCreateFailed = "create_failed"
)

type entry struct {
	sourceID  int
	connector connect.Connector
}

// Entry is a point-in-time view of one matrix entry.
type Entry struct {
	Connection connect.Connection `json:"connection"`
	Stats      connect.Stats      `json:"stats"`
}

// Matrix owns the connectors of one source/sink pair.
type Matrix struct {
	logger logger.Logger

	mu      sync.RWMutex
	entries []entry
	closed  bool
}

// Build connects the source's streams to the sink. Streams no family accepts,
// and streams whose connector cannot be created, are disabled on the source
// and left out. Build fails only when nothing could be connected.
func Build(src media.Source, sink media.Sink, env connect.Env) (*Matrix, error) {
	return BuildWith(src, sink, env, connect.Families())
}

// BuildWith is Build with an explicit family probe order.
func BuildWith(src media.Source, sink media.Sink, env connect.Env, families []connect.Family) (*Matrix, error) {
	if src == nil || sink == nil {
		return nil, apperrors.NewValidationError("matrix needs a source and a sink")
	}
	log := env.Logger
	if log == nil {
		log = logger.Discard
	}
	m := &Matrix{logger: log.WithField("component", "connection_matrix")}
	env.Logger = log

	finaliseBlanks(src, m.logger)

	for i := 0; i < src.NumStreams(); i++ {
		if src.IsDisabled(i) {
			continue
		}
		info, ok := src.StreamInfo(i)
		if !ok {
			continue
		}

		family := probe(families, sink, info)
		if family == nil {
			m.logger.WithFields(map[string]interface{}{
				"source_stream": i,
				"stream":        info.String(),
			}).Warn("No connector accepts stream, disabling it")
			src.DisableStream(i)
			metrics.IncrementStreamDisabled(ReasonUnsupported)
			continue
		}

		c, err := family.Create(env, sink, i, i, info)
		if err != nil {
			m.logger.WithError(err).WithFields(map[string]interface{}{
				"source_stream": i,
				"connector":     family.Name(),
				"error_type":    apperrors.TypeOf(err),
			}).Warn("Failed to create stream connector, disabling stream")
			src.DisableStream(i)
			metrics.IncrementStreamDisabled(ReasonCreateFailed)
			continue
		}

		m.entries = append(m.entries, entry{sourceID: i, connector: c})
		metrics.AddConnectorsActive(family.Name(), 1)
	}

	if len(m.entries) == 0 {
		return nil, apperrors.Wrap(ErrNoStreams, apperrors.ErrorTypeNegotiation,
			fmt.Sprintf("none of %d source streams could be connected", src.NumStreams()), http.StatusUnprocessableEntity)
	}

	m.logger.WithFields(map[string]interface{}{
		"connected": len(m.entries),
		"streams":   src.NumStreams(),
	}).Info("Connection matrix built")
	return m, nil
}

// finaliseBlanks gives placeholder streams the geometry of the first real
// picture stream, or PAL defaults when there is none.
func finaliseBlanks(src media.Source, log logger.Logger) {
	var representative *media.StreamInfo
	hasBlank := false
	for i := 0; i < src.NumStreams(); i++ {
		info, ok := src.StreamInfo(i)
		if !ok || info.Type != media.StreamTypePicture {
			continue
		}
		if info.IsBlank() {
			hasBlank = true
			continue
		}
		if representative == nil && info.Format != media.FormatUnknown {
			representative = info
		}
	}
	if !hasBlank {
		return
	}
	if representative == nil {
		representative = media.DefaultPictureInfo()
	}
	log.WithField("representative", representative.String()).Debug("Finalising blank streams")
	src.FinaliseBlank(representative.Clone())
}

func probe(families []connect.Family, sink media.Sink, info *media.StreamInfo) connect.Family {
	for _, f := range families {
		if _, ok := f.Accept(sink, info); ok {
			return f
		}
	}
	return nil
}

// Listener returns the listener to hand to Source.ReadFrame.
func (m *Matrix) Listener() media.FrameListener { return fanout{m} }

func (m *Matrix) connector(sourceID int) connect.Connector {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if e.sourceID == sourceID {
			return e.connector
		}
	}
	return nil
}

// Sync syncs every connector, failed ones included, and joins their errors.
func (m *Matrix) Sync() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var errs []error
	for _, e := range m.entries {
		if err := e.connector.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("stream %d: %w", e.sourceID, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every connector. It is safe to call more than once.
func (m *Matrix) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	for _, e := range m.entries {
		if err := e.connector.Close(); err != nil {
			errs = append(errs, err)
		}
		metrics.AddConnectorsActive(e.connector.Connection().Family, -1)
	}
	m.entries = nil
	m.logger.Debug("Connection matrix closed")
	return errors.Join(errs...)
}

// Len returns the number of connected streams.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Connections lists the live connections in source stream order.
func (m *Matrix) Connections() []connect.Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]connect.Connection, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.connector.Connection())
	}
	return out
}

// Entries returns every connection with its counters.
func (m *Matrix) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, Entry{Connection: e.connector.Connection(), Stats: e.connector.Stats()})
	}
	return out
}

// fanout routes source callbacks to the connector of each stream.
type fanout struct {
	m *Matrix
}

func (f fanout) AcceptFrame(id int, frame *media.FrameInfo) bool {
	c := f.m.connector(id)
	return c != nil && c.AcceptFrame(id, frame)
}

func (f fanout) AllocateBuffer(id int, size int) ([]byte, error) {
	c := f.m.connector(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	return c.AllocateBuffer(id, size)
}

func (f fanout) DeallocateBuffer(id int, buf []byte) {
	if c := f.m.connector(id); c != nil {
		c.DeallocateBuffer(id, buf)
	}
}

func (f fanout) ReceiveFrame(id int, buf []byte) error {
	c := f.m.connector(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	return c.ReceiveFrame(id, buf)
}

func (f fanout) ReceiveFrameConst(id int, data []byte) error {
	c := f.m.connector(id)
	if c == nil {
		return fmt.Errorf("%w: %d", ErrNotConnected, id)
	}
	return c.ReceiveFrameConst(id, data)
}
