package sink

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
)

// RawFile writes each sink stream to its own file of concatenated raw frames.
// Frames are held until CompleteFrame so a cancelled frame leaves no trace.
type RawFile struct {
	*registry
	dir    string
	logger logger.Logger

	mu      sync.Mutex
	files   map[int]*rawStream
	pending map[int][]byte
}

type rawStream struct {
	file *os.File
	w    *bufio.Writer
}

func NewRawFile(dir string, accept []media.Format, maxStreams int, log logger.Logger) (*RawFile, error) {
	if log == nil {
		log = logger.Discard
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sink directory: %w", err)
	}
	return &RawFile{
		registry: newRegistry(accept, maxStreams, log),
		dir:      dir,
		logger:   log.WithField("component", "raw_sink"),
		files:    make(map[int]*rawStream),
		pending:  make(map[int][]byte),
	}, nil
}

// Path returns the output file of a sink stream.
func (s *RawFile) Path(id int, info *media.StreamInfo) string {
	name := fmt.Sprintf("stream%02d_%s.raw", id, strings.ToLower(info.Format.String()))
	return filepath.Join(s.dir, name)
}

func (s *RawFile) RegisterStream(id int, info *media.StreamInfo) error {
	if err := s.registry.RegisterStream(id, info); err != nil {
		return err
	}
	path := s.Path(id, info)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	s.mu.Lock()
	s.files[id] = &rawStream{file: f, w: bufio.NewWriterSize(f, 1<<20)}
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"sink_stream": id,
		"path":        path,
		"format":      info.Format.String(),
	}).Info("Sink stream registered")
	return nil
}

// ReceiveStreamFrame keeps a reference to data; the stream buffer is not
// reused before the frame completes or is cancelled.
func (s *RawFile) ReceiveStreamFrame(id int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.files[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnregistered, id)
	}
	s.pending[id] = data
	return nil
}

func (s *RawFile) CompleteFrame(*media.FrameInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	var bytes int64
	frames := len(s.pending)
	for id, data := range s.pending {
		if _, err := s.files[id].w.Write(data); err != nil {
			errs = append(errs, fmt.Errorf("stream %d: %w", id, err))
			continue
		}
		bytes += int64(len(data))
	}
	s.pending = make(map[int][]byte)

	s.registry.mu.Lock()
	s.registry.stats.Completed++
	s.registry.stats.Frames += int64(frames)
	s.registry.stats.Bytes += bytes
	s.registry.mu.Unlock()

	return errors.Join(errs...)
}

func (s *RawFile) CancelFrame() {
	s.mu.Lock()
	s.pending = make(map[int][]byte)
	s.mu.Unlock()

	s.registry.mu.Lock()
	s.registry.stats.Cancelled++
	s.registry.mu.Unlock()
}

func (s *RawFile) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for id, rs := range s.files {
		if err := rs.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("stream %d flush: %w", id, err))
		}
		if err := rs.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("stream %d close: %w", id, err))
		}
		s.buffers.Put(id)
	}
	s.files = make(map[int]*rawStream)
	return errors.Join(errs...)
}
