package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/metrics"
)

// RawFile is a single-stream source reading coded or raw frames from a file.
type RawFile struct {
	path      string
	info      *media.StreamInfo
	framing   Framing
	frameSize int

	file     *os.File
	r        *bufio.Reader
	scratch  []byte
	position int64
	offset   int64
	disabled bool
	logger   logger.Logger
}

// OpenRawFile opens path as one stream described by info. With FramingFixed a
// frameSize of 0 is derived from the format.
func OpenRawFile(path string, info *media.StreamInfo, framing Framing, frameSize int, log logger.Logger) (*RawFile, error) {
	if log == nil {
		log = logger.Discard
	}
	if framing == FramingFixed && frameSize <= 0 {
		frameSize = FixedFrameSize(info)
		if frameSize <= 0 {
			return nil, fmt.Errorf("%s has no fixed frame size, set frame_size or use length_prefixed framing", info.Format)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source file: %w", err)
	}

	s := &RawFile{
		path:      path,
		info:      info.Clone(),
		framing:   framing,
		frameSize: frameSize,
		file:      f,
		r:         bufio.NewReaderSize(f, 1<<20),
		logger: log.WithFields(map[string]interface{}{
			"component": "raw_source",
			"path":      path,
		}),
	}
	s.logger.WithFields(map[string]interface{}{
		"stream":  s.info.String(),
		"framing": framing.String(),
	}).Info("Source file opened")
	return s, nil
}

func (s *RawFile) NumStreams() int { return 1 }

func (s *RawFile) StreamInfo(i int) (*media.StreamInfo, bool) {
	if i != 0 {
		return nil, false
	}
	return s.info, true
}

func (s *RawFile) IsDisabled(i int) bool { return i == 0 && s.disabled }

func (s *RawFile) DisableStream(i int) {
	if i == 0 && !s.disabled {
		s.disabled = true
		s.logger.Info("Source stream disabled")
	}
}

func (s *RawFile) FinaliseBlank(*media.StreamInfo) {}

// ReadFrame reads the next frame and hands it to the listener. Listener
// errors are left for the listener's own Sync to report; only read errors
// are returned. A truncated final frame ends the essence.
func (s *RawFile) ReadFrame(ctx context.Context, l media.FrameListener) (*media.FrameInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := s.frameSize
	prefix := 0
	if s.framing == FramingLengthPrefixed {
		n, err := readLength(s.r)
		if err != nil {
			return nil, err
		}
		size = n
		prefix = 4
	}

	frame := &media.FrameInfo{
		Position:     s.position,
		FrameRate:    s.info.FrameRate,
		ReadPosition: s.offset,
	}

	var dst []byte
	owned := false
	if !s.disabled && l.AcceptFrame(0, frame) {
		buf, err := l.AllocateBuffer(0, size)
		if err == nil && len(buf) >= size {
			dst = buf[:size]
			owned = true
		}
	}
	if dst == nil {
		if cap(s.scratch) < size {
			s.scratch = make([]byte, size)
		}
		dst = s.scratch[:size]
	}

	if _, err := io.ReadFull(s.r, dst); err != nil {
		if owned {
			l.DeallocateBuffer(0, dst)
		}
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			if !errors.Is(err, io.EOF) || prefix > 0 {
				s.logger.WithField("position", s.position).Warn("Truncated final frame ignored")
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame %d: %w", s.position, err)
	}

	if owned {
		_ = l.ReceiveFrame(0, dst)
	}

	s.position++
	s.offset += int64(prefix + size)
	metrics.IncrementFramesRead()
	return frame, nil
}

func (s *RawFile) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// FixedFrameSize returns the constant coded frame size of DV and D10-style
// formats, or 0 when frames vary in size.
func FixedFrameSize(info *media.StreamInfo) int {
	pal := info.Height == 576 || info.Height == 608
	rate := info.FrameRate.Float()

	switch info.Format {
	case media.FormatDV25YUV420, media.FormatDV25YUV411:
		if pal {
			return 144000
		}
		return 120000
	case media.FormatDV50:
		if pal {
			return 288000
		}
		return 240000
	case media.FormatDV100_1080i:
		if rate > 0 && rate < 26 {
			return 576000
		}
		return 480000
	case media.FormatDV100_720p:
		if rate > 0 && rate < 51 {
			return 288000
		}
		return 240000
	case media.FormatUYVY, media.FormatYUV422, media.FormatYUV420, media.FormatYUV411,
		media.FormatYUV422_10Bit, media.FormatYUV420_10Bit:
		return media.FrameSize(info.Format, info.Width, info.Height)
	}
	return 0
}
