// Package codectest provides an in-memory codec.Library for tests.
package codectest

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/zsiec/ingex/internal/codec"
)

// Pad is the number of junk bytes appended to every decoded line.
const Pad = 32

// PadByte fills stride padding so leaks into output are detectable.
const PadByte = 0xEE

// Luma returns the 8-bit luma value the fake decoder writes on line y.
func Luma(y int) byte { return byte(16 + y%200) }

// Luma10 returns the 10-bit luma value the fake decoder writes on line y.
func Luma10(y int) uint16 { return uint16(64 + y%800) }

// Library is a fake codec library. Pictures are synthetic: every luma line
// carries Luma(y) (or Luma10(y)), chroma is mid-grey, lines carry Pad bytes
// of PadByte.
type Library struct {
	// Formats overrides the decoded pixel format per codec. Missing entries
	// default to 4:2:2 planar.
	Formats map[codec.ID]codec.PixelFormat
	// OpenErr fails NewDecoder.
	OpenErr error
	// DecodeErr fails every Decode.
	DecodeErr error
	// NoPicture makes every Decode return codec.ErrNoPicture.
	NoPicture bool
	// Delay is slept inside Decode.
	Delay time.Duration
	// Gate, when set, is received from before each Decode returns.
	Gate chan struct{}
	// Inspect, when set, sees the coded bytes after Gate and before decoding.
	Inspect func(data []byte)

	mu         sync.Mutex
	registered int
	opened     int
	closed     int
	decodes    int
	threads    []int
}

func New() *Library {
	return &Library{Formats: make(map[codec.ID]codec.PixelFormat)}
}

func (l *Library) Name() string { return "fake" }

func (l *Library) Register() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.registered++
	return nil
}

func (l *Library) NewDecoder(id codec.ID, width, height, threads int) (codec.Decoder, error) {
	if l.OpenErr != nil {
		return nil, l.OpenErr
	}
	format, ok := l.Formats[id]
	if !ok {
		format = codec.PixelFormatYUV422P
	}

	l.mu.Lock()
	l.opened++
	l.threads = append(l.threads, threads)
	l.mu.Unlock()

	return &decoder{lib: l, id: id, format: format, width: width, height: height}, nil
}

func (l *Library) Registered() int { l.mu.Lock(); defer l.mu.Unlock(); return l.registered }
func (l *Library) Opened() int     { l.mu.Lock(); defer l.mu.Unlock(); return l.opened }
func (l *Library) Closed() int     { l.mu.Lock(); defer l.mu.Unlock(); return l.closed }
func (l *Library) Decodes() int    { l.mu.Lock(); defer l.mu.Unlock(); return l.decodes }

// Threads returns the thread counts passed to NewDecoder in call order.
func (l *Library) Threads() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.threads...)
}

type decoder struct {
	lib           *Library
	id            codec.ID
	format        codec.PixelFormat
	width, height int
	closed        bool
}

var errClosed = errors.New("codectest: decoder closed")

func (d *decoder) Decode(data []byte) (*codec.Picture, error) {
	if d.closed {
		return nil, errClosed
	}
	d.lib.mu.Lock()
	d.lib.decodes++
	d.lib.mu.Unlock()

	if d.lib.Delay > 0 {
		time.Sleep(d.lib.Delay)
	}
	if d.lib.Gate != nil {
		<-d.lib.Gate
	}
	if d.lib.Inspect != nil {
		d.lib.Inspect(data)
	}
	if d.lib.DecodeErr != nil {
		return nil, d.lib.DecodeErr
	}
	if d.lib.NoPicture || len(data) == 0 {
		return nil, codec.ErrNoPicture
	}
	return Picture(d.format, d.width, d.height), nil
}

func (d *decoder) Close() error {
	if d.closed {
		return errClosed
	}
	d.closed = true
	d.lib.mu.Lock()
	d.lib.closed++
	d.lib.mu.Unlock()
	return nil
}

// Picture builds a synthetic padded picture.
func Picture(format codec.PixelFormat, width, height int) *codec.Picture {
	bps := format.BytesPerSample()
	sx, sy := format.ChromaShift()
	pic := &codec.Picture{Format: format, Width: width, Height: height}

	for plane := 0; plane < 3; plane++ {
		w, h := width, height
		if plane > 0 {
			w = (width + (1 << sx) - 1) >> sx
			h = (height + (1 << sy) - 1) >> sy
		}
		stride := w*bps + Pad
		buf := make([]byte, stride*h)
		for y := 0; y < h; y++ {
			line := buf[y*stride : (y+1)*stride]
			for x := 0; x < w; x++ {
				if bps == 2 {
					v := uint16(512)
					if plane == 0 {
						v = Luma10(y)
					}
					binary.LittleEndian.PutUint16(line[x*2:], v)
				} else {
					v := byte(128)
					if plane == 0 {
						v = Luma(y)
					}
					line[x] = v
				}
			}
			for i := w * bps; i < stride; i++ {
				line[i] = PadByte
			}
		}
		pic.Planes[plane] = buf
		pic.Strides[plane] = stride
	}
	return pic
}
