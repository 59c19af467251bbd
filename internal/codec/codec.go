// Package codec defines the decoder contracts used by the stream connectors
// and the pool that amortises decoder construction.
package codec

import (
	"errors"
	"fmt"
)

// ID names the codec a decoder is built for.
type ID int

const (
	IDUnknown ID = iota
	IDDV
	IDMPEG2Video
	IDMJPEG
	IDDNxHD
	IDH264
)

func (id ID) String() string {
	switch id {
	case IDDV:
		return "dvvideo"
	case IDMPEG2Video:
		return "mpeg2video"
	case IDMJPEG:
		return "mjpeg"
	case IDDNxHD:
		return "dnxhd"
	case IDH264:
		return "h264"
	default:
		return fmt.Sprintf("codec(%d)", int(id))
	}
}

// PixelFormat is the planar layout a decoder produces.
type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatYUV420P
	PixelFormatYUV411P
	PixelFormatYUV422P
	PixelFormatYUV420P10 // 16-bit little-endian samples
	PixelFormatYUV422P10 // 16-bit little-endian samples
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatYUV420P:
		return "yuv420p"
	case PixelFormatYUV411P:
		return "yuv411p"
	case PixelFormatYUV422P:
		return "yuv422p"
	case PixelFormatYUV420P10:
		return "yuv420p10le"
	case PixelFormatYUV422P10:
		return "yuv422p10le"
	default:
		return "unknown"
	}
}

// BytesPerSample is 2 for the 10-bit formats and 1 otherwise.
func (p PixelFormat) BytesPerSample() int {
	if p == PixelFormatYUV420P10 || p == PixelFormatYUV422P10 {
		return 2
	}
	return 1
}

// ChromaShift returns the log2 horizontal and vertical chroma subsampling.
func (p PixelFormat) ChromaShift() (x, y int) {
	switch p {
	case PixelFormatYUV420P, PixelFormatYUV420P10:
		return 1, 1
	case PixelFormatYUV411P:
		return 2, 0
	case PixelFormatYUV422P, PixelFormatYUV422P10:
		return 1, 0
	default:
		return 0, 0
	}
}

// Picture is one decoded planar frame. Strides are in bytes and may exceed
// the visible line width.
type Picture struct {
	Format  PixelFormat
	Width   int
	Height  int
	Planes  [3][]byte
	Strides [3]int
}

// Decoder decodes one coded frame at a time. A decoder is used by a single
// goroutine at a time.
type Decoder interface {
	// Decode returns ErrNoPicture when the codec consumed the data without
	// producing a picture.
	Decode(data []byte) (*Picture, error)
	Close() error
}

// Library constructs decoders.
type Library interface {
	Register() error
	NewDecoder(id ID, width, height, threads int) (Decoder, error)
	Name() string
}

var (
	ErrNoPicture     = errors.New("codec: no picture produced")
	ErrPoolExhausted = errors.New("codec: decoder pool limit reached")
	ErrUnsupported   = errors.New("codec: unsupported codec")
)
