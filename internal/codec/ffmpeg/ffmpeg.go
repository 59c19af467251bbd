// Package ffmpeg implements codec.Library on top of libavcodec through go-astiav.
package ffmpeg

import (
	"errors"
	"fmt"
	"sync"

	"github.com/asticode/go-astiav"
	"github.com/zsiec/ingex/internal/codec"
	"github.com/zsiec/ingex/internal/logger"
)

var codecIDs = map[codec.ID]astiav.CodecID{
	codec.IDDV:         astiav.CodecIDDvvideo,
	codec.IDMPEG2Video: astiav.CodecIDMpeg2Video,
	codec.IDMJPEG:      astiav.CodecIDMjpeg,
	codec.IDDNxHD:      astiav.CodecIDDnxhd,
	codec.IDH264:       astiav.CodecIDH264,
}

var pixelFormats = map[astiav.PixelFormat]codec.PixelFormat{
	astiav.PixelFormatYuv420P:     codec.PixelFormatYUV420P,
	astiav.PixelFormatYuvj420P:    codec.PixelFormatYUV420P,
	astiav.PixelFormatYuv411P:     codec.PixelFormatYUV411P,
	astiav.PixelFormatYuv422P:     codec.PixelFormatYUV422P,
	astiav.PixelFormatYuvj422P:    codec.PixelFormatYUV422P,
	astiav.PixelFormatYuv420P10Le: codec.PixelFormatYUV420P10,
	astiav.PixelFormatYuv422P10Le: codec.PixelFormatYUV422P10,
}

// Library decodes with libavcodec.
type Library struct {
	logger logger.Logger
	once   sync.Once
}

func New(log logger.Logger) *Library {
	if log == nil {
		log = logger.Discard
	}
	return &Library{logger: log.WithField("component", "ffmpeg")}
}

func (l *Library) Name() string { return "libavcodec" }

// Register routes libav log output through the application logger. Codecs
// need no explicit registration in current libav versions.
func (l *Library) Register() error {
	l.once.Do(func() {
		astiav.SetLogLevel(astiav.LogLevelError)
		astiav.SetLogCallback(func(_ astiav.Classer, level astiav.LogLevel, format, msg string) {
			if level <= astiav.LogLevelError {
				l.logger.WithField("libav_level", int(level)).Warn(msg)
			}
		})
	})
	return nil
}

// Available reports whether a decoder for every supported codec is compiled in.
func (l *Library) Available() error {
	var missing []error
	for id, cid := range codecIDs {
		if astiav.FindDecoder(cid) == nil {
			missing = append(missing, fmt.Errorf("%s decoder not available", id))
		}
	}
	return errors.Join(missing...)
}

func (l *Library) NewDecoder(id codec.ID, width, height, threads int) (codec.Decoder, error) {
	cid, ok := codecIDs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", codec.ErrUnsupported, id)
	}
	c := astiav.FindDecoder(cid)
	if c == nil {
		return nil, fmt.Errorf("%w: %s decoder not compiled in", codec.ErrUnsupported, id)
	}

	ctx := astiav.AllocCodecContext(c)
	if ctx == nil {
		return nil, fmt.Errorf("failed to allocate %s codec context", id)
	}
	ctx.SetWidth(width)
	ctx.SetHeight(height)
	if threads > 1 {
		ctx.SetThreadCount(threads)
		ctx.SetThreadType(astiav.ThreadTypeFrame | astiav.ThreadTypeSlice)
	}

	if err := ctx.Open(c, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("failed to open %s codec: %w", id, err)
	}

	return &decoder{
		id:    id,
		ctx:   ctx,
		pkt:   astiav.AllocPacket(),
		frame: astiav.AllocFrame(),
	}, nil
}

type decoder struct {
	id    codec.ID
	ctx   *astiav.CodecContext
	pkt   *astiav.Packet
	frame *astiav.Frame
	buf   []byte
}

func (d *decoder) Decode(data []byte) (*codec.Picture, error) {
	if err := d.pkt.FromData(data); err != nil {
		return nil, fmt.Errorf("failed to wrap %s packet: %w", d.id, err)
	}
	defer d.pkt.Unref()

	if err := d.ctx.SendPacket(d.pkt); err != nil {
		return nil, fmt.Errorf("%s decode failed: %w", d.id, err)
	}

	if err := d.ctx.ReceiveFrame(d.frame); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil, codec.ErrNoPicture
		}
		return nil, fmt.Errorf("%s decode failed: %w", d.id, err)
	}
	defer d.frame.Unref()

	return d.picture()
}

// picture copies the frame into a tightly packed buffer owned by the decoder;
// it stays valid until the next Decode.
func (d *decoder) picture() (*codec.Picture, error) {
	format, ok := pixelFormats[d.frame.PixelFormat()]
	if !ok {
		return nil, fmt.Errorf("%s produced unsupported pixel format %s", d.id, d.frame.PixelFormat())
	}

	n, err := d.frame.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("image buffer size: %w", err)
	}
	if cap(d.buf) < n {
		d.buf = make([]byte, n)
	}
	d.buf = d.buf[:n]
	if _, err := d.frame.ImageCopyToBuffer(d.buf, 1); err != nil {
		return nil, fmt.Errorf("image copy: %w", err)
	}

	width, height := d.frame.Width(), d.frame.Height()
	bps := format.BytesPerSample()
	sx, sy := format.ChromaShift()
	cw := (width + (1 << sx) - 1) >> sx
	ch := (height + (1 << sy) - 1) >> sy

	lumaSize := width * bps * height
	chromaSize := cw * bps * ch
	if lumaSize+2*chromaSize > n {
		return nil, fmt.Errorf("image buffer too small: %d < %d", n, lumaSize+2*chromaSize)
	}

	return &codec.Picture{
		Format: format,
		Width:  width,
		Height: height,
		Planes: [3][]byte{
			d.buf[:lumaSize],
			d.buf[lumaSize : lumaSize+chromaSize],
			d.buf[lumaSize+chromaSize : lumaSize+2*chromaSize],
		},
		Strides: [3]int{width * bps, cw * bps, cw * bps},
	}, nil
}

func (d *decoder) Close() error {
	d.frame.Free()
	d.pkt.Free()
	d.ctx.Free()
	return nil
}
