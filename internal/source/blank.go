package source

import (
	"context"

	"github.com/zsiec/ingex/internal/media"
)

// Blank is a one-stream source of black UYVY pictures. Its geometry is
// unknown until FinaliseBlank; reading an unfinalised blank source finalises
// it with PAL defaults.
type Blank struct {
	info     media.StreamInfo
	frame    []byte
	position int64
	disabled bool
}

func NewBlank() *Blank {
	return &Blank{info: media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatBlank}}
}

func (b *Blank) NumStreams() int { return 1 }

func (b *Blank) StreamInfo(i int) (*media.StreamInfo, bool) {
	if i != 0 {
		return nil, false
	}
	return &b.info, true
}

func (b *Blank) IsDisabled(i int) bool { return i == 0 && b.disabled }
func (b *Blank) DisableStream(i int)   { b.disabled = b.disabled || i == 0 }

// FinaliseBlank takes the geometry and timing of info; the format is always UYVY.
func (b *Blank) FinaliseBlank(info *media.StreamInfo) {
	if !b.info.IsBlank() || info == nil {
		return
	}
	b.info = media.StreamInfo{
		Type:         media.StreamTypePicture,
		Format:       media.FormatUYVY,
		Width:        info.Width,
		Height:       info.Height,
		FrameRate:    info.FrameRate,
		AspectRatio:  info.AspectRatio,
		SampleAspect: info.SampleAspect,
		Name:         "blank",
	}
	b.frame = BlackUYVY(info.Width, info.Height)
}

func (b *Blank) ReadFrame(ctx context.Context, l media.FrameListener) (*media.FrameInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.info.IsBlank() {
		b.FinaliseBlank(media.DefaultPictureInfo())
	}

	frame := &media.FrameInfo{Position: b.position, FrameRate: b.info.FrameRate, ReadPosition: b.position}
	if !b.disabled && l.AcceptFrame(0, frame) {
		_ = l.ReceiveFrameConst(0, b.frame)
	}
	b.position++
	return frame, nil
}

func (b *Blank) Close() error { return nil }

// BlackUYVY returns one black 8-bit UYVY picture.
func BlackUYVY(width, height int) []byte {
	buf := make([]byte, width*height*2)
	for i := 0; i+3 < len(buf); i += 4 {
		buf[i], buf[i+1], buf[i+2], buf[i+3] = 0x80, 0x10, 0x80, 0x10
	}
	return buf
}
