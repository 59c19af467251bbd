package source

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/media"
)

// recorder is a FrameListener that owns one buffer per stream.
type recorder struct {
	reject   map[int]bool
	buffers  map[int][]byte
	received map[int][][]byte
	consts   map[int]int
	deallocs int
}

func newRecorder() *recorder {
	return &recorder{
		reject:   make(map[int]bool),
		buffers:  make(map[int][]byte),
		received: make(map[int][][]byte),
		consts:   make(map[int]int),
	}
}

func (r *recorder) AcceptFrame(id int, _ *media.FrameInfo) bool { return !r.reject[id] }

func (r *recorder) AllocateBuffer(id int, size int) ([]byte, error) {
	r.buffers[id] = make([]byte, size)
	return r.buffers[id], nil
}

func (r *recorder) DeallocateBuffer(int, []byte) { r.deallocs++ }

func (r *recorder) ReceiveFrame(id int, buf []byte) error {
	if len(buf) > 0 && &buf[0] != &r.buffers[id][0] {
		return errors.New("foreign buffer")
	}
	r.received[id] = append(r.received[id], append([]byte(nil), buf...))
	return nil
}

func (r *recorder) ReceiveFrameConst(id int, data []byte) error {
	r.consts[id]++
	r.received[id] = append(r.received[id], append([]byte(nil), data...))
	return nil
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "essence.raw")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func uyvy(w, h int) *media.StreamInfo {
	return &media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatUYVY, Width: w, Height: h, FrameRate: media.FrameRatePAL}
}

func TestRawFileFixedFraming(t *testing.T) {
	frameSize := 4 * 2 * 2
	data := make([]byte, 3*frameSize)
	for i := range data {
		data[i] = byte(i / frameSize)
	}
	src, err := OpenRawFile(writeFile(t, data), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	rec := newRecorder()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		frame, err := src.ReadFrame(ctx, rec)
		require.NoError(t, err)
		assert.Equal(t, int64(i), frame.Position)
		assert.Equal(t, int64(i*frameSize), frame.ReadPosition)
		assert.Equal(t, media.FrameRatePAL, frame.FrameRate)
	}
	_, err = src.ReadFrame(ctx, rec)
	assert.Equal(t, io.EOF, err)

	require.Len(t, rec.received[0], 3)
	assert.Equal(t, bytes.Repeat([]byte{2}, frameSize), rec.received[0][2])
}

func TestRawFileTruncatedFrameEndsEssence(t *testing.T) {
	src, err := OpenRawFile(writeFile(t, make([]byte, 20)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	rec := newRecorder()
	_, err = src.ReadFrame(context.Background(), rec)
	require.NoError(t, err)
	_, err = src.ReadFrame(context.Background(), rec)
	assert.Equal(t, io.EOF, err)
	assert.Len(t, rec.received[0], 1)
	assert.Equal(t, 1, rec.deallocs)
}

func TestRawFileLengthPrefixed(t *testing.T) {
	var buf bytes.Buffer
	frames := [][]byte{{1, 2, 3}, bytes.Repeat([]byte{9}, 1000), {}}
	for _, f := range frames {
		require.NoError(t, WriteFrame(&buf, f))
	}
	info := &media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatDNxHD, Width: 1920, Height: 1080}

	src, err := OpenRawFile(writeFile(t, buf.Bytes()), info, FramingLengthPrefixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	rec := newRecorder()
	var positions []int64
	for {
		frame, err := src.ReadFrame(context.Background(), rec)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		positions = append(positions, frame.ReadPosition)
	}

	assert.Equal(t, []int64{0, 7, 1011}, positions)
	require.Len(t, rec.received[0], 3)
	assert.Equal(t, frames[0], rec.received[0][0])
	assert.Equal(t, frames[1], rec.received[0][1])
	assert.Empty(t, rec.received[0][2])
}

func TestRawFileCorruptLength(t *testing.T) {
	src, err := OpenRawFile(writeFile(t, []byte{0xFF, 0xFF, 0xFF, 0xFF, 0}), uyvy(4, 2), FramingLengthPrefixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.ReadFrame(context.Background(), newRecorder())
	assert.True(t, errors.Is(err, ErrCorruptFrame))
}

func TestRawFileDisabledStreamIsSkipped(t *testing.T) {
	src, err := OpenRawFile(writeFile(t, make([]byte, 32)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	src.DisableStream(0)
	assert.True(t, src.IsDisabled(0))

	rec := newRecorder()
	frame, err := src.ReadFrame(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(0), frame.Position)
	assert.Empty(t, rec.received)

	frame, err = src.ReadFrame(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(16), frame.ReadPosition)
}

func TestRawFileRejectedFrameIsConsumed(t *testing.T) {
	src, err := OpenRawFile(writeFile(t, make([]byte, 32)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	rec := newRecorder()
	rec.reject[0] = true
	_, err = src.ReadFrame(context.Background(), rec)
	require.NoError(t, err)

	rec.reject[0] = false
	_, err = src.ReadFrame(context.Background(), rec)
	require.NoError(t, err)
	assert.Len(t, rec.received[0], 1)
}

func TestRawFileHonoursContext(t *testing.T) {
	src, err := OpenRawFile(writeFile(t, make([]byte, 32)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.ReadFrame(ctx, newRecorder())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenRawFileNeedsFrameSize(t *testing.T) {
	info := &media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatAVCI100_1080, Width: 1920, Height: 1080}
	_, err := OpenRawFile(writeFile(t, nil), info, FramingFixed, 0, nil)
	assert.Error(t, err)

	_, err = OpenRawFile(filepath.Join(t.TempDir(), "missing"), uyvy(4, 2), FramingFixed, 0, nil)
	assert.Error(t, err)
}

func TestFixedFrameSize(t *testing.T) {
	tests := []struct {
		format media.Format
		w, h   int
		rate   media.Rational
		want   int
	}{
		{media.FormatDV25YUV420, 720, 576, media.FrameRatePAL, 144000},
		{media.FormatDV25YUV411, 720, 480, media.FrameRateNTSC, 120000},
		{media.FormatDV50, 720, 576, media.FrameRatePAL, 288000},
		{media.FormatDV50, 720, 480, media.FrameRateNTSC, 240000},
		{media.FormatDV100_1080i, 1920, 1080, media.FrameRatePAL, 576000},
		{media.FormatDV100_1080i, 1920, 1080, media.FrameRateNTSC, 480000},
		{media.FormatDV100_720p, 1280, 720, media.Rational{Num: 50, Den: 1}, 288000},
		{media.FormatUYVY, 720, 576, media.FrameRatePAL, 720 * 576 * 2},
		{media.FormatYUV420_10Bit, 16, 16, media.FrameRatePAL, 16 * 16 * 3},
		{media.FormatDNxHD, 1920, 1080, media.FrameRatePAL, 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			info := &media.StreamInfo{Format: tt.format, Width: tt.w, Height: tt.h, FrameRate: tt.rate}
			assert.Equal(t, tt.want, FixedFrameSize(info))
		})
	}
}

func TestBlankSource(t *testing.T) {
	b := NewBlank()
	info, ok := b.StreamInfo(0)
	require.True(t, ok)
	assert.True(t, info.IsBlank())

	b.FinaliseBlank(&media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatDV50, Width: 8, Height: 2, FrameRate: media.FrameRatePAL, AspectRatio: media.Aspect16x9})
	info, _ = b.StreamInfo(0)
	assert.Equal(t, media.FormatUYVY, info.Format)
	assert.Equal(t, 8, info.Width)
	assert.Equal(t, media.Aspect16x9, info.AspectRatio)

	// finalising twice keeps the first geometry
	b.FinaliseBlank(media.DefaultPictureInfo())
	info, _ = b.StreamInfo(0)
	assert.Equal(t, 8, info.Width)

	rec := newRecorder()
	frame, err := b.ReadFrame(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, int64(0), frame.Position)
	require.Len(t, rec.received[0], 1)
	assert.Equal(t, 1, rec.consts[0])
	assert.Equal(t, []byte{0x80, 0x10, 0x80, 0x10}, rec.received[0][0][:4])
	assert.Len(t, rec.received[0][0], 8*2*2)
}

func TestBlankSourceDefaultsWhenUnfinalised(t *testing.T) {
	b := NewBlank()
	rec := newRecorder()
	_, err := b.ReadFrame(context.Background(), rec)
	require.NoError(t, err)

	info, _ := b.StreamInfo(0)
	assert.Equal(t, 720, info.Width)
	assert.Equal(t, 576, info.Height)
	assert.Len(t, rec.received[0][0], 720*576*2)
}

func TestMultiSource(t *testing.T) {
	a, err := OpenRawFile(writeFile(t, make([]byte, 32)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)
	blank := NewBlank()
	c, err := OpenRawFile(writeFile(t, bytes.Repeat([]byte{7}, 48)), uyvy(4, 2), FramingFixed, 0, nil)
	require.NoError(t, err)

	m := NewMulti(a, blank, c)
	defer m.Close()

	assert.Equal(t, 3, m.NumStreams())
	info, ok := m.StreamInfo(1)
	require.True(t, ok)
	assert.True(t, info.IsBlank())
	_, ok = m.StreamInfo(3)
	assert.False(t, ok)

	m.FinaliseBlank(uyvy(4, 2))
	info, _ = m.StreamInfo(1)
	assert.Equal(t, media.FormatUYVY, info.Format)

	m.DisableStream(1)
	assert.True(t, blank.IsDisabled(0))
	assert.True(t, m.IsDisabled(1))

	rec := newRecorder()
	for i := 0; i < 2; i++ {
		_, err := m.ReadFrame(context.Background(), rec)
		require.NoError(t, err)
	}
	_, err = m.ReadFrame(context.Background(), rec)
	assert.Equal(t, io.EOF, err)

	assert.Len(t, rec.received[0], 2)
	assert.Empty(t, rec.received[1])
	require.Len(t, rec.received[2], 2)
	assert.Equal(t, bytes.Repeat([]byte{7}, 16), rec.received[2][0])
}

func TestMultiSourceAllDisabled(t *testing.T) {
	m := NewMulti(NewBlank())
	m.DisableStream(0)
	_, err := m.ReadFrame(context.Background(), newRecorder())
	assert.ErrorIs(t, err, ErrNoActiveStreams)
}

func TestNewFromConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte{1, 2, 3}))
	path := writeFile(t, buf.Bytes())

	cfg := &config.SourceConfig{
		Streams: []config.StreamSourceConfig{{
			Path:      path,
			Format:    "dnxhd",
			Width:     1920,
			Height:    1080,
			FrameRate: "30000/1001",
			Aspect:    "16/9",
			Framing:   "length_prefixed",
		}},
		Blank: true,
	}

	src, err := New(cfg, nil)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, 2, src.NumStreams())
	info, ok := src.StreamInfo(0)
	require.True(t, ok)
	assert.Equal(t, media.FormatDNxHD, info.Format)
	assert.Equal(t, media.StreamTypePicture, info.Type)
	assert.Equal(t, media.FrameRateNTSC, info.FrameRate)
	assert.Equal(t, media.Aspect16x9, info.AspectRatio)

	blank, _ := src.StreamInfo(1)
	assert.True(t, blank.IsBlank())

	cfg.Streams[0].Framing = "chunked"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}

func TestStreamInfoFromConfigSound(t *testing.T) {
	info, err := StreamInfoFromConfig(&config.StreamSourceConfig{Path: "a.pcm", Format: "PCM"})
	require.NoError(t, err)
	assert.Equal(t, media.StreamTypeSound, info.Type)
}
