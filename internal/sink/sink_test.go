package sink

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/media"
)

func uyvy(w, h int) *media.StreamInfo {
	return &media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatUYVY, Width: w, Height: h}
}

func TestMemoryRegistration(t *testing.T) {
	m := NewMemory([]media.Format{media.FormatUYVY, media.FormatPCM}, 2)

	assert.True(t, m.AcceptStream(uyvy(720, 576)))
	assert.False(t, m.AcceptStream(&media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatYUV420}))
	assert.False(t, m.AcceptStream(nil))

	require.NoError(t, m.RegisterStream(0, uyvy(720, 576)))
	assert.True(t, errors.Is(m.RegisterStream(0, uyvy(720, 576)), ErrDuplicate))
	assert.True(t, errors.Is(m.RegisterStream(5, &media.StreamInfo{Format: media.FormatDV50}), ErrRejected))
	require.NoError(t, m.RegisterStream(1, uyvy(720, 576)))
	assert.True(t, errors.Is(m.RegisterStream(2, uyvy(720, 576)), ErrStreamLimit))

	assert.Len(t, m.Streams(), 2)
	assert.True(t, m.AcceptStreamFrame(1, nil))
	assert.False(t, m.AcceptStreamFrame(3, nil))
}

func TestMemoryCompleteAndCancel(t *testing.T) {
	m := NewMemory([]media.Format{media.FormatUYVY}, 0)
	require.NoError(t, m.RegisterStream(0, uyvy(4, 2)))

	buf, err := m.GetStreamBuffer(0, 16)
	require.NoError(t, err)
	buf[0] = 0xAB
	require.NoError(t, m.ReceiveStreamFrame(0, buf))
	require.NoError(t, m.CompleteFrame(&media.FrameInfo{Position: 0}))

	buf, err = m.GetStreamBuffer(0, 16)
	require.NoError(t, err)
	buf[0] = 0xCD
	require.NoError(t, m.ReceiveStreamFrame(0, buf))
	m.CancelFrame()

	frames := m.Frames(0)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0xAB), frames[0][0], "completed frame is a copy")
	assert.Equal(t, 2, m.Receives(0))
	assert.Equal(t, 1, m.Cancelled())

	st := m.Stats()
	assert.Equal(t, int64(1), st.Completed)
	assert.Equal(t, int64(1), st.Cancelled)
	assert.Equal(t, int64(16), st.Bytes)

	_, err = m.GetStreamBuffer(9, 16)
	assert.True(t, errors.Is(err, ErrUnregistered))
}

func TestRawFileWritesCompletedFramesOnly(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRawFile(dir, []media.Format{media.FormatUYVY}, 0, nil)
	require.NoError(t, err)

	info := uyvy(2, 2)
	require.NoError(t, s.RegisterStream(3, info))

	for i, keep := range []bool{true, false, true} {
		buf, err := s.GetStreamBuffer(3, 8)
		require.NoError(t, err)
		for j := range buf {
			buf[j] = byte(i)
		}
		require.NoError(t, s.ReceiveStreamFrame(3, buf))
		if keep {
			require.NoError(t, s.CompleteFrame(nil))
		} else {
			s.CancelFrame()
		}
	}
	require.NoError(t, s.Close())

	data, err := os.ReadFile(s.Path(3, info))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 0, 2, 2, 2, 2, 2, 2, 2, 2}, data)
	assert.Equal(t, int64(2), s.Stats().Completed)
}

func TestNewFromConfig(t *testing.T) {
	s, err := New(&config.SinkConfig{Type: "memory", Accept: []string{"uyvy", "YUV422"}}, nil)
	require.NoError(t, err)
	assert.True(t, s.AcceptStream(&media.StreamInfo{Format: media.FormatYUV422}))

	_, err = New(&config.SinkConfig{Type: "raw", Dir: t.TempDir(), Accept: []string{"UYVY"}}, nil)
	require.NoError(t, err)

	_, err = New(&config.SinkConfig{Type: "sdi", Accept: []string{"UYVY"}}, nil)
	assert.Error(t, err)
	_, err = New(&config.SinkConfig{Type: "memory", Accept: []string{"VP9"}}, nil)
	assert.Error(t, err)
}

func TestBufferPoolReuse(t *testing.T) {
	bp := NewBufferPool(2, nil)

	a := bp.Get(1, 100)
	b := bp.Get(1, 50)
	assert.Len(t, b, 50)
	assert.Equal(t, &a[0], &b[0], "smaller request reuses the buffer")

	bp.Put(1)
	st := bp.Stats()
	assert.Equal(t, 0, st.ActiveBuffers)
	assert.Equal(t, 1, st.FreeBuffers)

	c := bp.Get(2, 80)
	assert.Equal(t, &a[0], &c[0], "free list buffer handed to a new stream")
	bp.Put(42)
}

func TestBufferPoolConcurrentStreams(t *testing.T) {
	bp := NewBufferPool(4, nil)
	var wg sync.WaitGroup
	for id := 0; id < 8; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				buf := bp.Get(id, 64+i)
				buf[0] = byte(id)
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 8, bp.Stats().ActiveBuffers)
}
