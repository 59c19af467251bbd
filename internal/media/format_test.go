package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSize(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		width  int
		height int
		want   int
	}{
		{"uyvy pal", FormatUYVY, 720, 576, 720 * 576 * 2},
		{"yuv422 hd", FormatYUV422, 1920, 1080, 1920 * 1080 * 2},
		{"yuv420 pal", FormatYUV420, 720, 576, 720 * 576 * 3 / 2},
		{"yuv411 ntsc", FormatYUV411, 720, 480, 720 * 480 * 3 / 2},
		{"yuv422 10 bit hd", FormatYUV422_10Bit, 1920, 1080, 1920 * 1080 * 2 * 2},
		{"yuv420 10 bit", FormatYUV420_10Bit, 1440, 1080, 1440 * 1080 * 3},
		{"coded has no raw size", FormatDV50, 720, 576, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FrameSize(tt.format, tt.width, tt.height))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("avci100_1080")
	require.NoError(t, err)
	assert.Equal(t, FormatAVCI100_1080, f)

	f, err = ParseFormat(" UYVY ")
	require.NoError(t, err)
	assert.Equal(t, FormatUYVY, f)

	_, err = ParseFormat("h265")
	assert.Error(t, err)

	for format, name := range formatNames {
		parsed, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, format, parsed)
	}
}

func TestFormatClassification(t *testing.T) {
	assert.True(t, FormatYUV420.IsRawPicture())
	assert.False(t, FormatDV25YUV420.IsRawPicture())
	assert.True(t, FormatDV100_720p.IsDV())
	assert.False(t, FormatD10.IsDV())
	assert.True(t, FormatAVCI50_720.IsAVCIntra())
	assert.True(t, FormatYUV420_10Bit.Is10Bit())
	assert.False(t, FormatUYVY.Is10Bit())
}

func TestStreamInfoCloneIsIndependent(t *testing.T) {
	info := DefaultPictureInfo()
	c := info.Clone()
	c.Width = 1920
	assert.Equal(t, 720, info.Width)
	assert.False(t, info.IsBlank())

	blank := &StreamInfo{Type: StreamTypePicture, Format: FormatBlank}
	assert.True(t, blank.IsBlank())
}
