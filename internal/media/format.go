package media

import (
	"fmt"
	"strings"
)

// Format identifies the essence format of a stream.
type Format int

const (
	FormatUnknown Format = iota
	// FormatBlank marks a placeholder picture stream whose geometry is not yet known.
	FormatBlank

	// Raw picture formats
	FormatUYVY
	FormatYUV422
	FormatYUV420
	FormatYUV411
	FormatYUV422_10Bit
	FormatYUV420_10Bit

	// Coded picture formats
	FormatDV25YUV420
	FormatDV25YUV411
	FormatDV50
	FormatDV100_1080i
	FormatDV100_720p
	FormatD10
	FormatMPEG2IFrame422
	FormatAvidMJPEG
	FormatDNxHD
	FormatAVCI100_1080
	FormatAVCI100_720
	FormatAVCI50_1080
	FormatAVCI50_720

	FormatPCM
	FormatTimecode
)

var formatNames = map[Format]string{
	FormatUnknown:        "UNKNOWN",
	FormatBlank:          "BLANK",
	FormatUYVY:           "UYVY",
	FormatYUV422:         "YUV422",
	FormatYUV420:         "YUV420",
	FormatYUV411:         "YUV411",
	FormatYUV422_10Bit:   "YUV422_10BIT",
	FormatYUV420_10Bit:   "YUV420_10BIT",
	FormatDV25YUV420:     "DV25_YUV420",
	FormatDV25YUV411:     "DV25_YUV411",
	FormatDV50:           "DV50",
	FormatDV100_1080i:    "DV100_1080I",
	FormatDV100_720p:     "DV100_720P",
	FormatD10:            "D10",
	FormatMPEG2IFrame422: "MPEG2_IFRAME_422",
	FormatAvidMJPEG:      "AVID_MJPEG",
	FormatDNxHD:          "DNXHD",
	FormatAVCI100_1080:   "AVCI100_1080",
	FormatAVCI100_720:    "AVCI100_720",
	FormatAVCI50_1080:    "AVCI50_1080",
	FormatAVCI50_720:     "AVCI50_720",
	FormatPCM:            "PCM",
	FormatTimecode:       "TIMECODE",
}

// String returns the configuration name of the format.
func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("FORMAT(%d)", int(f))
}

// ParseFormat resolves a configuration name (case-insensitive) to a Format.
func ParseFormat(name string) (Format, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == upper {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("unknown format: %q", name)
}

// IsRawPicture reports whether the format is an uncompressed picture layout.
func (f Format) IsRawPicture() bool {
	switch f {
	case FormatUYVY, FormatYUV422, FormatYUV420, FormatYUV411, FormatYUV422_10Bit, FormatYUV420_10Bit:
		return true
	}
	return false
}

// IsDV reports whether the format is one of the DV family formats.
func (f Format) IsDV() bool {
	switch f {
	case FormatDV25YUV420, FormatDV25YUV411, FormatDV50, FormatDV100_1080i, FormatDV100_720p:
		return true
	}
	return false
}

// IsAVCIntra reports whether the format is an AVC-Intra format.
func (f Format) IsAVCIntra() bool {
	switch f {
	case FormatAVCI100_1080, FormatAVCI100_720, FormatAVCI50_1080, FormatAVCI50_720:
		return true
	}
	return false
}

// Is10Bit reports whether the raw format stores 16-bit containers for 10-bit samples.
func (f Format) Is10Bit() bool {
	return f == FormatYUV422_10Bit || f == FormatYUV420_10Bit
}

// FrameSize returns the size in bytes of one raw picture of the given geometry, or 0
// for formats without a fixed raw layout.
func FrameSize(f Format, width, height int) int {
	switch f {
	case FormatUYVY, FormatYUV422:
		return width * height * 2
	case FormatYUV420, FormatYUV411:
		return width * height * 3 / 2
	case FormatYUV422_10Bit:
		return width * height * 2 * 2
	case FormatYUV420_10Bit:
		return width * height * 3 / 2 * 2
	}
	return 0
}
