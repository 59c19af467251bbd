package media

import "fmt"

// StreamType is the kind of elementary stream.
type StreamType int

const (
	StreamTypeUnknown StreamType = iota
	StreamTypePicture
	StreamTypeSound
	StreamTypeTimecode
)

// String returns the stream type name.
func (t StreamType) String() string {
	switch t {
	case StreamTypePicture:
		return "picture"
	case StreamTypeSound:
		return "sound"
	case StreamTypeTimecode:
		return "timecode"
	default:
		return "unknown"
	}
}

// Rational is a numerator/denominator pair used for frame rates and aspect ratios.
type Rational struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

// Float returns the rational as a float, or 0 when the denominator is zero.
func (r Rational) Float() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// IsZero reports whether the rational is unset.
func (r Rational) IsZero() bool {
	return r.Num == 0 || r.Den == 0
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Common rationals
var (
	FrameRatePAL    = Rational{Num: 25, Den: 1}
	FrameRateNTSC   = Rational{Num: 30000, Den: 1001}
	Aspect4x3       = Rational{Num: 4, Den: 3}
	Aspect16x9      = Rational{Num: 16, Den: 9}
	SampleAspect1x1 = Rational{Num: 1, Den: 1}
)

// StreamInfo describes one elementary stream. It is treated as immutable once
// negotiated; connectors that decode into another format produce a modified copy.
type StreamInfo struct {
	Type   StreamType `json:"type"`
	Format Format     `json:"format"`

	// Picture
	Width        int      `json:"width,omitempty"`
	Height       int      `json:"height,omitempty"`
	FrameRate    Rational `json:"frame_rate"`
	AspectRatio  Rational `json:"aspect_ratio"`
	SampleAspect Rational `json:"sample_aspect,omitempty"`

	// Sound
	SampleRate    Rational `json:"sample_rate,omitempty"`
	Channels      int      `json:"channels,omitempty"`
	BitsPerSample int      `json:"bits_per_sample,omitempty"`

	// Source-level identification (clip, track number)
	Name string `json:"name,omitempty"`
}

// Clone returns a copy of the stream info.
func (s *StreamInfo) Clone() *StreamInfo {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// IsBlank reports whether the stream is an unfinalised placeholder picture stream.
func (s *StreamInfo) IsBlank() bool {
	return s.Type == StreamTypePicture && s.Format == FormatBlank
}

// String renders a short description for logs.
func (s *StreamInfo) String() string {
	switch s.Type {
	case StreamTypePicture:
		return fmt.Sprintf("picture %s %dx%d @%s", s.Format, s.Width, s.Height, s.FrameRate)
	case StreamTypeSound:
		return fmt.Sprintf("sound %s %s Hz x%d", s.Format, s.SampleRate, s.Channels)
	default:
		return fmt.Sprintf("%s %s", s.Type, s.Format)
	}
}

// DefaultPictureInfo returns the PAL UYVY 4:3 defaults used to finalise blank
// streams when no real picture stream is available.
func DefaultPictureInfo() *StreamInfo {
	return &StreamInfo{
		Type:         StreamTypePicture,
		Format:       FormatUYVY,
		Width:        720,
		Height:       576,
		FrameRate:    FrameRatePAL,
		AspectRatio:  Aspect4x3,
		SampleAspect: Rational{Num: 59, Den: 54},
	}
}

// FrameInfo carries per-frame metadata passed alongside frame callbacks.
type FrameInfo struct {
	Position     int64    `json:"position"`
	FrameRate    Rational `json:"frame_rate"`
	IsRepeat     bool     `json:"is_repeat,omitempty"`
	Timecode     string   `json:"timecode,omitempty"`
	ReadPosition int64    `json:"read_position"`
}
