package source

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize bounds a length-prefixed frame; anything larger is treated as
// a corrupt prefix.
const MaxFrameSize = 16 * 1024 * 1024

var ErrCorruptFrame = errors.New("source: corrupt frame length")

// Framing selects how frames are delimited in a raw essence file.
type Framing int

const (
	// FramingFixed reads frames of one constant size.
	FramingFixed Framing = iota
	// FramingLengthPrefixed reads a 4-byte big-endian length before each frame.
	FramingLengthPrefixed
)

// ParseFraming maps the configuration name to a Framing.
func ParseFraming(name string) (Framing, error) {
	switch name {
	case "", "fixed":
		return FramingFixed, nil
	case "length_prefixed":
		return FramingLengthPrefixed, nil
	}
	return 0, fmt.Errorf("unknown framing %q", name)
}

func (f Framing) String() string {
	if f == FramingLengthPrefixed {
		return "length_prefixed"
	}
	return "fixed"
}

// WriteFrame appends one length-prefixed frame to w.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrCorruptFrame, len(data))
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}
	return nil
}

// readLength reads the next length prefix. A clean end of file yields io.EOF.
func readLength(r io.Reader) (int, error) {
	var length uint32
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, io.EOF
		}
		return 0, err
	}
	if length > MaxFrameSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrCorruptFrame, length)
	}
	return int(length), nil
}
