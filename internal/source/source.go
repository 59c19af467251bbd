// Package source reads essence frames from local files and drives a
// media.FrameListener with them.
package source

import (
	"errors"
	"fmt"

	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/media"
)

// New opens every configured stream file and combines them, plus an optional
// blank picture stream, into one source.
func New(cfg *config.SourceConfig, log logger.Logger) (media.Source, error) {
	if log == nil {
		log = logger.Discard
	}

	members := make([]media.Source, 0, len(cfg.Streams)+1)
	closeAll := func() {
		for _, s := range members {
			_ = s.Close()
		}
	}

	for i := range cfg.Streams {
		sc := &cfg.Streams[i]
		info, err := StreamInfoFromConfig(sc)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
		framing, err := ParseFraming(sc.Framing)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
		s, err := OpenRawFile(sc.Path, info, framing, sc.FrameSize, log)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("stream %d: %w", i, err)
		}
		members = append(members, s)
	}
	if cfg.Blank {
		members = append(members, NewBlank())
	}
	if len(members) == 0 {
		return nil, errors.New("no source streams configured")
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return NewMulti(members...), nil
}

// StreamInfoFromConfig builds the stream description of a configured file.
func StreamInfoFromConfig(sc *config.StreamSourceConfig) (*media.StreamInfo, error) {
	format, err := media.ParseFormat(sc.Format)
	if err != nil {
		return nil, err
	}

	info := &media.StreamInfo{
		Format:      format,
		Width:       sc.Width,
		Height:      sc.Height,
		FrameRate:   media.FrameRatePAL,
		AspectRatio: media.Aspect4x3,
		Name:        sc.Path,
	}
	switch format {
	case media.FormatPCM:
		info.Type = media.StreamTypeSound
	case media.FormatTimecode:
		info.Type = media.StreamTypeTimecode
	default:
		info.Type = media.StreamTypePicture
	}

	if sc.FrameRate != "" {
		if info.FrameRate, err = config.ParseRational(sc.FrameRate); err != nil {
			return nil, err
		}
	}
	if sc.Aspect != "" {
		if info.AspectRatio, err = config.ParseRational(sc.Aspect); err != nil {
			return nil, err
		}
	}
	return info, nil
}
