package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/zsiec/ingex/internal/media"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Redis.Validate(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Player.Validate(); err != nil {
		return fmt.Errorf("player config: %w", err)
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source config: %w", err)
	}

	if err := c.Sink.Validate(); err != nil {
		return fmt.Errorf("sink config: %w", err)
	}

	if c.Redis.Enabled && c.Registry.TTL <= 0 {
		return fmt.Errorf("registry config: ttl must be positive")
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if !s.Enabled {
		return nil
	}

	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if s.EnableHTTP3 {
		if s.HTTP3Port < 1 || s.HTTP3Port > 65535 {
			return fmt.Errorf("invalid HTTP3 port: %d", s.HTTP3Port)
		}

		if s.TLSCertFile == "" {
			return fmt.Errorf("TLS certificate file is required for HTTP/3")
		}

		if s.TLSKeyFile == "" {
			return fmt.Errorf("TLS key file is required for HTTP/3")
		}

		if _, err := os.Stat(s.TLSCertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", s.TLSCertFile)
		}

		if _, err := os.Stat(s.TLSKeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", s.TLSKeyFile)
		}
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (p *PlayerConfig) Validate() error {
	if p.FFmpegThreads < 0 {
		return fmt.Errorf("ffmpeg_threads cannot be negative")
	}

	if p.DecoderPoolLimit <= 0 {
		return fmt.Errorf("decoder_pool_limit must be positive")
	}

	if p.MaxFrames < 0 {
		return fmt.Errorf("max_frames cannot be negative")
	}

	return nil
}

func (s *SourceConfig) Validate() error {
	if len(s.Streams) == 0 {
		return fmt.Errorf("at least one source stream is required")
	}

	for i := range s.Streams {
		if err := s.Streams[i].Validate(); err != nil {
			return fmt.Errorf("stream %d: %w", i, err)
		}
	}

	return nil
}

func (s *StreamSourceConfig) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("path is required")
	}

	format, err := media.ParseFormat(s.Format)
	if err != nil {
		return err
	}
	if format == media.FormatBlank || format == media.FormatUnknown {
		return fmt.Errorf("format %s cannot be read from a file", format)
	}

	if format != media.FormatPCM && format != media.FormatTimecode {
		if s.Width <= 0 || s.Height <= 0 {
			return fmt.Errorf("invalid picture geometry %dx%d", s.Width, s.Height)
		}
	}

	if s.FrameRate != "" {
		if _, err := ParseRational(s.FrameRate); err != nil {
			return fmt.Errorf("frame_rate: %w", err)
		}
	}

	if s.Aspect != "" {
		if _, err := ParseRational(s.Aspect); err != nil {
			return fmt.Errorf("aspect: %w", err)
		}
	}

	switch s.Framing {
	case "", "fixed", "length_prefixed":
	default:
		return fmt.Errorf("framing must be 'fixed' or 'length_prefixed'")
	}

	if s.FrameSize < 0 {
		return fmt.Errorf("frame_size cannot be negative")
	}

	return nil
}

func (s *SinkConfig) Validate() error {
	switch s.Type {
	case "raw":
		if s.Dir == "" {
			return fmt.Errorf("dir is required for raw sink")
		}
	case "memory":
	default:
		return fmt.Errorf("sink type must be 'raw' or 'memory'")
	}

	if len(s.Accept) == 0 {
		return fmt.Errorf("sink must accept at least one format")
	}

	for _, name := range s.Accept {
		if _, err := media.ParseFormat(name); err != nil {
			return err
		}
	}

	if s.MaxStreams < 0 {
		return fmt.Errorf("max_streams cannot be negative")
	}

	return nil
}

// ParseRational parses "num/den" or a bare integer.
func ParseRational(value string) (media.Rational, error) {
	parts := strings.SplitN(strings.TrimSpace(value), "/", 2)
	num, err := strconv.Atoi(parts[0])
	if err != nil {
		return media.Rational{}, fmt.Errorf("invalid rational %q", value)
	}
	den := 1
	if len(parts) == 2 {
		den, err = strconv.Atoi(parts[1])
		if err != nil {
			return media.Rational{}, fmt.Errorf("invalid rational %q", value)
		}
	}
	if num <= 0 || den <= 0 {
		return media.Rational{}, fmt.Errorf("rational %q must be positive", value)
	}
	return media.Rational{Num: num, Den: den}, nil
}
