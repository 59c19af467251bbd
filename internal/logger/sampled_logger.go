package logger

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Per-frame log categories of the decode pipeline.
const (
	CategoryDecode      = "decode"
	CategoryReformat    = "reformat"
	CategoryWorker      = "worker"
	CategoryNegotiation = "negotiation"
	CategorySync        = "sync"
	CategoryRead        = "read"
	CategorySink        = "sink"
)

// SampledLogger throttles high-frequency categories. Messages in a category
// without a sampler, and all errors, are always logged.
type SampledLogger struct {
	base     Logger
	mu       *sync.RWMutex
	samplers map[string]*sampler
}

type sampler struct {
	window     time.Duration
	burst      int64
	sampleRate float64

	windowStart atomic.Int64
	inWindow    atomic.Int64
	skipped     atomic.Int64

	total   atomic.Int64
	logged  atomic.Int64
	dropped atomic.Int64
}

// SamplerStats holds counters for one category.
type SamplerStats struct {
	Name    string  `json:"name"`
	Total   int64   `json:"total"`
	Logged  int64   `json:"logged"`
	Dropped int64   `json:"dropped"`
	Rate    float64 `json:"rate"`
}

func NewSampledLogger(base Logger) *SampledLogger {
	return &SampledLogger{
		base:     base,
		mu:       &sync.RWMutex{},
		samplers: make(map[string]*sampler),
	}
}

// WithSampler lets burst messages through per window, then one in
// 1/sampleRate until the window rolls over.
func (s *SampledLogger) WithSampler(category string, window time.Duration, burst int, sampleRate float64) *SampledLogger {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samplers[category] = &sampler{window: window, burst: int64(burst), sampleRate: sampleRate}
	return s
}

// NewDecodeLogger returns a sampled logger tuned for per-frame pipeline events.
func NewDecodeLogger(base Logger) *SampledLogger {
	return NewSampledLogger(base).
		WithSampler(CategoryDecode, 100*time.Millisecond, 5, 0.1).
		WithSampler(CategoryReformat, 200*time.Millisecond, 3, 0.1).
		WithSampler(CategoryWorker, 200*time.Millisecond, 3, 0.2).
		WithSampler(CategoryRead, 100*time.Millisecond, 5, 0.05).
		WithSampler(CategorySink, 500*time.Millisecond, 3, 0.5).
		WithSampler(CategorySync, time.Second, 2, 1.0)
	// negotiation happens once per stream; never sampled
}

func (s *SampledLogger) allow(category string) bool {
	s.mu.RLock()
	sm, ok := s.samplers[category]
	s.mu.RUnlock()
	if !ok {
		return true
	}

	sm.total.Add(1)
	now := time.Now().UnixNano()
	start := sm.windowStart.Load()
	if now-start >= sm.window.Nanoseconds() && sm.windowStart.CompareAndSwap(start, now) {
		sm.inWindow.Store(0)
		sm.skipped.Store(0)
	}

	if sm.inWindow.Add(1) <= sm.burst {
		sm.logged.Add(1)
		return true
	}

	if sm.sampleRate > 0 {
		n := sm.skipped.Add(1)
		if float64(n)*sm.sampleRate >= 1.0 {
			sm.skipped.Store(0)
			sm.logged.Add(1)
			return true
		}
	}

	sm.dropped.Add(1)
	return false
}

func (s *SampledLogger) logCategory(level logrus.Level, category, msg string, fields map[string]interface{}) {
	if level > logrus.ErrorLevel && !s.allow(category) {
		return
	}
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["category"] = category
	s.base.WithFields(out).Log(level, msg)
}

func (s *SampledLogger) DebugWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.DebugLevel, category, msg, fields)
}

func (s *SampledLogger) InfoWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.InfoLevel, category, msg, fields)
}

func (s *SampledLogger) WarnWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.WarnLevel, category, msg, fields)
}

func (s *SampledLogger) ErrorWithCategory(category, msg string, fields map[string]interface{}) {
	s.logCategory(logrus.ErrorLevel, category, msg, fields)
}

// Stats returns a snapshot of every configured category.
func (s *SampledLogger) Stats() map[string]SamplerStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]SamplerStats, len(s.samplers))
	for name, sm := range s.samplers {
		st := SamplerStats{
			Name:    name,
			Total:   sm.total.Load(),
			Logged:  sm.logged.Load(),
			Dropped: sm.dropped.Load(),
		}
		if st.Total > 0 {
			st.Rate = float64(st.Logged) / float64(st.Total)
		}
		stats[name] = st
	}
	return stats
}

func (s *SampledLogger) derive(base Logger) *SampledLogger {
	return &SampledLogger{base: base, mu: s.mu, samplers: s.samplers}
}

func (s *SampledLogger) WithFields(fields map[string]interface{}) Logger {
	return s.derive(s.base.WithFields(fields))
}

func (s *SampledLogger) WithField(key string, value interface{}) Logger {
	return s.derive(s.base.WithField(key, value))
}

func (s *SampledLogger) WithError(err error) Logger {
	return s.derive(s.base.WithError(err))
}

func (s *SampledLogger) Debug(args ...interface{})                   { s.base.Debug(args...) }
func (s *SampledLogger) Info(args ...interface{})                    { s.base.Info(args...) }
func (s *SampledLogger) Warn(args ...interface{})                    { s.base.Warn(args...) }
func (s *SampledLogger) Error(args ...interface{})                   { s.base.Error(args...) }
func (s *SampledLogger) Log(level logrus.Level, args ...interface{}) { s.base.Log(level, args...) }
func (s *SampledLogger) Debugf(format string, args ...interface{})   { s.base.Debugf(format, args...) }
func (s *SampledLogger) Infof(format string, args ...interface{})    { s.base.Infof(format, args...) }
func (s *SampledLogger) Warnf(format string, args ...interface{})    { s.base.Warnf(format, args...) }
func (s *SampledLogger) Errorf(format string, args ...interface{})   { s.base.Errorf(format, args...) }
