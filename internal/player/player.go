// Package player runs the frame loop: read a frame through the connection
// matrix, sync every connector, then complete or cancel the sink frame.
package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/zsiec/ingex/internal/config"
	apperrors "github.com/zsiec/ingex/internal/errors"
	"github.com/zsiec/ingex/internal/logger"
	"github.com/zsiec/ingex/internal/matrix"
	"github.com/zsiec/ingex/internal/media"
	"github.com/zsiec/ingex/internal/metrics"
	"github.com/zsiec/ingex/internal/registry"
)

// Options tune the frame loop.
type Options struct {
	// Realtime paces reads at the frame rate of the first connected picture stream.
	Realtime bool
	// MaxFrames stops the loop after that many frames; 0 runs to the end of the source.
	MaxFrames int64
	// HeartbeatInterval is how often the session is refreshed in the registry.
	HeartbeatInterval time.Duration
	SourceName        string
	SinkName          string
}

// OptionsFromConfig maps configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Realtime:          cfg.Player.Realtime,
		MaxFrames:         cfg.Player.MaxFrames,
		HeartbeatInterval: cfg.Registry.HeartbeatInterval,
		SinkName:          cfg.Sink.Type,
	}
	if n := len(cfg.Source.Streams); n > 0 {
		opts.SourceName = cfg.Source.Streams[0].Path
		if n > 1 {
			opts.SourceName += fmt.Sprintf(" (+%d)", n-1)
		}
	}
	if cfg.Sink.Dir != "" {
		opts.SinkName += ":" + cfg.Sink.Dir
	}
	return opts
}

// Player owns one session: its source, sink and matrix.
type Player struct {
	id       string
	opts     Options
	src      media.Source
	sink     media.Sink
	matrix   *matrix.Matrix
	registry registry.Registry
	logger   logger.Logger
	frameLog *logger.SampledLogger

	read      atomic.Int64
	completed atomic.Int64
	cancelled atomic.Int64

	mu        sync.RWMutex
	status    registry.SessionStatus
	lastError string
	started   time.Time

	closeOnce sync.Once
}

// New creates a player. reg may be nil.
func New(id string, src media.Source, sink media.Sink, m *matrix.Matrix, reg registry.Registry, opts Options, log logger.Logger) *Player {
	if log == nil {
		log = logger.Discard
	}
	if id == "" {
		id = registry.NewSessionID()
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	l := log.WithFields(map[string]interface{}{
		"component":  "player",
		"session_id": id,
	})
	return &Player{
		id:       id,
		opts:     opts,
		src:      src,
		sink:     sink,
		matrix:   m,
		registry: reg,
		logger:   l,
		frameLog: logger.NewDecodeLogger(l),
		status:   registry.StatusStarting,
	}
}

func (p *Player) ID() string { return p.id }

// Matrix returns the connection matrix the player drives.
func (p *Player) Matrix() *matrix.Matrix { return p.matrix }

// Entries returns each connection with its live counters.
func (p *Player) Entries() []matrix.Entry { return p.matrix.Entries() }

// Run plays until the source ends, the frame limit is reached or ctx is
// cancelled. Cancellation is a clean stop and returns nil.
func (p *Player) Run(ctx context.Context) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	p.setStatus(registry.StatusRunning, "")

	if p.registry != nil {
		if err := p.registry.Register(ctx, p.Session()); err != nil {
			p.logger.WithError(err).Warn("Failed to register session")
		}
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.heartbeat(hbCtx)
	}()

	err := p.loop(ctx)
	stopHeartbeat()
	wg.Wait()

	if err != nil {
		p.setStatus(registry.StatusFailed, err.Error())
		p.logger.WithError(err).Error("Playback failed")
	} else {
		p.setStatus(registry.StatusFinished, "")
	}
	p.publish(context.WithoutCancel(ctx), true)

	stats := p.Stats()
	p.logger.WithFields(map[string]interface{}{
		"frames_read":      stats.FramesRead,
		"frames_completed": stats.FramesCompleted,
		"frames_cancelled": stats.FramesCancelled,
		"decode_errors":    stats.DecodeErrors,
	}).Info("Playback finished")
	return err
}

func (p *Player) loop(ctx context.Context) error {
	limiter := p.limiter()
	listener := p.matrix.Listener()

	for {
		if p.opts.MaxFrames > 0 && p.read.Load() >= p.opts.MaxFrames {
			p.logger.WithField("max_frames", p.opts.MaxFrames).Info("Frame limit reached")
			return nil
		}
		if limiter != nil && !pace(ctx, limiter) {
			p.logger.Info("Playback stopped")
			return nil
		}

		frame, err := p.src.ReadFrame(ctx, listener)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				p.logger.Info("End of source reached")
				return nil
			case ctx.Err() != nil:
				p.logger.Info("Playback stopped")
				// release whatever the connectors started on
				_ = p.matrix.Sync()
				p.sink.CancelFrame()
				return nil
			}
			return apperrors.WrapInternalError(err, fmt.Sprintf("failed to read frame %d", p.read.Load()))
		}
		p.read.Add(1)

		if err := p.matrix.Sync(); err != nil {
			p.sink.CancelFrame()
			p.cancelled.Add(1)
			metrics.IncrementFramesCancelled()
			p.frameLog.WarnWithCategory(logger.CategorySync, "Frame cancelled", map[string]interface{}{
				"position": frame.Position,
				"error":    err.Error(),
			})
			continue
		}

		if err := p.sink.CompleteFrame(frame); err != nil {
			return apperrors.WrapSinkError(err, fmt.Sprintf("failed to complete frame %d", frame.Position))
		}
		p.completed.Add(1)
		metrics.IncrementFramesCompleted()
		p.frameLog.DebugWithCategory(logger.CategorySink, "Frame completed",
			map[string]interface{}{"position": frame.Position})
	}
}

// limiter paces the loop at the first connected picture stream's frame rate.
func (p *Player) limiter() *rate.Limiter {
	if !p.opts.Realtime {
		return nil
	}
	for _, c := range p.matrix.Connections() {
		if c.Source.Type == media.StreamTypePicture && !c.Source.FrameRate.IsZero() {
			fps := c.Source.FrameRate.Float()
			p.logger.WithField("fps", fps).Debug("Real-time pacing enabled")
			return rate.NewLimiter(rate.Limit(fps), 1)
		}
	}
	p.logger.Warn("Real-time pacing requested but no picture stream has a frame rate")
	return nil
}

// pace waits for the next frame slot and reports false if ctx ends first,
// including a deadline that falls between two slots.
func pace(ctx context.Context, l *rate.Limiter) bool {
	r := l.Reserve()
	delay := r.Delay()
	if delay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		r.Cancel()
		return false
	}
}

func (p *Player) heartbeat(ctx context.Context) {
	if p.registry == nil {
		return
	}
	metrics.IncrementGoroutineCreated("session_heartbeat")
	defer metrics.IncrementGoroutineDestroyed("session_heartbeat")

	ticker := time.NewTicker(p.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.publish(ctx, false)
		}
	}
}

// publish pushes stats, and with full the whole session, to the registry.
func (p *Player) publish(ctx context.Context, full bool) {
	if p.registry == nil {
		return
	}
	var err error
	if full {
		err = p.registry.Register(ctx, p.Session())
	} else {
		err = p.registry.UpdateStats(ctx, p.id, p.Stats())
	}
	if err != nil && ctx.Err() == nil {
		p.logger.WithError(err).Warn("Failed to publish session")
	}
}

func (p *Player) setStatus(status registry.SessionStatus, reason string) {
	p.mu.Lock()
	p.status = status
	p.lastError = reason
	p.mu.Unlock()
}

// Stats returns the session counters, decode errors summed over connectors.
func (p *Player) Stats() registry.SessionStats {
	st := registry.SessionStats{
		FramesRead:      p.read.Load(),
		FramesCompleted: p.completed.Load(),
		FramesCancelled: p.cancelled.Load(),
	}
	for _, e := range p.matrix.Entries() {
		st.DecodeErrors += int64(e.Stats.Errors)
		st.Violations += int64(e.Stats.Violations)
	}
	return st
}

// Session describes the player for the registry and the status API.
func (p *Player) Session() *registry.Session {
	p.mu.RLock()
	status, reason, started := p.status, p.lastError, p.started
	p.mu.RUnlock()
	return &registry.Session{
		ID:          p.id,
		Status:      status,
		Source:      p.opts.SourceName,
		Sink:        p.opts.SinkName,
		Connections: p.matrix.Connections(),
		Stats:       p.Stats(),
		Error:       reason,
		CreatedAt:   started,
	}
}

// Status returns the current lifecycle state.
func (p *Player) Status() registry.SessionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Close tears down the matrix, then the source and the sink, and removes the
// session from the registry. It is safe to call more than once.
func (p *Player) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		if err := p.matrix.Close(); err != nil {
			errs = append(errs, fmt.Errorf("matrix: %w", err))
		}
		if err := p.src.Close(); err != nil {
			errs = append(errs, fmt.Errorf("source: %w", err))
		}
		if err := p.sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("sink: %w", err))
		}
		if p.registry != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := p.registry.Unregister(ctx, p.id); err != nil && !errors.Is(err, registry.ErrSessionNotFound) {
				p.logger.WithError(err).Warn("Failed to unregister session")
			}
		}
	})
	return errors.Join(errs...)
}
