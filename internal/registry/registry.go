// Package registry publishes player sessions so status tooling can find them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/connect"
	"github.com/zsiec/ingex/internal/logger"
)

var (
	// ErrSessionNotFound is returned when a session is not in the registry
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when registering an ID twice
	ErrSessionExists = errors.New("session already registered")
)

// SessionStatus is the lifecycle state of a player session.
type SessionStatus string

const (
	StatusStarting SessionStatus = "starting"
	StatusRunning  SessionStatus = "running"
	StatusFinished SessionStatus = "finished"
	StatusFailed   SessionStatus = "failed"
)

// SessionStats are the frame counters of a session.
type SessionStats struct {
	FramesRead      int64 `json:"frames_read"`
	FramesCompleted int64 `json:"frames_completed"`
	FramesCancelled int64 `json:"frames_cancelled"`
	DecodeErrors    int64 `json:"decode_errors"`
	Violations      int64 `json:"violations"`
}

// Session is one run of the player.
type Session struct {
	ID            string               `json:"id"`
	Status        SessionStatus        `json:"status"`
	Source        string               `json:"source"`
	Sink          string               `json:"sink"`
	Connections   []connect.Connection `json:"connections"`
	Stats         SessionStats         `json:"stats"`
	Error         string               `json:"error,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
	LastHeartbeat time.Time            `json:"last_heartbeat"`
}

// NewSessionID returns a fresh session ID.
func NewSessionID() string {
	return uuid.New().String()
}

// Registry stores sessions.
type Registry interface {
	// Register adds a session; registering an existing ID refreshes it
	Register(ctx context.Context, s *Session) error
	Unregister(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]*Session, error)
	UpdateHeartbeat(ctx context.Context, id string) error
	UpdateStatus(ctx context.Context, id string, status SessionStatus, reason string) error
	UpdateStats(ctx context.Context, id string, stats SessionStats) error
	Close() error
}

// New returns a Redis registry when Redis is enabled, an in-memory one otherwise.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (Registry, error) {
	if !cfg.Redis.Enabled {
		return NewMemoryRegistry(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addresses[0],
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis for registry: %w", err)
	}
	return NewRedisRegistry(client, log, cfg.Registry.TTL, cfg.Registry.KeyPrefix), nil
}
