package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/ingex/internal/config"
	"github.com/zsiec/ingex/internal/connect"
	"github.com/zsiec/ingex/internal/media"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *RedisRegistry) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return mr, client, NewRedisRegistry(client, nil, time.Minute, "")
}

func testSession() *Session {
	return &Session{
		ID:     NewSessionID(),
		Status: StatusRunning,
		Source: "clip.dv",
		Sink:   "raw",
		Connections: []connect.Connection{{
			SourceStream: 0,
			SinkStream:   0,
			Family:       "dv",
			Source:       media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatDV50, Width: 720, Height: 576},
			Output:       media.StreamInfo{Type: media.StreamTypePicture, Format: media.FormatYUV422, Width: 720, Height: 576},
			Worker:       true,
		}},
	}
}

func registries(t *testing.T) map[string]Registry {
	_, _, redisReg := setupTestRedis(t)
	return map[string]Registry{
		"memory": NewMemoryRegistry(),
		"redis":  redisReg,
	}
}

func TestRegisterAndGet(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := testSession()
			require.NoError(t, reg.Register(ctx, s))
			assert.False(t, s.CreatedAt.IsZero())

			got, err := reg.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.Source, got.Source)
			require.Len(t, got.Connections, 1)
			assert.Equal(t, media.FormatYUV422, got.Connections[0].Output.Format)
			assert.True(t, got.Connections[0].Worker)

			created := s.CreatedAt
			time.Sleep(2 * time.Millisecond)
			s.Status = StatusFinished
			require.NoError(t, reg.Register(ctx, s))

			got, err = reg.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
			assert.Equal(t, StatusFinished, got.Status)
			assert.True(t, got.LastHeartbeat.After(created))
		})
	}
}

func TestUpdates(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := testSession()
			require.NoError(t, reg.Register(ctx, s))

			stats := SessionStats{FramesRead: 10, FramesCompleted: 9, FramesCancelled: 1, DecodeErrors: 1}
			require.NoError(t, reg.UpdateStats(ctx, s.ID, stats))
			require.NoError(t, reg.UpdateStatus(ctx, s.ID, StatusFailed, "sink closed"))
			require.NoError(t, reg.UpdateHeartbeat(ctx, s.ID))

			got, err := reg.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, stats, got.Stats)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "sink closed", got.Error)
			require.Len(t, got.Connections, 1)

			err = reg.UpdateStats(ctx, "missing", stats)
			assert.True(t, errors.Is(err, ErrSessionNotFound))
			err = reg.UpdateHeartbeat(ctx, "missing")
			assert.True(t, errors.Is(err, ErrSessionNotFound))
		})
	}
}

func TestListAndUnregister(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, second := testSession(), testSession()
			require.NoError(t, reg.Register(ctx, first))
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, reg.Register(ctx, second))

			list, err := reg.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)
			assert.Equal(t, second.ID, list[1].ID)

			require.NoError(t, reg.Unregister(ctx, first.ID))
			err = reg.Unregister(ctx, first.ID)
			assert.True(t, errors.Is(err, ErrSessionNotFound))

			_, err = reg.Get(ctx, first.ID)
			assert.True(t, errors.Is(err, ErrSessionNotFound))

			list, err = reg.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)

			require.NoError(t, reg.Close())
		})
	}
}

func TestRedisSessionExpires(t *testing.T) {
	mr, client, reg := setupTestRedis(t)
	ctx := context.Background()

	s := testSession()
	require.NoError(t, reg.Register(ctx, s))
	assert.True(t, mr.Exists("ingex:sessions:"+s.ID))

	ttl := mr.TTL("ingex:sessions:" + s.ID)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(2 * time.Minute)

	list, err := reg.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	members, err := client.SMembers(ctx, "ingex:sessions:active").Result()
	require.NoError(t, err)
	assert.Empty(t, members, "expired IDs are pruned from the active set")
}

func TestRedisHeartbeatRefreshesTTL(t *testing.T) {
	mr, _, reg := setupTestRedis(t)
	ctx := context.Background()

	s := testSession()
	require.NoError(t, reg.Register(ctx, s))

	mr.FastForward(40 * time.Second)
	require.NoError(t, reg.UpdateHeartbeat(ctx, s.ID))
	mr.FastForward(40 * time.Second)

	_, err := reg.Get(ctx, s.ID)
	assert.NoError(t, err)
}

func TestRedisCustomPrefix(t *testing.T) {
	mr, client, _ := setupTestRedis(t)
	reg := NewRedisRegistry(client, nil, 0, "test:")
	s := testSession()
	require.NoError(t, reg.Register(context.Background(), s))
	assert.True(t, mr.Exists("test:"+s.ID))
	assert.Equal(t, 5*time.Minute, mr.TTL("test:"+s.ID))
}

func TestNewFromConfig(t *testing.T) {
	ctx := context.Background()

	reg, err := New(ctx, &config.Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryRegistry{}, reg)

	mr, err := miniredis.Run()
	require.NoError(t, err)

	cfg := &config.Config{
		Redis:    config.RedisConfig{Enabled: true, Addresses: []string{mr.Addr()}, PoolSize: 2},
		Registry: config.RegistryConfig{TTL: time.Minute},
	}
	reg, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	defer reg.Close()
	assert.IsType(t, &RedisRegistry{}, reg)

	mr.Close()
	_, err = New(ctx, cfg, nil)
	assert.Error(t, err)
}

func TestNewSessionIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewSessionID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}
