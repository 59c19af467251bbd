package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/ingex/internal/logger"
)

const defaultPrefix = "ingex:sessions:"

// registerScript stores a new session and adds it to the active set atomically.
var registerScript = redis.NewScript(`
	local key = KEYS[1]
	local active_key = KEYS[2]
	local ok = redis.call('SET', key, ARGV[1], 'PX', tonumber(ARGV[2]), 'NX')
	if not ok then
		return 0
	end
	redis.call('SADD', active_key, ARGV[3])
	return 1
`)

// listScript returns every live session and prunes expired IDs from the active set.
var listScript = redis.NewScript(`
	local active_key = KEYS[1]
	local prefix = ARGV[1]
	local active = redis.call('SMEMBERS', active_key)
	local result = {}
	local to_remove = {}

	for i, id in ipairs(active) do
		local session = redis.call('GET', prefix .. id)
		if session then
			table.insert(result, session)
		else
			table.insert(to_remove, id)
		end
	end

	for i, id in ipairs(to_remove) do
		redis.call('SREM', active_key, id)
	end

	return result
`)

// RedisRegistry stores sessions as JSON values with a TTL; the player's
// heartbeat keeps them alive.
type RedisRegistry struct {
	client *redis.Client
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

func NewRedisRegistry(client *redis.Client, log logger.Logger, ttl time.Duration, prefix string) *RedisRegistry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = defaultPrefix
	}
	if log == nil {
		log = logger.Discard
	}
	return &RedisRegistry{
		client: client,
		logger: log.WithField("component", "session_registry"),
		prefix: prefix,
		ttl:    ttl,
	}
}

// Client exposes the Redis client for health checks.
func (r *RedisRegistry) Client() *redis.Client { return r.client }

func (r *RedisRegistry) key(id string) string { return r.prefix + id }
func (r *RedisRegistry) activeKey() string    { return r.prefix + "active" }

func (r *RedisRegistry) Register(ctx context.Context, s *Session) error {
	key := r.key(s.ID)
	existing, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var old Session
		if err := json.Unmarshal(existing, &old); err == nil {
			s.CreatedAt = old.CreatedAt
		}
	case errors.Is(err, redis.Nil):
		s.CreatedAt = time.Now()
		existing = nil
	default:
		return fmt.Errorf("failed to check existing session: %w", err)
	}
	s.LastHeartbeat = time.Now()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if existing != nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		r.logger.WithField("session_id", s.ID).Debug("Session updated")
		return nil
	}

	created, err := registerScript.Run(ctx, r.client,
		[]string{key, r.activeKey()}, data, r.ttl.Milliseconds(), s.ID).Int()
	if err != nil {
		return fmt.Errorf("failed to register session: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", ErrSessionExists, s.ID)
	}

	r.logger.WithFields(map[string]interface{}{
		"session_id":  s.ID,
		"source":      s.Source,
		"connections": len(s.Connections),
	}).Info("Session registered")
	return nil
}

func (r *RedisRegistry) Unregister(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, r.key(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to unregister session: %w", err)
	}
	if err := r.client.SRem(ctx, r.activeKey(), id).Err(); err != nil {
		r.logger.WithError(err).Warnf("Failed to remove session %s from active set", id)
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	r.logger.WithField("session_id", id).Info("Session unregistered")
	return nil
}

func (r *RedisRegistry) Get(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

// List returns live sessions oldest first.
func (r *RedisRegistry) List(ctx context.Context) ([]*Session, error) {
	res, err := listScript.Run(ctx, r.client, []string{r.activeKey()}, r.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type from script")
	}

	sessions := make([]*Session, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Warn("Invalid data type in result")
			continue
		}
		var s Session
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal session")
			continue
		}
		sessions = append(sessions, &s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].CreatedAt.Before(sessions[j].CreatedAt) })
	return sessions, nil
}

// update applies fn to the stored session inside an optimistic transaction
// and refreshes the TTL.
func (r *RedisRegistry) update(ctx context.Context, id string, fn func(*Session)) error {
	key := r.key(id)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
			}
			return err
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		fn(&s)
		s.LastHeartbeat = time.Now()
		updated, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, r.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < 3; i++ {
		err := r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("session %s: concurrent updates, giving up", id)
}

func (r *RedisRegistry) UpdateHeartbeat(ctx context.Context, id string) error {
	return r.update(ctx, id, func(*Session) {})
}

func (r *RedisRegistry) UpdateStatus(ctx context.Context, id string, status SessionStatus, reason string) error {
	if err := r.update(ctx, id, func(s *Session) {
		s.Status = status
		s.Error = reason
	}); err != nil {
		return err
	}
	r.logger.WithFields(map[string]interface{}{
		"session_id": id,
		"status":     status,
	}).Debug("Session status updated")
	return nil
}

func (r *RedisRegistry) UpdateStats(ctx context.Context, id string, stats SessionStats) error {
	return r.update(ctx, id, func(s *Session) { s.Stats = stats })
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
