package health

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
)

// RedisChecker checks the session registry's Redis connection.
type RedisChecker struct {
	client *redis.Client
	name   string
}

func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "redis",
	}
}

func (r *RedisChecker) Name() string {
	return r.name
}

func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisChecker) Details() map[string]interface{} {
	if r.client == nil {
		return nil
	}
	stats := r.client.PoolStats()
	return map[string]interface{}{
		"addr":        r.client.Options().Addr,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
	}
}

// SinkDirChecker checks that the raw file sink can create files in its directory.
type SinkDirChecker struct {
	dir string
}

func NewSinkDirChecker(dir string) *SinkDirChecker {
	return &SinkDirChecker{dir: dir}
}

func (d *SinkDirChecker) Name() string {
	return "sink_dir"
}

func (d *SinkDirChecker) Check(ctx context.Context) error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return fmt.Errorf("sink directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("sink directory %s is not a directory", d.dir)
	}
	f, err := os.CreateTemp(d.dir, ".health-*")
	if err != nil {
		return fmt.Errorf("sink directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
