package cache

import (
	"context"
	stderrors "errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/CoReason-AI/omopcloudetl-core/errors"
)

// Redis implements Store on a Redis server so that several runners can
// share downloaded specifications.
type Redis struct {
	rdb goredis.UniversalClient
	cfg RedisConfig
}

// NewRedis connects to the server in cfg. The connection is lazy; the
// first command reports an unreachable server.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	cfg.ApplyDefaults()
	if cfg.Addr == "" {
		return nil, errors.ConfigurationError("cache: redis.addr is required", nil)
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
	return NewRedisWithClient(rdb, cfg), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb goredis.UniversalClient, cfg RedisConfig) *Redis {
	cfg.ApplyDefaults()
	return &Redis{rdb: rdb, cfg: cfg}
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: redis ping: %w", err)
	}
	return nil
}

// Get reads the entry for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if stderrors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: redis get %q: %w", key, err)
	}
	return data, true, nil
}

// Put writes the entry for key with the configured TTL.
func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), data, r.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("cache: redis set %q: %w", key, err)
	}
	return nil
}

// Delete removes the entry for key.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis del %q: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

func (r *Redis) key(key string) string {
	return r.cfg.KeyPrefix + key
}

var _ Store = (*Redis)(nil)
