package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisEnvelope is the JSON document stored under every Redis key.
// ExpiresAt is Unix milliseconds, 0 meaning never.
type redisEnvelope struct {
	Value     []byte `json:"value"`
	ExpiresAt int64  `json:"expiresAt"`
}

// Redis is a string-keyed persistent Store backed by Redis.
// Each entry is encoded as a JSON envelope carrying its own expiry, so a
// read can detect and remove an expired entry even if the server-side TTL
// has not fired yet.
type Redis struct {
	client redis.UniversalClient
	opts   *redisOptions
}

// NewRedis creates a Redis-backed store.
// The client should be obtained from pkg/redis.Connect. Closing the store
// leaves the client open.
//
// Example:
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	store := cache.NewRedis(client, cache.WithPrefix("ihsan"))
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}

	return &Redis{
		client: client,
		opts:   o,
	}
}

// Get retrieves a value by key from Redis.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefixedKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var env redisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Join(ErrUnmarshal, err)
	}

	if expiredMillis(env.ExpiresAt, time.Now()) {
		if err := r.client.Del(ctx, r.prefixedKey(key)).Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}

	return env.Value, nil
}

// Set stores a value in Redis. A non-positive ttl never expires.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(redisEnvelope{Value: value, ExpiresAt: expiresAtMillis(ttl)})
	if err != nil {
		return errors.Join(ErrMarshal, err)
	}

	// Redis interprets 0 as no expiration.
	return r.client.Set(ctx, r.prefixedKey(key), data, max(ttl, 0)).Err()
}

// Delete removes a key from Redis.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefixedKey(key)).Err()
}

// Has checks whether a key exists and has not expired.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	if _, err := r.Get(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Clear removes all cache entries.
// If a prefix is configured, only keys matching the prefix are removed using SCAN.
// If no prefix is configured, FLUSHDB is used.
func (r *Redis) Clear(ctx context.Context) error {
	if r.opts.prefix == "" {
		return r.client.FlushDB(ctx).Err()
	}
	return r.scan(ctx, func(keys []string) error {
		return r.client.Del(ctx, keys...).Err()
	})
}

// Size counts the keys under the configured prefix, or the whole database
// when no prefix is set. Redis purges expired keys natively.
func (r *Redis) Size(ctx context.Context) (int, error) {
	if r.opts.prefix == "" {
		n, err := r.client.DBSize(ctx).Result()
		return int(n), err
	}

	count := 0
	err := r.scan(ctx, func(keys []string) error {
		count += len(keys)
		return nil
	})
	return count, err
}

// Ping verifies the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close is a no-op. The client lifecycle belongs to the caller
// (see pkg/redis.Shutdown).
func (r *Redis) Close() error {
	return nil
}

func (r *Redis) prefixedKey(key string) string {
	if r.opts.prefix == "" {
		return key
	}
	return r.opts.prefix + ":" + key
}

// scan walks every key under the prefix in pages using SCAN, which does not
// block the server.
func (r *Redis) scan(ctx context.Context, fn func(keys []string) error) error {
	pattern := r.opts.prefix + ":*"
	var cursor uint64

	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, r.opts.scanCount).Result()
		if err != nil {
			return err
		}

		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

var _ Store = (*Redis)(nil)
