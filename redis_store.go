package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures the Redis-backed KVStore.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is the optional AUTH password.
	Password string

	// DB is the database index to select.
	DB int

	// KeyPrefix is prepended to every key, allowing several deployments to
	// share one Redis instance.
	KeyPrefix string

	// DialTimeout bounds the initial connectivity check. Defaults to 5s.
	DialTimeout time.Duration
}

// RedisStore provides a Redis-backed implementation of KVStore, suitable
// when several instances of the application must share one idempotency
// namespace. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis store from the given configuration and
// verifies connectivity with a ping.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.New("redis store: missing address")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	dialTimeout := config.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisStore{client: client, prefix: config.KeyPrefix}, nil
}

// Get retrieves the value stored under key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Put stores the value under key with an optional ttl.
func (r *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
