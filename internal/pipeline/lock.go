package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another run holds the lock.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// DefaultLockKey is the Redis key guarding pipeline runs.
const DefaultLockKey = "smartapply:pipeline:lock"

// Locker grants exclusive pipeline runs across processes.
type Locker interface {
	// Acquire returns a release function, or ErrRunInProgress.
	Acquire(ctx context.Context, ttl time.Duration) (func(), error)
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by SET NX with an expiry.
type RedisLocker struct {
	client *redis.Client
	key    string
}

// NewRedisLocker creates a RedisLocker on key (DefaultLockKey if empty).
func NewRedisLocker(client *redis.Client, key string) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	return &RedisLocker{client: client, key: key}
}

// ConnectRedis parses redisURL and checks the server is reachable.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	release := func() {
		// The run context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}
	return release, nil
}
