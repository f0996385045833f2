package redisclient

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

//go:embed scripts/next_sequence.lua
var nextSequenceScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

type Client struct {
	rdb            *redis.Client
	sequenceScript *redis.Script
	releaseScript  *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:            rdb,
		sequenceScript: redis.NewScript(nextSequenceScript),
		releaseScript:  redis.NewScript(releaseLockScript),
	}, nil
}

// Ping checks the connection
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// NextSequence atomically increments the counter at key. The key expires ttl
// after its first increment.
func (c *Client) NextSequence(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	result, err := c.sequenceScript.Run(ctx, c.rdb, []string{key}, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("next sequence script failed: %w", err)
	}

	n, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return n, nil
}

// AcquireLock acquires a distributed lock. The returned token must be passed
// to ReleaseLock; ok is false when someone else holds the lock.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, bool, error) {
	token := uuid.New().String()

	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock failed: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
