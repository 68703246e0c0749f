package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// CursorStore remembers the last entry id that was published.
type CursorStore interface {
	Load(ctx context.Context) (uint64, error)
	Save(ctx context.Context, id uint64) error
}

// RedisCursor keeps the cursor in one Redis key, shared by every relay instance.
type RedisCursor struct {
	client redis.UniversalClient
	key    string
}

func NewRedisCursor(client redis.UniversalClient, key string) *RedisCursor {
	return &RedisCursor{client: client, key: key}
}

func (c *RedisCursor) Load(ctx context.Context) (uint64, error) {
	raw, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load feed cursor: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("feed cursor %q is not an entry id: %w", raw, err)
	}
	return id, nil
}

func (c *RedisCursor) Save(ctx context.Context, id uint64) error {
	if err := c.client.Set(ctx, c.key, strconv.FormatUint(id, 10), 0).Err(); err != nil {
		return fmt.Errorf("save feed cursor: %w", err)
	}
	return nil
}

// MemoryCursor is a process-local cursor for single-instance deployments.
type MemoryCursor struct {
	mu sync.Mutex
	id uint64
}

func (c *MemoryCursor) Load(context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id, nil
}

func (c *MemoryCursor) Save(_ context.Context, id uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.id = id
	return nil
}
