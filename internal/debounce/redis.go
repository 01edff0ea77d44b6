package debounce

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares one window across every gate process pointed at the same key.
type Redis struct {
	client redis.Cmdable
	key    string
	window time.Duration
}

// NewRedis returns a window stored under key. A non-positive d selects DefaultWindow.
func NewRedis(client redis.Cmdable, key string, d time.Duration) *Redis {
	if d <= 0 {
		d = DefaultWindow
	}
	return &Redis{client: client, key: key, window: d}
}

// Allow claims the key for one window; the claim fails while a previous one is live.
func (r *Redis) Allow(ctx context.Context) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key, time.Now().UnixMilli(), r.window).Result()
	if err != nil {
		return false, fmt.Errorf("debounce claim %s: %w", r.key, err)
	}
	return ok, nil
}

// Reset releases the key.
func (r *Redis) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}
