package animations

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	animationCacheTTL     = 30 * time.Second
	animationCacheTimeout = 300 * time.Millisecond
)

// animationCache keeps recently served animation details in Redis. Cache
// trouble is never fatal: every miss or error falls through to the database.
type animationCache struct {
	client *redis.Client
}

func newAnimationCache(client *redis.Client) *animationCache {
	if client == nil {
		return nil
	}
	return &animationCache{client: client}
}

// cacheContext bounds cache operations so a slow Redis cannot stall reads.
func (c *animationCache) cacheContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		return context.WithTimeout(context.Background(), animationCacheTimeout)
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= animationCacheTimeout {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, animationCacheTimeout)
}

func (c *animationCache) key(animationID uint64) string {
	if c == nil || c.client == nil || animationID == 0 {
		return ""
	}
	return fmt.Sprintf("animations:detail:%d", animationID)
}

func (c *animationCache) get(ctx context.Context, animationID uint64) (*Animation, error) {
	if c == nil || c.client == nil {
		return nil, redis.Nil
	}
	key := c.key(animationID)
	if key == "" {
		return nil, redis.Nil
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}

	var animation Animation
	if err := json.Unmarshal(data, &animation); err != nil {
		return nil, err
	}
	return &animation, nil
}

func (c *animationCache) store(ctx context.Context, animation *Animation) {
	if c == nil || c.client == nil || animation == nil {
		return
	}
	key := c.key(animation.ID)
	if key == "" {
		return
	}

	data, err := json.Marshal(animation)
	if err != nil {
		log.Printf("animations: cache encode failed: %v", err)
		return
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, data, animationCacheTTL).Err(); err != nil {
		log.Printf("animations: cache store failed: %v", err)
	}
}

func (c *animationCache) invalidate(ctx context.Context, animationID uint64) {
	if c == nil || c.client == nil {
		return
	}
	key := c.key(animationID)
	if key == "" {
		return
	}

	ctx, cancel := c.cacheContext(ctx)
	defer cancel()

	if err := c.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		log.Printf("animations: cache invalidate failed: %v", err)
	}
}
