package resume

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PublicCache 缓存公开投影，键为 share_id。
type PublicCache interface {
	Get(ctx context.Context, shareID string) (*PublicView, error)
	Set(ctx context.Context, shareID string, view PublicView) error
	Invalidate(ctx context.Context, shareID string) error
}

// SnapshotRef 标识一份需要重新发布的公开快照。
type SnapshotRef struct {
	ResumeID uint
	OwnerID  uint
	ShareID  string
}

// SnapshotPublisher 在分享简历变化后异步发布公开快照。
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, ref SnapshotRef) error
}

const publicCacheKeyPrefix = "public:resume:"

// RedisPublicCache 用 Redis 实现 cache-aside。
type RedisPublicCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisPublicCache(client redis.Cmdable, ttl time.Duration) *RedisPublicCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisPublicCache{client: client, ttl: ttl}
}

// Get 未命中时返回 (nil, nil)。
func (c *RedisPublicCache) Get(ctx context.Context, shareID string) (*PublicView, error) {
	data, err := c.client.Get(ctx, publicCacheKeyPrefix+shareID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get public cache: %w", err)
	}
	var view PublicView
	if err := decodeJSON(data, &view); err != nil {
		return nil, fmt.Errorf("decode public cache: %w", err)
	}
	return &view, nil
}

func (c *RedisPublicCache) Set(ctx context.Context, shareID string, view PublicView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode public cache: %w", err)
	}
	return c.client.Set(ctx, publicCacheKeyPrefix+shareID, data, c.ttl).Err()
}

func (c *RedisPublicCache) Invalidate(ctx context.Context, shareID string) error {
	return c.client.Del(ctx, publicCacheKeyPrefix+shareID).Err()
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*PublicView, error) { return nil, nil }
func (nopCache) Set(context.Context, string, PublicView) error    { return nil }
func (nopCache) Invalidate(context.Context, string) error         { return nil }

type nopPublisher struct{}

func (nopPublisher) PublishSnapshot(context.Context, SnapshotRef) error { return nil }
