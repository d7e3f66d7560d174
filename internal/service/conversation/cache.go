package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/seek-portal/internal/model"
)

const (
	keyPrefix  = "conversation:"
	defaultTTL = 24 * time.Hour
)

// Cache 会话缓存，未命中返回 nil, nil
type Cache interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Set(ctx context.Context, conv *model.Conversation) error
}

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*model.Conversation, error) { return nil, nil }
func (nopCache) Set(context.Context, *model.Conversation) error           { return nil }

// RedisCache Redis 会话缓存
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache 创建 Redis 缓存，ttl 非正时为 24 小时
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Key 会话缓存键
func Key(id string) string {
	return keyPrefix + id
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, id string) (*model.Conversation, error) {
	data, err := c.client.Get(ctx, Key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decode cached conversation: %w", err)
	}
	return &conv, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	return c.client.Set(ctx, Key(conv.ID), data, c.ttl).Err()
}
