package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores JSON-encoded values in Redis so several server replicas
// share one read cache. Tags are Redis sets holding the keys they label.
// Redis errors are logged and treated as misses.
type RedisCache[V any] struct {
	client    redis.UniversalClient
	prefix    string
	opTimeout time.Duration
	logger    *zap.Logger
}

// NewRedisCache wraps client. All keys are namespaced under prefix.
func NewRedisCache[V any](client redis.UniversalClient, prefix string, logger *zap.Logger) *RedisCache[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache[V]{
		client:    client,
		prefix:    prefix,
		opTimeout: 2 * time.Second,
		logger:    logger,
	}
}

func (c *RedisCache[V]) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.opTimeout)
}

func (c *RedisCache[V]) key(k string) string { return c.prefix + "k:" + k }
func (c *RedisCache[V]) tag(t string) string { return c.prefix + "t:" + t }

// Get implements Cache.Get.
func (c *RedisCache[V]) Get(key string) (V, bool) {
	var zero V
	ctx, cancel := c.ctx()
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("redis get failed", zap.String("key", key), zap.Error(err))
		}
		return zero, false
	}
	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		c.logger.Warn("redis value decode failed", zap.String("key", key), zap.Error(err))
		return zero, false
	}
	return v, true
}

// Set implements Cache.Set.
func (c *RedisCache[V]) Set(key string, value V, ttl time.Duration, tags ...string) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("redis value encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	ctx, cancel := c.ctx()
	defer cancel()

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.key(key), raw, ttl)
		for _, t := range tags {
			pipe.SAdd(ctx, c.tag(t), key)
		}
		return nil
	})
	if err != nil {
		c.logger.Warn("redis set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete implements Cache.Delete.
func (c *RedisCache[V]) Delete(key string) {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		c.logger.Warn("redis delete failed", zap.String("key", key), zap.Error(err))
	}
}

// Has implements Cache.Has.
func (c *RedisCache[V]) Has(key string) bool {
	ctx, cancel := c.ctx()
	defer cancel()
	n, err := c.client.Exists(ctx, c.key(key)).Result()
	return err == nil && n > 0
}

// Len implements Cache.Len.
func (c *RedisCache[V]) Len() int {
	ctx, cancel := c.ctx()
	defer cancel()
	count := 0
	iter := c.client.Scan(ctx, 0, c.prefix+"k:*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis scan failed", zap.Error(err))
	}
	return count
}

// Clear implements Cache.Clear.
func (c *RedisCache[V]) Clear() {
	ctx, cancel := c.ctx()
	defer cancel()
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		c.client.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("redis clear failed", zap.Error(err))
	}
}

// PurgeExpired implements Cache.PurgeExpired. Redis expires keys itself, so
// only tag sets pointing at vanished keys are trimmed.
func (c *RedisCache[V]) PurgeExpired() {
	ctx, cancel := c.ctx()
	defer cancel()
	iter := c.client.Scan(ctx, 0, c.prefix+"t:*", 100).Iterator()
	for iter.Next(ctx) {
		tagKey := iter.Val()
		members, err := c.client.SMembers(ctx, tagKey).Result()
		if err != nil {
			continue
		}
		for _, m := range members {
			if n, err := c.client.Exists(ctx, c.key(m)).Result(); err == nil && n == 0 {
				c.client.SRem(ctx, tagKey, m)
			}
		}
	}
}

// Invalidate implements Cache.Invalidate.
func (c *RedisCache[V]) Invalidate(tags ...string) int {
	ctx, cancel := c.ctx()
	defer cancel()

	dropped := 0
	for _, t := range tags {
		members, err := c.client.SMembers(ctx, c.tag(t)).Result()
		if err != nil {
			c.logger.Warn("redis invalidate failed", zap.String("tag", t), zap.Error(err))
			continue
		}
		keys := make([]string, 0, len(members)+1)
		for _, m := range members {
			keys = append(keys, c.key(m))
		}
		keys = append(keys, c.tag(t))
		n, err := c.client.Del(ctx, keys...).Result()
		if err != nil {
			c.logger.Warn("redis invalidate failed", zap.String("tag", t), zap.Error(err))
			continue
		}
		// the tag set itself is one of the deleted keys
		if n > 0 {
			dropped += int(n) - 1
		}
	}
	return dropped
}

var _ Cache[string, any] = (*RedisCache[any])(nil)
