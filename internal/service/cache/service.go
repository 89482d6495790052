package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/pkg/errors"
)

// keyNamespace isolates this service's keys inside a shared Redis database.
const keyNamespace = "channel-ranking:"

const scanBatchSize = 100

type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

type CacheConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func NewRedisCache(cfg CacheConfig, logger *zap.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.NewCacheError("failed to connect to Redis", "ping", "", err)
	}

	logger.Info("Redis connected",
		zap.String("addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		zap.Int("db", cfg.DB),
	)

	return NewRedisCacheWithClient(client, logger), nil
}

// NewRedisCacheWithClient wraps an existing client without pinging it.
func NewRedisCacheWithClient(client *redis.Client, logger *zap.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Get decodes the cached JSON into dest. A missing key reports false without error.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	value, err := c.client.Get(ctx, keyNamespace+key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.logger.Error("Cache get failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("get failed", "get", key, err)
	}

	if err := json.Unmarshal(value, dest); err != nil {
		c.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return false, errors.NewCacheError("unmarshal failed", "get", key, err)
	}
	return true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return errors.NewCacheError("marshal failed", "set", key, err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, keyNamespace+key, jsonData, ttl).Err(); err != nil {
		c.logger.Error("Cache set failed", zap.String("key", key), zap.Error(err))
		return errors.NewCacheError("set failed", "set", key, err)
	}
	return nil
}

// InvalidatePrefix deletes every key starting with prefix using SCAN, never KEYS.
func (c *RedisCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	pattern := keyNamespace + prefix + "*"
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	var deleted int64
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := c.client.Del(ctx, batch...).Result()
		if err != nil {
			return err
		}
		deleted += n
		batch = batch[:0]
		return nil
	}

	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= scanBatchSize {
			if err := flush(); err != nil {
				return errors.NewCacheError("delete failed", "invalidate", prefix, err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		c.logger.Error("Cache scan failed", zap.String("prefix", prefix), zap.Error(err))
		return errors.NewCacheError("scan failed", "invalidate", prefix, err)
	}
	if err := flush(); err != nil {
		return errors.NewCacheError("delete failed", "invalidate", prefix, err)
	}

	c.logger.Debug("Cache prefix invalidated",
		zap.String("prefix", prefix),
		zap.Int64("deleted", deleted),
	)
	return nil
}

func (c *RedisCache) Close() error {
	if err := c.client.Close(); err != nil {
		c.logger.Error("Failed to close Redis connection", zap.Error(err))
		return err
	}
	c.logger.Info("Redis disconnected")
	return nil
}

func (c *RedisCache) IsConnected(ctx context.Context) bool {
	return c.client.Ping(ctx).Err() == nil
}
