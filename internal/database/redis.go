package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lerpz/lerpz-auth/internal/config"
	"github.com/lerpz/lerpz-auth/pkg/logAction"
	"github.com/lerpz/lerpz-auth/pkg/logger"
	"github.com/lerpz/lerpz-auth/pkg/mlog"
)

type RedisClient struct {
	client *redis.Client
}

type IRedisClient interface {
	Close() error
	Ping() error
	Get(ctx context.Context, key string) (string, error)
	GetDel(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

func NewRedisConfig(cfg *config.RedisConfig) (IRedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{client: rdb}, nil
}

// NewRedisClient wraps an already connected client. Tests use this with
// miniredis.
func NewRedisClient(rdb *redis.Client) IRedisClient {
	return &RedisClient{client: rdb}
}

func (c *RedisClient) Close() error {
	return c.client.Close()
}

func (c *RedisClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.client.Ping(ctx).Err()
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logAction.DB_REQUEST(logAction.DB_READ, "redis GET"), map[string]any{
		"key": key,
	})

	val, err := c.client.Get(ctx, key).Result()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err == redis.Nil {
		result["data"] = nil
		err = ErrNotFound
	} else if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = val
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_READ, "redis GET"), result, logger.MaskingRule{
		Field: "data", Type: logger.MaskingTypePartial,
	})
	return val, err
}

// GetDel atomically reads and removes a key. Single-use artifacts
// (authorization codes) redeem through this so concurrent redemptions can
// never both win.
func (c *RedisClient) GetDel(ctx context.Context, key string) (string, error) {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logAction.DB_REQUEST(logAction.DB_DELETE, "redis GETDEL"), map[string]any{
		"key": key,
	})

	val, err := c.client.GetDel(ctx, key).Result()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err == redis.Nil {
		result["data"] = nil
		err = ErrNotFound
	} else if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = val
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_DELETE, "redis GETDEL"), result, logger.MaskingRule{
		Field: "data", Type: logger.MaskingTypePartial,
	})
	return val, err
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logAction.DB_REQUEST(logAction.DB_CREATE, "redis SET"), map[string]any{
		"key":        key,
		"expiration": expiration.String(),
	})

	err := c.client.Set(ctx, key, value, expiration).Err()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = "OK"
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_CREATE, "redis SET"), result)

	return err
}

func (c *RedisClient) Del(ctx context.Context, keys ...string) error {
	log := mlog.L(ctx)
	start := time.Now()

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency: "redis",
	}).Debug(logAction.DB_REQUEST(logAction.DB_DELETE, "redis DEL"), map[string]any{
		"keys": keys,
	})

	err := c.client.Del(ctx, keys...).Err()
	elapsedMs := time.Since(start).Milliseconds()

	result := map[string]any{}
	if err != nil {
		result["error"] = err.Error()
	} else {
		result["data"] = "OK"
	}

	log.SetDependencyMetadata(logger.DependencyMetadata{
		Dependency:   "redis",
		ResponseTime: elapsedMs,
	}).Debug(logAction.DB_RESPONSE(logAction.DB_DELETE, "redis DEL"), result)
	return err
}
