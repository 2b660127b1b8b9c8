package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

type RedisCache struct {
	Cli *redis.Client
}

func NewRedis(ctx context.Context, addr, password string, db int) (*RedisCache, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.Ping(pctx).Err(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return &RedisCache{Cli: r}, nil
}

func (c *RedisCache) Close() error {
	return c.Cli.Close()
}

func (c *RedisCache) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.Cli.Set(ctx, key, val, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	s, err := c.Cli.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", err
	}
	return s, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.Cli.Del(ctx, key).Err()
}
