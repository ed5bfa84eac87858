package store

import (
	"context"

	"voice-beyond/companion/shared/redis"
)

// RedisStore namespaces profile keys under a prefix in a shared Redis.
type RedisStore struct {
	client *redis.RedisClient
	prefix string
}

func NewRedisStore(url, prefix string) (*RedisStore, error) {
	client, err := redis.NewRedisClient(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return r.client.Get(ctx, r.prefix+key)
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, r.prefix+key, value, 0)
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key)
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
