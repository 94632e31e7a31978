package kv

import (
	"context"

	pkgredis "github.com/angelmondragon/shelfpos/pkg/redis"
)

const scanPageSize = 100

// hashStore is the slice of the redis client the backend needs.
type hashStore interface {
	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HDel(ctx context.Context, key string, fields ...string) error
	HLen(ctx context.Context, key string) (int64, error)
	HScan(ctx context.Context, key string, cursor uint64, count int64) ([]string, uint64, error)
	Del(ctx context.Context, keys ...string) error
	CollectionKey(collection string) string
	Ping(ctx context.Context) error
	Close() error
}

// RedisBackend keeps one hash per collection, keyed <ns>:kv:<collection>.
type RedisBackend struct {
	client hashStore
}

func NewRedisBackend(client hashStore) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Collection(name Name) Collection {
	return &redisCollection{client: b.client, name: name, key: b.client.CollectionKey(string(name))}
}

func (b *RedisBackend) Ping(ctx context.Context) error { return b.client.Ping(ctx) }

func (b *RedisBackend) Close() error { return b.client.Close() }

type redisCollection struct {
	client hashStore
	name   Name
	key    string
}

func (c *redisCollection) Name() Name { return c.name }

func (c *redisCollection) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := c.client.HGet(ctx, c.key, key)
	if pkgredis.IsNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageErr(err, "get", c.name, key)
	}
	return []byte(value), true, nil
}

func (c *redisCollection) Set(ctx context.Context, key string, value []byte) error {
	return storageErr(c.client.HSet(ctx, c.key, key, string(value)), "set", c.name, key)
}

func (c *redisCollection) Remove(ctx context.Context, key string) error {
	return storageErr(c.client.HDel(ctx, c.key, key), "remove", c.name, key)
}

func (c *redisCollection) Clear(ctx context.Context) error {
	return storageErr(c.client.Del(ctx, c.key), "clear", c.name, "")
}

// Iterate walks the hash with HSCAN. HSCAN may repeat fields across pages,
// so each key is visited once.
func (c *redisCollection) Iterate(ctx context.Context, fn Visitor) error {
	seen := make(map[string]struct{})
	var cursor uint64
	for {
		page, next, err := c.client.HScan(ctx, c.key, cursor, scanPageSize)
		if err != nil {
			return storageErr(err, "iterate", c.name, "")
		}
		for i := 0; i+1 < len(page); i += 2 {
			field := page[i]
			if _, dup := seen[field]; dup {
				continue
			}
			seen[field] = struct{}{}
			stop, err := fn(field, []byte(page[i+1]))
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

func (c *redisCollection) Len(ctx context.Context) (int, error) {
	n, err := c.client.HLen(ctx, c.key)
	if err != nil {
		return 0, storageErr(err, "count", c.name, "")
	}
	return int(n), nil
}
