package kv

import (
	"context"
	"sort"
	"sync"
)

// MemoryBackend keeps collections in process memory. Iterate walks keys in
// sorted order so test output is stable.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[Name]map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[Name]map[string][]byte)}
}

func (b *MemoryBackend) Collection(name Name) Collection {
	b.mu.Lock()
	if _, ok := b.data[name]; !ok {
		b.data[name] = make(map[string][]byte)
	}
	b.mu.Unlock()
	return &memoryCollection{backend: b, name: name}
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Close() error { return nil }

type memoryCollection struct {
	backend *MemoryBackend
	name    Name
}

func (c *memoryCollection) Name() Name { return c.name }

func (c *memoryCollection) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, storageErr(err, "get", c.name, key)
	}
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()
	v, ok := c.backend.data[c.name][key]
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (c *memoryCollection) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return storageErr(err, "set", c.name, key)
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.backend.data[c.name][key] = cloneBytes(value)
	return nil
}

func (c *memoryCollection) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return storageErr(err, "remove", c.name, key)
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	delete(c.backend.data[c.name], key)
	return nil
}

func (c *memoryCollection) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return storageErr(err, "clear", c.name, "")
	}
	c.backend.mu.Lock()
	defer c.backend.mu.Unlock()
	c.backend.data[c.name] = make(map[string][]byte)
	return nil
}

func (c *memoryCollection) Iterate(ctx context.Context, fn Visitor) error {
	c.backend.mu.RLock()
	entries := c.backend.data[c.name]
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	snapshot := make(map[string][]byte, len(entries))
	for k, v := range entries {
		snapshot[k] = cloneBytes(v)
	}
	c.backend.mu.RUnlock()

	sort.Strings(keys)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return storageErr(err, "iterate", c.name, "")
		}
		stop, err := fn(k, snapshot[k])
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

func (c *memoryCollection) Len(context.Context) (int, error) {
	c.backend.mu.RLock()
	defer c.backend.mu.RUnlock()
	return len(c.backend.data[c.name]), nil
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
