package redis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockCmdable struct {
	data   map[string]string
	hashes map[string]map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:   make(map[string]string),
		hashes: make(map[string]map[string]string),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.hashes, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	var added int64
	for i := 0; i+1 < len(values); i += 2 {
		field := fmt.Sprint(values[i])
		if _, exists := h[field]; !exists {
			added++
		}
		h[field] = fmt.Sprint(values[i+1])
	}
	return redis.NewIntResult(added, nil)
}

func (m *mockCmdable) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	v, ok := m.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	var removed int64
	for _, field := range fields {
		if _, ok := m.hashes[key][field]; ok {
			delete(m.hashes[key], field)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *mockCmdable) HLen(ctx context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(m.hashes[key])), nil)
}

// HScan pages through fields in sorted order; the cursor is an offset.
func (m *mockCmdable) HScan(ctx context.Context, key string, cursor uint64, match string, count int64) *redis.ScanCmd {
	fields := make([]string, 0, len(m.hashes[key]))
	for field := range m.hashes[key] {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if count <= 0 {
		count = 10
	}
	start := int(cursor)
	end := start + int(count)
	if end > len(fields) {
		end = len(fields)
	}
	var page []string
	for _, field := range fields[start:end] {
		page = append(page, field, m.hashes[key][field])
	}
	next := uint64(end)
	if end >= len(fields) {
		next = 0
	}
	return redis.NewScanCmdResult(page, next, nil)
}
