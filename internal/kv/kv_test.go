package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/angelmondragon/shelfpos/pkg/config"
	"github.com/angelmondragon/shelfpos/pkg/db"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/logger"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
	"github.com/angelmondragon/shelfpos/pkg/migrate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"gorm":   newSQLiteBackend(t),
		"redis":  NewRedisBackend(newFakeHashStore()),
	}
}

func newSQLiteBackend(t *testing.T) *GormBackend {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	client, err := db.New(context.Background(), config.DBConfig{Driver: "sqlite", DSN: dsn, MaxOpenConns: 1}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	require.NoError(t, migrate.Run(context.Background(), sqlDB, client.Dialect(), "up"))
	return NewGormBackend(client)
}

func TestCollectionContract(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store, err := NewStore(backend, nil)
			require.NoError(t, err)
			products := store.Products()

			_, ok, err := products.Get(ctx, "missing")
			require.NoError(t, err)
			require.False(t, ok)

			require.NoError(t, products.Set(ctx, "p1", []byte(`{"id":"p1"}`)))
			require.NoError(t, products.Set(ctx, "p2", []byte(`{"id":"p2"}`)))
			require.NoError(t, products.Set(ctx, "p1", []byte(`{"id":"p1","name":"water"}`)))

			value, ok, err := products.Get(ctx, "p1")
			require.NoError(t, err)
			require.True(t, ok)
			require.JSONEq(t, `{"id":"p1","name":"water"}`, string(value))

			n, err := products.Len(ctx)
			require.NoError(t, err)
			require.Equal(t, 2, n)

			var keys []string
			require.NoError(t, products.Iterate(ctx, func(key string, _ []byte) (bool, error) {
				keys = append(keys, key)
				return false, nil
			}))
			sort.Strings(keys)
			require.Equal(t, []string{"p1", "p2"}, keys)

			visits := 0
			require.NoError(t, products.Iterate(ctx, func(string, []byte) (bool, error) {
				visits++
				return true, nil
			}))
			require.Equal(t, 1, visits)

			boom := errors.New("visitor failed")
			require.ErrorIs(t, products.Iterate(ctx, func(string, []byte) (bool, error) {
				return false, boom
			}), boom)

			require.NoError(t, store.Categories().Set(ctx, "c1", []byte(`{}`)))

			require.NoError(t, products.Remove(ctx, "p2"))
			require.NoError(t, products.Remove(ctx, "never-existed"))
			n, _ = products.Len(ctx)
			require.Equal(t, 1, n)

			require.NoError(t, products.Clear(ctx))
			n, _ = products.Len(ctx)
			require.Equal(t, 0, n)

			n, _ = store.Categories().Len(ctx)
			require.Equal(t, 1, n, "clearing one collection must not touch another")

			require.NoError(t, store.ClearAll(ctx))
			counts, err := store.Counts(ctx)
			require.NoError(t, err)
			for _, name := range Names {
				require.Zero(t, counts[name])
			}
			require.NoError(t, store.Ping(ctx))
		})
	}
}

func TestGormIterateCrossesBatches(t *testing.T) {
	ctx := context.Background()
	c := newSQLiteBackend(t).Collection(Orders)
	total := iterateBatchSize + 15
	for i := 0; i < total; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("o%04d", i), []byte(`{}`)))
	}
	seen := 0
	require.NoError(t, c.Iterate(ctx, func(key string, _ []byte) (bool, error) {
		seen++
		// removing while iterating must not skip entries
		return false, c.Remove(ctx, key)
	}))
	require.Equal(t, total, seen)
	n, err := c.Len(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestGormClearAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	store, err := NewStore(backend, nil)
	require.NoError(t, err)
	for _, name := range Names {
		require.NoError(t, store.Collection(name).Set(ctx, "k", []byte(`{}`)))
	}
	require.NoError(t, backend.client.DB().Exec(`CREATE TRIGGER keep_orders BEFORE DELETE ON kv_entries
		WHEN OLD.collection = 'orders' BEGIN SELECT RAISE(ABORT, 'orders are pinned'); END`).Error)

	err = store.ClearAll(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))
	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	for _, name := range Names {
		require.Equal(t, 1, counts[name], "%s survives a failed clear", name)
	}

	require.NoError(t, backend.client.DB().Exec(`DROP TRIGGER keep_orders`).Error)
	require.NoError(t, store.ClearAll(ctx))
	counts, err = store.Counts(ctx)
	require.NoError(t, err)
	for _, name := range Names {
		require.Zero(t, counts[name])
	}
}

func TestGormSetMapsUniqueViolation(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t)
	require.NoError(t, backend.client.DB().Exec(`CREATE UNIQUE INDEX kv_entries_value_unique ON kv_entries (value)`).Error)
	c := backend.Collection(Products)

	require.NoError(t, c.Set(ctx, "p1", []byte(`{"barcode":"1"}`)))
	err := c.Set(ctx, "p2", []byte(`{"barcode":"1"}`))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey))
}

func TestRedisIterateDeduplicatesScanPages(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHashStore()
	fake.repeatFirstPage = true
	c := NewRedisBackend(fake).Collection(Products)
	for i := 0; i < scanPageSize+5; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("p%04d", i), []byte(`{}`)))
	}
	seen := map[string]int{}
	require.NoError(t, c.Iterate(ctx, func(key string, _ []byte) (bool, error) {
		seen[key]++
		return false, nil
	}))
	require.Len(t, seen, scanPageSize+5)
	for key, count := range seen {
		require.Equal(t, 1, count, key)
	}
}

func TestBackendFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHashStore()
	fake.fail = errors.New("connection refused")
	c := NewRedisBackend(fake).Collection(Categories)

	_, _, err := c.Get(ctx, "x")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))
	require.True(t, pkgerrors.IsCode(c.Set(ctx, "x", nil), pkgerrors.CodeStorageIO))
	require.True(t, pkgerrors.IsCode(c.Clear(ctx), pkgerrors.CodeStorageIO))
}

func TestClearAllAttemptsEveryCollection(t *testing.T) {
	ctx := context.Background()
	fake := newFakeHashStore()
	store, err := NewStore(NewRedisBackend(fake), nil)
	require.NoError(t, err)
	for _, name := range Names {
		require.NoError(t, store.Collection(name).Set(ctx, "k", []byte(`{}`)))
	}
	fake.failKey = fake.CollectionKey(string(Products))

	err = store.ClearAll(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))

	fake.failKey = ""
	n, _ := store.Orders().Len(ctx)
	require.Zero(t, n, "later collections are cleared despite an earlier failure")
	n, _ = store.Products().Len(ctx)
	require.Equal(t, 1, n)
}

type widget struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

func TestTypedQueries(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(NewMemoryBackend(), nil)
	require.NoError(t, err)
	typed := NewTyped[widget](store.Products())

	got, err := typed.Get(ctx, "none")
	require.NoError(t, err)
	require.Nil(t, got)

	for _, w := range []widget{{"a", "red"}, {"b", "blue"}, {"c", "red"}} {
		w := w
		require.NoError(t, typed.Put(ctx, w.ID, &w))
	}

	red, err := typed.FindAll(ctx, func(w *widget) bool { return w.Color == "red" })
	require.NoError(t, err)
	require.Len(t, red, 2)

	all, err := typed.FindAll(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	blue, err := typed.FindOne(ctx, func(w *widget) bool { return w.Color == "blue" })
	require.NoError(t, err)
	require.Equal(t, "b", blue.ID)

	exists, err := typed.Exists(ctx, func(w *widget) bool { return w.Color == "green" })
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Products().Set(ctx, "bad", []byte("{not json")))
	_, err = typed.FindAll(ctx, nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))
}

func TestInstrumentedRecordsOperations(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	store, err := NewStore(NewMemoryBackend(), metrics.NewStoreMetrics(reg))
	require.NoError(t, err)

	require.NoError(t, store.Orders().Set(ctx, "o1", []byte(`{}`)))
	_, _, err = store.Orders().Get(ctx, "o1")
	require.NoError(t, err)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range mfs {
		if mf.GetName() == "shelfpos_store_operation_duration_seconds" {
			found = len(mf.GetMetric()) == 2
		}
	}
	require.True(t, found, "expected get and set latency series")
}

func TestOpenMemoryBackend(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory}}
	store, res, err := Open(context.Background(), cfg, logger.Nop(), nil)
	require.NoError(t, err)
	require.NotNil(t, store.Products())
	require.NoError(t, res.Close())
}

func TestOpenSQLiteRunsMigrations(t *testing.T) {
	cfg := &config.Config{
		Store: config.StoreConfig{Backend: config.StoreBackendSQLite, AutoMigrate: true},
		DB:    config.DBConfig{Driver: "sqlite", DSN: "file:open_sqlite?mode=memory&cache=shared", MaxOpenConns: 1},
	}
	store, res, err := Open(context.Background(), cfg, logger.Nop(), nil)
	require.NoError(t, err)
	defer res.Close()

	require.NoError(t, store.Categories().Set(context.Background(), "c1", []byte(`{"id":"c1"}`)))
	n, err := store.Categories().Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

// fakeHashStore is an in-memory stand-in for the redis client.
type fakeHashStore struct {
	mu              sync.Mutex
	hashes          map[string]map[string]string
	fail            error
	failKey         string
	repeatFirstPage bool
}

func newFakeHashStore() *fakeHashStore {
	return &fakeHashStore{hashes: map[string]map[string]string{}}
}

func (f *fakeHashStore) err(key string) error {
	if f.fail != nil {
		return f.fail
	}
	if f.failKey != "" && f.failKey == key {
		return errors.New("key unavailable")
	}
	return nil
}

func (f *fakeHashStore) HSet(_ context.Context, key, field, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(key); err != nil {
		return err
	}
	if f.hashes[key] == nil {
		f.hashes[key] = map[string]string{}
	}
	f.hashes[key][field] = value
	return nil
}

func (f *fakeHashStore) HGet(_ context.Context, key, field string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(key); err != nil {
		return "", err
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeHashStore) HDel(_ context.Context, key string, fields ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(key); err != nil {
		return err
	}
	for _, field := range fields {
		delete(f.hashes[key], field)
	}
	return nil
}

func (f *fakeHashStore) HLen(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(key); err != nil {
		return 0, err
	}
	return int64(len(f.hashes[key])), nil
}

func (f *fakeHashStore) HScan(_ context.Context, key string, cursor uint64, count int64) ([]string, uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err(key); err != nil {
		return nil, 0, err
	}
	fields := make([]string, 0, len(f.hashes[key]))
	for field := range f.hashes[key] {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	start := int(cursor)
	if f.repeatFirstPage && start > 0 {
		// emulate HSCAN returning already-seen fields after a rehash
		start--
	}
	end := start + int(count)
	if end > len(fields) {
		end = len(fields)
	}
	var page []string
	for _, field := range fields[start:end] {
		page = append(page, field, f.hashes[key][field])
	}
	if end >= len(fields) {
		return page, 0, nil
	}
	return page, uint64(end), nil
}

func (f *fakeHashStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		if err := f.err(key); err != nil {
			return err
		}
		delete(f.hashes, key)
	}
	return nil
}

func (f *fakeHashStore) CollectionKey(collection string) string {
	return "test:kv:" + collection
}

func (f *fakeHashStore) Ping(context.Context) error { return f.fail }

func (f *fakeHashStore) Close() error { return nil }
