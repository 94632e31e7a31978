// Package kvtest provides stores and fault injection for service tests.
package kvtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/angelmondragon/shelfpos/internal/kv"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
)

// ErrInjected is returned by collections configured to fail.
var ErrInjected = errors.New("injected storage failure")

// NewStore returns an in-memory store.
func NewStore(t testing.TB) *kv.Store {
	t.Helper()
	store, err := kv.NewStore(kv.NewMemoryBackend(), nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

// FaultyBackend wraps a memory backend and lets tests fail writes on demand.
type FaultyBackend struct {
	*kv.MemoryBackend

	mu    sync.Mutex
	rules map[kv.Name]*rule
}

type rule struct {
	allowSets int
	failClear bool
	failAll   bool
}

func NewFaultyBackend() *FaultyBackend {
	return &FaultyBackend{MemoryBackend: kv.NewMemoryBackend(), rules: map[kv.Name]*rule{}}
}

// NewFaultyStore returns a store plus the backend that controls its faults.
func NewFaultyStore(t testing.TB) (*kv.Store, *FaultyBackend) {
	t.Helper()
	backend := NewFaultyBackend()
	store, err := kv.NewStore(backend, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, backend
}

// FailSetsAfter lets n more Set calls on name succeed, then fails the rest.
func (b *FaultyBackend) FailSetsAfter(name kv.Name, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ruleFor(name).allowSets = n
}

// FailClear makes Clear on name fail.
func (b *FaultyBackend) FailClear(name kv.Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ruleFor(name).failClear = true
}

// FailEverything makes every operation on name fail.
func (b *FaultyBackend) FailEverything(name kv.Name) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ruleFor(name).failAll = true
}

// Reset removes all fault rules.
func (b *FaultyBackend) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rules = map[kv.Name]*rule{}
}

func (b *FaultyBackend) ruleFor(name kv.Name) *rule {
	r, ok := b.rules[name]
	if !ok {
		r = &rule{allowSets: -1}
		b.rules[name] = r
	}
	return r
}

func (b *FaultyBackend) Collection(name kv.Name) kv.Collection {
	return &faultyCollection{Collection: b.MemoryBackend.Collection(name), backend: b}
}

type faultyCollection struct {
	kv.Collection
	backend *FaultyBackend
}

func (c *faultyCollection) check(op string) error {
	if c.backend.shouldFail(c.Name(), op) {
		return pkgerrors.Wrap(pkgerrors.CodeStorageIO, ErrInjected, "kvtest: "+op+" "+string(c.Name()))
	}
	return nil
}

func (b *FaultyBackend) shouldFail(name kv.Name, op string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rules[name]
	if !ok {
		return false
	}
	switch {
	case r.failAll:
		return true
	case op == "set" && r.allowSets == 0:
		return true
	case op == "set" && r.allowSets > 0:
		r.allowSets--
	case op == "clear" && r.failClear:
		return true
	}
	return false
}

func (c *faultyCollection) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.check("get"); err != nil {
		return nil, false, err
	}
	return c.Collection.Get(ctx, key)
}

func (c *faultyCollection) Set(ctx context.Context, key string, value []byte) error {
	if err := c.check("set"); err != nil {
		return err
	}
	return c.Collection.Set(ctx, key, value)
}

func (c *faultyCollection) Remove(ctx context.Context, key string) error {
	if err := c.check("remove"); err != nil {
		return err
	}
	return c.Collection.Remove(ctx, key)
}

func (c *faultyCollection) Clear(ctx context.Context) error {
	if err := c.check("clear"); err != nil {
		return err
	}
	return c.Collection.Clear(ctx)
}

func (c *faultyCollection) Iterate(ctx context.Context, fn kv.Visitor) error {
	if err := c.check("iterate"); err != nil {
		return err
	}
	return c.Collection.Iterate(ctx, fn)
}
