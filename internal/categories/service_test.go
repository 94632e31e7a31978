package categories

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/shelfpos/internal/kv"
	"github.com/angelmondragon/shelfpos/internal/kv/kvtest"
	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*service, *kv.Store, *fakeClock) {
	t.Helper()
	store := kvtest.NewStore(t)
	clock := &fakeClock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	svc, err := NewService(store, Options{
		Now: clock.Now,
		NewID: func() string {
			seq++
			return fmt.Sprintf("cat-%02d", seq)
		},
	})
	require.NoError(t, err)
	return svc.(*service), store, clock
}

func TestAddRejectsDuplicateNameWithoutWriting(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	_, err := svc.Add(ctx, "Beverages")
	require.NoError(t, err)

	_, err = svc.Add(ctx, "Beverages")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey))

	n, err := store.Categories().Len(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = svc.Add(ctx, "beverages")
	require.NoError(t, err, "names are case-sensitive")
}

func TestAddValidatesName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tests := map[string]string{
		"empty":      "",
		"whitespace": "   ",
		"too long":   strings.Repeat("x", 51),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Add(ctx, input)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}

	c, err := svc.Add(ctx, "  Snacks  ")
	require.NoError(t, err)
	require.Equal(t, "Snacks", c.Name)

	_, err = svc.Add(ctx, strings.Repeat("饮", 50))
	require.NoError(t, err, "length counts characters, not bytes")
}

func TestGetAllSortsByCreationAndCaches(t *testing.T) {
	ctx := context.Background()
	svc, store, clock := newTestService(t)

	_, err := svc.Add(ctx, "Dairy")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = svc.Add(ctx, "Beverages")
	require.NoError(t, err)

	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Dairy", "Beverages"}, names(all))

	// a write behind the service's back is invisible until the TTL lapses
	raw := kv.NewTyped[Category](store.Categories())
	require.NoError(t, raw.Put(ctx, "ghost", &Category{ID: "ghost", Name: "Ghost", CreatedAt: clock.Now()}))

	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	clock.Advance(DefaultCacheTTL)
	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestMutationsInvalidateCache(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	c, err := svc.Add(ctx, "Frozen")
	require.NoError(t, err)
	_, err = svc.GetAll(ctx)
	require.NoError(t, err)

	newName := "Frozen Food"
	_, err = svc.Update(ctx, c.ID, Patch{Name: &newName})
	require.NoError(t, err)
	all, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Frozen Food"}, names(all))

	require.NoError(t, svc.Delete(ctx, c.ID))
	all, err = svc.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	svc, _, clock := newTestService(t)

	a, err := svc.Add(ctx, "A")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "B")
	require.NoError(t, err)

	taken := "B"
	_, err = svc.Update(ctx, a.ID, Patch{Name: &taken})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey))

	same := "A"
	clock.Advance(time.Hour)
	updated, err := svc.Update(ctx, a.ID, Patch{Name: &same})
	require.NoError(t, err, "keeping the same name is not a collision")
	require.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	_, err = svc.Update(ctx, "missing", Patch{Name: &same})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestDeleteBlockedByProducts(t *testing.T) {
	ctx := context.Background()
	svc, store, _ := newTestService(t)

	c, err := svc.Add(ctx, "Beverages")
	require.NoError(t, err)

	require.NoError(t, store.Products().Set(ctx, "p1", []byte(`{"id":"p1","name":"Water","category_id":"`+c.ID+`"}`)))
	err = svc.Delete(ctx, c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeHasDependents))

	got, err := svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, "Beverages", got.Name)

	require.NoError(t, store.Products().Remove(ctx, "p1"))
	require.NoError(t, svc.Delete(ctx, c.ID))
	_, err = svc.GetByID(ctx, c.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.True(t, pkgerrors.IsCode(svc.Delete(ctx, c.ID), pkgerrors.CodeNotFound))
}

func TestRecoverPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	created := time.Date(2023, 5, 6, 7, 8, 9, 0, time.UTC)

	require.NoError(t, svc.Recover(ctx, Category{ID: "orig-1", Name: "Snacks", CreatedAt: created, UpdatedAt: created}))
	got, err := svc.GetByID(ctx, "orig-1")
	require.NoError(t, err)
	require.True(t, got.CreatedAt.Equal(created))

	err = svc.Recover(ctx, Category{ID: "orig-2", Name: "Snacks", CreatedAt: created, UpdatedAt: created})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDuplicateKey))

	err = svc.Recover(ctx, Category{Name: "No ID"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestGetByName(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.Add(ctx, "Dairy")
	require.NoError(t, err)

	got, err := svc.GetByName(ctx, "Dairy")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = svc.GetByName(ctx, "dairy")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStorageFailuresSurface(t *testing.T) {
	ctx := context.Background()
	store, faults := kvtest.NewFaultyStore(t)
	svc, err := NewService(store, Options{})
	require.NoError(t, err)

	faults.FailEverything(kv.Categories)
	_, err = svc.Add(ctx, "X")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))
	_, err = svc.GetAll(ctx)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStorageIO))
}

// scanHookBackend runs afterScan once, right after the first full
// categories scan finishes.
type scanHookBackend struct {
	*kv.MemoryBackend
	afterScan func()
}

func (b *scanHookBackend) Collection(name kv.Name) kv.Collection {
	c := b.MemoryBackend.Collection(name)
	if name != kv.Categories {
		return c
	}
	return &scanHookCollection{Collection: c, backend: b}
}

type scanHookCollection struct {
	kv.Collection
	backend *scanHookBackend
}

func (c *scanHookCollection) Iterate(ctx context.Context, fn kv.Visitor) error {
	if err := c.Collection.Iterate(ctx, fn); err != nil {
		return err
	}
	if hook := c.backend.afterScan; hook != nil {
		c.backend.afterScan = nil
		hook()
	}
	return nil
}

func TestGetAllDropsLoadRacedByMutation(t *testing.T) {
	ctx := context.Background()
	backend := &scanHookBackend{MemoryBackend: kv.NewMemoryBackend()}
	store, err := kv.NewStore(backend, nil)
	require.NoError(t, err)
	svc, err := NewService(store, Options{})
	require.NoError(t, err)

	backend.afterScan = func() {
		_, err := svc.Add(ctx, "Late")
		require.NoError(t, err)
	}
	first, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Empty(t, first)

	second, err := svc.GetAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Late"}, names(second))
}

func names(items []Category) []string {
	out := make([]string, len(items))
	for i, c := range items {
		out[i] = c.Name
	}
	return out
}
