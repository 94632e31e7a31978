// Package kv is the object store behind every entity service: four named
// collections of JSON documents addressed by id.
package kv

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
	"github.com/angelmondragon/shelfpos/pkg/metrics"
	"go.uber.org/multierr"
)

// Name identifies a collection.
type Name string

const (
	Categories Name = "categories"
	Products   Name = "products"
	Orders     Name = "orders"
	OrderItems Name = "order_items"
)

// Names lists every collection in restore dependency order.
var Names = []Name{Categories, Products, Orders, OrderItems}

// Visitor receives each entry during Iterate. Returning stop=true ends the
// walk early; a non-nil error aborts it and is returned as-is.
type Visitor func(key string, value []byte) (stop bool, err error)

// Collection is one partition of the store. Iteration order is unspecified;
// callers that need an order sort afterwards.
type Collection interface {
	Name() Name
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Iterate(ctx context.Context, fn Visitor) error
	Len(ctx context.Context) (int, error)
}

// Backend opens collections on a concrete medium.
type Backend interface {
	Collection(name Name) Collection
	Ping(ctx context.Context) error
	Close() error
}

// Store groups the four collections.
type Store struct {
	backend     Backend
	collections map[Name]Collection
}

// NewStore builds a store over backend. A non-nil metrics instance wraps
// every collection with latency and error tracking.
func NewStore(backend Backend, m *metrics.StoreMetrics) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("kv backend required")
	}
	collections := make(map[Name]Collection, len(Names))
	for _, name := range Names {
		c := backend.Collection(name)
		if m != nil {
			c = Instrument(c, m)
		}
		collections[name] = c
	}
	return &Store{backend: backend, collections: collections}, nil
}

func (s *Store) Collection(name Name) Collection {
	return s.collections[name]
}

func (s *Store) Categories() Collection { return s.collections[Categories] }

func (s *Store) Products() Collection { return s.collections[Products] }

func (s *Store) Orders() Collection { return s.collections[Orders] }

func (s *Store) OrderItems() Collection { return s.collections[OrderItems] }

// atomicClearer is implemented by backends that can empty several
// collections in one transaction.
type atomicClearer interface {
	ClearCollections(ctx context.Context, names []Name) error
}

// ClearAll empties every collection. Transactional backends clear all four
// or none; others attempt every collection even if one fails.
func (s *Store) ClearAll(ctx context.Context) error {
	if tx, ok := s.backend.(atomicClearer); ok {
		return pkgerrors.Storage(tx.ClearCollections(ctx, Names), "kv: clear all collections")
	}
	var errs error
	for _, name := range Names {
		if err := s.collections[name].Clear(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if errs != nil {
		return pkgerrors.Storage(errs, "kv: clear all collections")
	}
	return nil
}

// Counts reports the number of entries per collection.
func (s *Store) Counts(ctx context.Context) (map[Name]int, error) {
	counts := make(map[Name]int, len(Names))
	for _, name := range Names {
		n, err := s.collections[name].Len(ctx)
		if err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return pkgerrors.Storage(s.backend.Ping(ctx), "kv: ping")
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func storageErr(err error, op string, name Name, key string) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf("kv: %s %s", op, name)
	if key != "" {
		msg += "/" + key
	}
	return pkgerrors.Storage(err, msg)
}
