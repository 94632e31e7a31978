package kv

import (
	"context"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/angelmondragon/shelfpos/pkg/errors"
)

// Typed decodes a collection into T. Services query only through FindOne and
// FindAll so an indexed backend can replace the scans without touching them.
type Typed[T any] struct {
	c Collection
}

func NewTyped[T any](c Collection) *Typed[T] {
	return &Typed[T]{c: c}
}

func (t *Typed[T]) Collection() Collection { return t.c }

// Get returns nil without error when key is absent.
func (t *Typed[T]) Get(ctx context.Context, key string) (*T, error) {
	raw, ok, err := t.c.Get(ctx, key)
	if err != nil || !ok {
		return nil, err
	}
	return t.decode(key, raw)
}

func (t *Typed[T]) Put(ctx context.Context, key string, value *T) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("kv: encode %s/%s", t.c.Name(), key))
	}
	return t.c.Set(ctx, key, raw)
}

func (t *Typed[T]) Delete(ctx context.Context, key string) error {
	return t.c.Remove(ctx, key)
}

// FindOne returns the first match and stops scanning, or nil.
func (t *Typed[T]) FindOne(ctx context.Context, match func(*T) bool) (*T, error) {
	var found *T
	err := t.c.Iterate(ctx, func(key string, raw []byte) (bool, error) {
		v, err := t.decode(key, raw)
		if err != nil {
			return true, err
		}
		if match(v) {
			found = v
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindAll returns every match. A nil predicate matches everything.
func (t *Typed[T]) FindAll(ctx context.Context, match func(*T) bool) ([]*T, error) {
	out := []*T{}
	err := t.c.Iterate(ctx, func(key string, raw []byte) (bool, error) {
		v, err := t.decode(key, raw)
		if err != nil {
			return true, err
		}
		if match == nil || match(v) {
			out = append(out, v)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Exists reports whether any record matches.
func (t *Typed[T]) Exists(ctx context.Context, match func(*T) bool) (bool, error) {
	v, err := t.FindOne(ctx, match)
	return v != nil, err
}

func (t *Typed[T]) decode(key string, raw []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStorageIO, err, fmt.Sprintf("kv: decode %s/%s", t.c.Name(), key))
	}
	return &v, nil
}
