package kv

import (
	"context"
	"time"

	"github.com/angelmondragon/shelfpos/pkg/metrics"
)

type instrumented struct {
	next    Collection
	metrics *metrics.StoreMetrics
}

// Instrument wraps c so every operation is timed and errors are counted.
func Instrument(c Collection, m *metrics.StoreMetrics) Collection {
	return &instrumented{next: c, metrics: m}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.metrics.Observe(string(i.next.Name()), op, time.Since(start), err)
}

func (i *instrumented) Name() Name { return i.next.Name() }

func (i *instrumented) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	defer func(start time.Time) { i.observe("get", start, err) }(time.Now())
	return i.next.Get(ctx, key)
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) (err error) {
	defer func(start time.Time) { i.observe("set", start, err) }(time.Now())
	return i.next.Set(ctx, key, value)
}

func (i *instrumented) Remove(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { i.observe("remove", start, err) }(time.Now())
	return i.next.Remove(ctx, key)
}

func (i *instrumented) Clear(ctx context.Context) (err error) {
	defer func(start time.Time) { i.observe("clear", start, err) }(time.Now())
	return i.next.Clear(ctx)
}

func (i *instrumented) Iterate(ctx context.Context, fn Visitor) (err error) {
	defer func(start time.Time) { i.observe("iterate", start, err) }(time.Now())
	return i.next.Iterate(ctx, fn)
}

func (i *instrumented) Len(ctx context.Context) (n int, err error) {
	defer func(start time.Time) { i.observe("len", start, err) }(time.Now())
	return i.next.Len(ctx)
}
