package loaderwriter

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"
)

/*
Deduped collapses concurrent Load calls for the same key into a single call
against the wrapped LoaderWriter.

The store already linearizes loads that happen inside a compute closure, but
resilience-path loads run outside the store when it is broken. Under a store
outage every reader of a hot key would otherwise hammer the source with the
same load.
*/
type Deduped[K comparable, V any] struct {
	next LoaderWriter[K, V]
	sf   singleflight.Group
}

type loadResult[V any] struct {
	value V
	found bool
}

// Dedupe wraps next so that concurrent loads of one key share a single call.
func Dedupe[K comparable, V any](next LoaderWriter[K, V]) *Deduped[K, V] {
	return &Deduped[K, V]{next: next}
}

func (d *Deduped[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	v, err, _ := d.sf.Do(fmt.Sprintf("%v", key), func() (any, error) {
		value, found, err := d.next.Load(ctx, key)
		if err != nil {
			return nil, err
		}
		return loadResult[V]{value: value, found: found}, nil
	})
	if err != nil {
		var zero V
		return zero, false, err
	}
	res := v.(loadResult[V])
	return res.value, res.found, nil
}

func (d *Deduped[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	return d.next.LoadAll(ctx, keys)
}

func (d *Deduped[K, V]) Write(ctx context.Context, key K, value V) error {
	return d.next.Write(ctx, key, value)
}

func (d *Deduped[K, V]) WriteAll(ctx context.Context, entries map[K]V) error {
	return d.next.WriteAll(ctx, entries)
}

func (d *Deduped[K, V]) Delete(ctx context.Context, key K) error {
	return d.next.Delete(ctx, key)
}

func (d *Deduped[K, V]) DeleteAll(ctx context.Context, keys []K) error {
	return d.next.DeleteAll(ctx, keys)
}
