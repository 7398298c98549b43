/*
Package lwcache is an in-process key/value cache that keeps an external system
of record in the loop: reads that miss go through a loader, and every mutation
goes through a writer before it becomes visible in the cache. When the cache's
own store fails, a resilience strategy answers the caller from the external
source directly, so the source-of-truth contract survives cache trouble.

The engine runs on the caller's goroutine. It owns no pool and adds no
synchronization between operations beyond the store's per-key linearization;
a bulk call guards only its own call-local accumulators with a mutex.
*/
package lwcache

import "context"

/*
Cache is the operation surface of the loader/writer cache.

Presence is reported with the (V, bool) pair; there is no sentinel value.
Errors of kind *loaderwriter.LoadingError and *loaderwriter.WritingError carry
the external source's failure; *status.LifecycleError reports use outside the
Available state; *ArgumentError reports a nil key or value.
*/
type Cache[K comparable, V any] interface {
	// Get returns the value mapped to key, loading it from the external
	// source on a miss.
	Get(ctx context.Context, key K) (V, bool, error)

	// Put writes value to the external source and installs it.
	Put(ctx context.Context, key K, value V) error

	// Remove deletes key from the external source and the cache.
	Remove(ctx context.Context, key K) error

	// ContainsKey probes the cache only; the loader is never consulted.
	ContainsKey(key K) (bool, error)

	// PutIfAbsent installs value only when key has no mapping. It returns
	// the pre-existing value when there was one (found=true), in which case
	// nothing was written.
	PutIfAbsent(ctx context.Context, key K, value V) (V, bool, error)

	// CompareAndRemove deletes key only when its current value equals
	// value, and reports whether it did.
	CompareAndRemove(ctx context.Context, key K, value V) (bool, error)

	// Replace installs value only when key already has a mapping, and
	// returns the prior value when it did.
	Replace(ctx context.Context, key K, value V) (V, bool, error)

	// CompareAndReplace installs newValue only when the current value
	// equals oldValue, and reports whether it did.
	CompareAndReplace(ctx context.Context, key K, oldValue, newValue V) (bool, error)

	// GetAll returns the mappings for keys, loading misses in bulk. Keys
	// the source does not know are absent from the result.
	GetAll(ctx context.Context, keys []K) (map[K]V, error)

	// PutAll writes all entries to the external source and installs them.
	PutAll(ctx context.Context, entries map[K]V) error

	// RemoveAll deletes all keys from the external source and the cache.
	RemoveAll(ctx context.Context, keys []K) error

	// Clear drops every cached mapping. The external source is untouched.
	Clear() error

	// Entries calls fn for each live mapping of a point-in-time snapshot
	// until fn returns false. The loader is not consulted.
	Entries(fn func(key K, value V) bool) error

	// Close transitions the cache to Closed and releases its resources.
	Close() error
}
