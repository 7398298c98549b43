// Package store defines the atomic per-key mapping primitive the cache engine
// computes against, and the failure type that separates storage trouble from
// loader/writer trouble.
package store

import (
	"fmt"
	"time"
)

/*
ValueHolder wraps a stored value together with the metadata the store attaches
to it. The engine only ever reads Value; the timestamps belong to the store
and its expiry handling.
*/
type ValueHolder[V any] struct {
	Value        V
	Created      time.Time
	LastAccessed time.Time
	ExpireAt     time.Time // zero => no TTL
}

// Op tells the store what to do with a mapping after a remap closure ran.
type Op int

const (
	// OpKeep leaves the existing mapping untouched. Metadata is not
	// refreshed, so returning an equal value without installing it does not
	// count as a write.
	OpKeep Op = iota

	// OpInstall replaces (or creates) the mapping with the returned value.
	// A store with an expiry policy rejects the install when the value's
	// computed deadline is already past; the key then ends up absent.
	OpInstall

	// OpRemove deletes the mapping.
	OpRemove
)

// RemapFunc is the per-key compute closure. prev is only meaningful when
// present is true. The store invokes it under its per-key linearization, on
// the calling goroutine.
type RemapFunc[K comparable, V any] func(key K, prev V, present bool) (next V, op Op, err error)

// MapFunc computes a value for an absent key. found=false means the key stays
// absent.
type MapFunc[K comparable, V any] func(key K) (value V, found bool, err error)

// BulkEntry is one key of a bulk compute batch. On input, Present reports
// whether the store holds a mapping. On output, Present=false removes the
// mapping and Present=true installs Value.
type BulkEntry[K comparable, V any] struct {
	Key     K
	Value   V
	Present bool
}

// BulkRemapFunc receives a sub-batch of the keys passed to BulkCompute and
// returns the replacement entries, one per input key, in input order.
type BulkRemapFunc[K comparable, V any] func(batch []BulkEntry[K, V]) ([]BulkEntry[K, V], error)

// BulkMapFunc receives the absent keys of a BulkComputeIfAbsent sub-batch and
// returns an entry for every one of them, in input order.
type BulkMapFunc[K comparable, V any] func(keys []K) ([]BulkEntry[K, V], error)

/*
Store is the atomic per-key K -> V primitive.

Contract:
  - For a single key, compute closures are linearized: they never run
    concurrently and each observes the effects of the previous one.
  - Cross-key atomicity is not provided. Bulk operations may split their key
    set into sub-batches, invoke the closure once per sub-batch, and may do so
    concurrently across disjoint sub-batches.
  - An error returned by a closure aborts the mapping change for that batch
    and propagates to the caller unchanged.
  - Failures of the store itself surface as *AccessError.
*/
type Store[K comparable, V any] interface {
	// Get returns the current holder for key, or nil when absent.
	Get(key K) (*ValueHolder[V], error)

	// Compute runs fn for key under the per-key lock equivalent and applies
	// the returned Op. It returns the holder that is mapped afterwards, nil
	// when the key ends up absent.
	Compute(key K, fn RemapFunc[K, V]) (*ValueHolder[V], error)

	// ComputeIfAbsent runs fn only when key has no live mapping, installing
	// the returned value when found is true.
	ComputeIfAbsent(key K, fn MapFunc[K, V]) (*ValueHolder[V], error)

	// BulkCompute runs fn over all keys, possibly in sub-batches, and
	// returns the resulting mapping for every input key (nil holder for
	// absent).
	BulkCompute(keys []K, fn BulkRemapFunc[K, V]) (map[K]*ValueHolder[V], error)

	// BulkComputeIfAbsent is BulkCompute restricted to keys with no live
	// mapping; present keys are returned as-is without invoking fn on them.
	BulkComputeIfAbsent(keys []K, fn BulkMapFunc[K, V]) (map[K]*ValueHolder[V], error)

	// Remove deletes the mapping for key. Used by the resilience path as
	// best-effort invalidation.
	Remove(key K) error

	// Clear drops every mapping.
	Clear() error

	// Iterate calls fn for each live mapping of a point-in-time snapshot
	// until fn returns false.
	Iterate(fn func(key K, holder *ValueHolder[V]) bool) error
}

/*
AccessError reports that the store itself failed while performing an
operation. It is never surfaced raw to cache callers; the engine converts it
into a resilience dispatch.

A rethrowing AccessError is a diagnostic escape hatch: the resilience
strategy's error filter unwraps it and rethrows the cause instead of
recovering. It is used by failure-injection tests.
*/
type AccessError struct {
	cause   error
	rethrow bool
}

// NewAccessError wraps cause as a store access failure.
func NewAccessError(cause error) *AccessError {
	return &AccessError{cause: cause}
}

// NewRethrowingAccessError wraps cause as an access failure whose cause must
// be rethrown by the resilience error filter.
func NewRethrowingAccessError(cause error) *AccessError {
	return &AccessError{cause: cause, rethrow: true}
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("store access failure: %v", e.cause)
}

func (e *AccessError) Unwrap() error { return e.cause }

// Rethrows reports whether the resilience error filter must rethrow the cause.
func (e *AccessError) Rethrows() bool { return e.rethrow }
