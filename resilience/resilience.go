/*
Package resilience defines the recovery path the cache engine takes when its
store fails. A Strategy entry point receives the store failure (and, when the
engine already knows it, the proximate loader/writer error), makes the cache
state safe, and answers the caller from the authoritative source where it can.
*/
package resilience

import (
	"context"

	"github.com/kaveri-io/lwcache/store"
)

/*
Strategy handles store access failures on behalf of the cache engine. One entry
point exists per cache operation; each is called at most once per failed
operation, from the goroutine that ran it.

The cause parameter, where present, is the loader/writer error the engine
recorded before the store failed. A non-nil cause means the loader/writer side
of the operation already ran and failed; the strategy must translate it without
driving the loader/writer again.
*/
type Strategy[K comparable, V any] interface {
	// GetFailure recovers a read. It returns the authoritative value for
	// key, or found=false when the source has none.
	GetFailure(ctx context.Context, key K, access *store.AccessError, cause error) (V, bool, error)

	// ContainsKeyFailure recovers a presence probe.
	ContainsKeyFailure(key K, access *store.AccessError) (bool, error)

	// PutFailure recovers an unconditional write.
	PutFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) error

	// RemoveFailure recovers an unconditional removal.
	RemoveFailure(ctx context.Context, key K, access *store.AccessError, cause error) error

	// ClearFailure recovers a full clear.
	ClearFailure(access *store.AccessError) error

	// PutIfAbsentFailure recovers a putIfAbsent. It returns the prior value
	// when the source already held one, or found=false when the new value
	// was written.
	PutIfAbsentFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (V, bool, error)

	// ConditionalRemoveFailure recovers a compare-and-remove. removed
	// reports whether the source held a value equal to value and it was
	// deleted.
	ConditionalRemoveFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (removed bool, err error)

	// ReplaceFailure recovers an unconditional replace. It returns the
	// prior value when the source held one (and the new value was written),
	// or found=false when the source held none.
	ReplaceFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (V, bool, error)

	// ConditionalReplaceFailure recovers a compare-and-replace. replaced
	// reports whether the source held a value equal to oldValue and the new
	// value was written.
	ConditionalReplaceFailure(ctx context.Context, key K, oldValue, newValue V, access *store.AccessError, cause error) (replaced bool, err error)

	// GetAllFailure recovers a bulk read. The returned map holds the keys
	// the source knows; absent keys are simply missing from it.
	GetAllFailure(ctx context.Context, keys []K, access *store.AccessError) (map[K]V, error)

	// PutAllFailure recovers a bulk write.
	PutAllFailure(ctx context.Context, entries map[K]V, access *store.AccessError) error

	// RemoveAllFailure recovers a bulk removal.
	RemoveAllFailure(ctx context.Context, keys []K, access *store.AccessError) error

	// FilterError inspects a store failure before recovery starts. A
	// non-nil return short-circuits the strategy: the engine surfaces the
	// returned error to the caller instead of recovering. Used by
	// failure-injection tests via rethrowing access errors.
	FilterError(access *store.AccessError) error
}
