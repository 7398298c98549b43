package resilience

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	"github.com/kaveri-io/lwcache/loaderwriter"
	"github.com/kaveri-io/lwcache/store"
)

// RobustOption configures a RobustLoaderWriter.
type RobustOption[K comparable, V any] func(*RobustLoaderWriter[K, V])

// WithEquals overrides the value equality used by the conditional entry
// points. The default is reflect.DeepEqual.
func WithEquals[K comparable, V any](eq func(a, b V) bool) RobustOption[K, V] {
	return func(r *RobustLoaderWriter[K, V]) { r.equals = eq }
}

// WithLogger sets the logger for invalidation warnings.
func WithLogger[K comparable, V any](logger *slog.Logger) RobustOption[K, V] {
	return func(r *RobustLoaderWriter[K, V]) { r.logger = logger }
}

/*
RobustLoaderWriter recovers from store failures by treating the loader/writer
as the source of truth. Every entry point first invalidates the affected
store mappings (failures of the invalidation itself are logged and swallowed),
then performs the operation the caller intended directly against the
loader/writer.
*/
type RobustLoaderWriter[K comparable, V any] struct {
	store  store.Store[K, V]
	lw     loaderwriter.LoaderWriter[K, V]
	equals func(a, b V) bool
	logger *slog.Logger
}

// NewRobust builds a RobustLoaderWriter over the given store and loader/writer.
func NewRobust[K comparable, V any](st store.Store[K, V], lw loaderwriter.LoaderWriter[K, V], opts ...RobustOption[K, V]) *RobustLoaderWriter[K, V] {
	r := &RobustLoaderWriter[K, V]{
		store:  st,
		lw:     lw,
		equals: func(a, b V) bool { return reflect.DeepEqual(a, b) },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// cleanUp drops the possibly-inconsistent mapping for key. The store is
// already failing, so a failure here is expected and only logged.
func (r *RobustLoaderWriter[K, V]) cleanUp(key K) {
	if err := r.store.Remove(key); err != nil {
		r.logger.Warn("cache invalidation failed", "key", key, "error", err)
	}
}

func (r *RobustLoaderWriter[K, V]) cleanUpAll(keys []K) {
	for _, key := range keys {
		r.cleanUp(key)
	}
}

func (r *RobustLoaderWriter[K, V]) GetFailure(ctx context.Context, key K, access *store.AccessError, cause error) (V, bool, error) {
	r.cleanUp(key)
	var zero V
	if cause != nil {
		return zero, false, cause
	}
	value, found, err := r.lw.Load(ctx, key)
	if err != nil {
		return zero, false, loaderwriter.NewLoadingError(err)
	}
	return value, found, nil
}

func (r *RobustLoaderWriter[K, V]) ContainsKeyFailure(key K, access *store.AccessError) (bool, error) {
	r.cleanUp(key)
	return false, nil
}

func (r *RobustLoaderWriter[K, V]) PutFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) error {
	r.cleanUp(key)
	if cause != nil {
		return cause
	}
	if err := r.lw.Write(ctx, key, value); err != nil {
		return loaderwriter.NewWritingError(err)
	}
	return nil
}

func (r *RobustLoaderWriter[K, V]) RemoveFailure(ctx context.Context, key K, access *store.AccessError, cause error) error {
	r.cleanUp(key)
	if cause != nil {
		return cause
	}
	if err := r.lw.Delete(ctx, key); err != nil {
		return loaderwriter.NewWritingError(err)
	}
	return nil
}

func (r *RobustLoaderWriter[K, V]) ClearFailure(access *store.AccessError) error {
	if err := r.store.Clear(); err != nil {
		r.logger.Warn("cache invalidation failed", "error", err)
	}
	return nil
}

func (r *RobustLoaderWriter[K, V]) PutIfAbsentFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (V, bool, error) {
	r.cleanUp(key)
	var zero V
	if cause != nil {
		return zero, false, cause
	}
	prior, found, err := r.lw.Load(ctx, key)
	if err != nil {
		return zero, false, loaderwriter.NewLoadingError(err)
	}
	if found {
		return prior, true, nil
	}
	if err := r.lw.Write(ctx, key, value); err != nil {
		return zero, false, loaderwriter.NewWritingError(err)
	}
	return zero, false, nil
}

func (r *RobustLoaderWriter[K, V]) ConditionalRemoveFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (bool, error) {
	r.cleanUp(key)
	if cause != nil {
		return false, cause
	}
	prior, found, err := r.lw.Load(ctx, key)
	if err != nil {
		return false, loaderwriter.NewLoadingError(err)
	}
	if !found || !r.equals(prior, value) {
		return false, nil
	}
	if err := r.lw.Delete(ctx, key); err != nil {
		return false, loaderwriter.NewWritingError(err)
	}
	return true, nil
}

func (r *RobustLoaderWriter[K, V]) ReplaceFailure(ctx context.Context, key K, value V, access *store.AccessError, cause error) (V, bool, error) {
	r.cleanUp(key)
	var zero V
	if cause != nil {
		return zero, false, cause
	}
	prior, found, err := r.lw.Load(ctx, key)
	if err != nil {
		return zero, false, loaderwriter.NewLoadingError(err)
	}
	if !found {
		return zero, false, nil
	}
	if err := r.lw.Write(ctx, key, value); err != nil {
		return zero, false, loaderwriter.NewWritingError(err)
	}
	return prior, true, nil
}

func (r *RobustLoaderWriter[K, V]) ConditionalReplaceFailure(ctx context.Context, key K, oldValue, newValue V, access *store.AccessError, cause error) (bool, error) {
	r.cleanUp(key)
	if cause != nil {
		return false, cause
	}
	prior, found, err := r.lw.Load(ctx, key)
	if err != nil {
		return false, loaderwriter.NewLoadingError(err)
	}
	if !found || !r.equals(prior, oldValue) {
		return false, nil
	}
	if err := r.lw.Write(ctx, key, newValue); err != nil {
		return false, loaderwriter.NewWritingError(err)
	}
	return true, nil
}

func (r *RobustLoaderWriter[K, V]) GetAllFailure(ctx context.Context, keys []K, access *store.AccessError) (map[K]V, error) {
	r.cleanUpAll(keys)
	loaded, err := r.lw.LoadAll(ctx, keys)
	if err != nil {
		var bulk *loaderwriter.BulkLoadingError[K, V]
		if errors.As(err, &bulk) {
			return nil, err
		}
		return nil, loaderwriter.NewLoadingError(err)
	}
	return loaded, nil
}

func (r *RobustLoaderWriter[K, V]) PutAllFailure(ctx context.Context, entries map[K]V, access *store.AccessError) error {
	keys := make([]K, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	r.cleanUpAll(keys)
	if err := r.lw.WriteAll(ctx, entries); err != nil {
		var bulk *loaderwriter.BulkWritingError[K]
		if errors.As(err, &bulk) {
			return err
		}
		return loaderwriter.NewWritingError(err)
	}
	return nil
}

func (r *RobustLoaderWriter[K, V]) RemoveAllFailure(ctx context.Context, keys []K, access *store.AccessError) error {
	r.cleanUpAll(keys)
	if err := r.lw.DeleteAll(ctx, keys); err != nil {
		var bulk *loaderwriter.BulkWritingError[K]
		if errors.As(err, &bulk) {
			return err
		}
		return loaderwriter.NewWritingError(err)
	}
	return nil
}

// FilterError honors rethrowing access errors: their cause is surfaced to the
// caller instead of entering recovery.
func (r *RobustLoaderWriter[K, V]) FilterError(access *store.AccessError) error {
	if access.Rethrows() {
		return access.Unwrap()
	}
	return nil
}
