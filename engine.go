package lwcache

import (
	"context"
	"errors"
	"log/slog"
	"reflect"

	"github.com/kaveri-io/lwcache/loaderwriter"
	"github.com/kaveri-io/lwcache/resilience"
	"github.com/kaveri-io/lwcache/stats"
	"github.com/kaveri-io/lwcache/status"
	"github.com/kaveri-io/lwcache/store"
)

// Option configures an Engine.
type Option[K comparable, V any] func(*Engine[K, V])

// WithResilience replaces the default robust strategy.
func WithResilience[K comparable, V any](s resilience.Strategy[K, V]) Option[K, V] {
	return func(e *Engine[K, V]) { e.resilience = s }
}

// WithObserver installs a statistics observer.
func WithObserver[K comparable, V any](o stats.Observer) Option[K, V] {
	return func(e *Engine[K, V]) { e.observer = o }
}

// WithLogger sets the engine logger.
func WithLogger[K comparable, V any](logger *slog.Logger) Option[K, V] {
	return func(e *Engine[K, V]) { e.logger = logger }
}

// WithLoaderInAtomics controls whether the conditional operations
// (PutIfAbsent, CompareAndRemove, Replace, CompareAndReplace) consult the
// loader for keys absent from the cache, treating the external source as the
// authority on presence. Enabled by default.
func WithLoaderInAtomics[K comparable, V any](enabled bool) Option[K, V] {
	return func(e *Engine[K, V]) { e.useLoaderInAtomics = enabled }
}

// WithEqualsFunc overrides the value equality used by the conditional
// operations. The default is reflect.DeepEqual.
func WithEqualsFunc[K comparable, V any](eq func(a, b V) bool) Option[K, V] {
	return func(e *Engine[K, V]) { e.equals = eq }
}

/*
Engine is the loader/writer cache. It orchestrates every operation as a
compute closure handed to the store: the closure drives the loader/writer,
records its outcome in call-local state, and tells the store what to install.
The store's per-key linearization is the only synchronization between
operations (bulk calls also lock their call-local accumulators); the writer runs
before the value it wrote becomes visible, and the loader runs before a loaded
value is observable.

When the store itself fails the engine hands the recorded loader/writer
outcome to its resilience strategy, which invalidates the affected mappings
and answers the caller from the external source.
*/
type Engine[K comparable, V any] struct {
	store              store.Store[K, V]
	lw                 loaderwriter.LoaderWriter[K, V]
	resilience         resilience.Strategy[K, V]
	gate               *status.Gate
	observer           stats.Observer
	logger             *slog.Logger
	useLoaderInAtomics bool
	equals             func(a, b V) bool
}

// New builds an Engine over the given store and loader/writer. The returned
// engine is Uninitialized; call Init before use.
func New[K comparable, V any](st store.Store[K, V], lw loaderwriter.LoaderWriter[K, V], opts ...Option[K, V]) *Engine[K, V] {
	e := &Engine[K, V]{
		store:              st,
		lw:                 lw,
		gate:               status.NewGate(),
		observer:           stats.Noop{},
		logger:             slog.Default(),
		useLoaderInAtomics: true,
		equals:             func(a, b V) bool { return reflect.DeepEqual(a, b) },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.resilience == nil {
		e.resilience = resilience.NewRobust(st, lw,
			resilience.WithEquals[K](e.equals),
			resilience.WithLogger[K, V](e.logger))
	}
	return e
}

// Init transitions the engine to Available.
func (e *Engine[K, V]) Init() error {
	return e.gate.Init()
}

// Close transitions the engine to Closed and closes the loader/writer when it
// owns closable resources (e.g. a write-behind queue).
func (e *Engine[K, V]) Close() error {
	if err := e.gate.Close(); err != nil {
		return err
	}
	switch c := e.lw.(type) {
	case interface{ Close() error }:
		if err := c.Close(); err != nil {
			e.logger.Warn("loader/writer close failed", "error", err)
		}
	case interface{ Close() }:
		c.Close()
	}
	return nil
}

// State returns the engine's lifecycle state.
func (e *Engine[K, V]) State() status.State {
	return e.gate.State()
}

// recovering classifies err after a failed store call. When err is a store
// access failure it runs the resilience error filter and reports
// access != nil; any filter rethrow comes back in out.
func (e *Engine[K, V]) recovering(err error) (access *store.AccessError, out error) {
	if !errors.As(err, &access) {
		return nil, err
	}
	if rethrow := e.resilience.FilterError(access); rethrow != nil {
		return nil, rethrow
	}
	return access, nil
}

func (e *Engine[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if err := e.gate.CheckAvailable(); err != nil {
		return zero, false, err
	}
	if err := checkKey(key); err != nil {
		return zero, false, err
	}

	var loadErr error
	holder, err := e.store.ComputeIfAbsent(key, func(k K) (V, bool, error) {
		value, found, lerr := e.lw.Load(ctx, k)
		if lerr != nil {
			loadErr = loaderwriter.NewLoadingError(lerr)
			return zero, false, loadErr
		}
		return value, found, nil
	})
	if err != nil {
		e.observer.Get(stats.GetFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return zero, false, ferr
		}
		return e.resilience.GetFailure(ctx, key, access, loadErr)
	}
	if holder == nil {
		e.observer.Get(stats.GetMiss)
		return zero, false, nil
	}
	e.observer.Get(stats.GetHit)
	return holder.Value, true, nil
}

func (e *Engine[K, V]) Put(ctx context.Context, key K, value V) error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if err := checkValue(value); err != nil {
		return err
	}

	var writeErr error
	_, err := e.store.Compute(key, func(k K, prev V, present bool) (V, store.Op, error) {
		if werr := e.lw.Write(ctx, k, value); werr != nil {
			writeErr = loaderwriter.NewWritingError(werr)
			return prev, store.OpKeep, writeErr
		}
		return value, store.OpInstall, nil
	})
	if err != nil {
		e.observer.Put(stats.PutFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return ferr
		}
		return e.resilience.PutFailure(ctx, key, value, access, writeErr)
	}
	e.observer.Put(stats.PutPut)
	return nil
}

func (e *Engine[K, V]) Remove(ctx context.Context, key K) error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}

	var modified bool
	var writeErr error
	var zero V
	_, err := e.store.Compute(key, func(k K, prev V, present bool) (V, store.Op, error) {
		modified = present
		if werr := e.lw.Delete(ctx, k); werr != nil {
			writeErr = loaderwriter.NewWritingError(werr)
			return prev, store.OpKeep, writeErr
		}
		return zero, store.OpRemove, nil
	})
	if err != nil {
		e.observer.Remove(stats.RemoveFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return ferr
		}
		return e.resilience.RemoveFailure(ctx, key, access, writeErr)
	}
	if modified {
		e.observer.Remove(stats.RemoveSuccess)
	} else {
		e.observer.Remove(stats.RemoveNoop)
	}
	return nil
}

func (e *Engine[K, V]) ContainsKey(key K) (bool, error) {
	if err := e.gate.CheckAvailable(); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}

	holder, err := e.store.Get(key)
	if err != nil {
		access, ferr := e.recovering(err)
		if access == nil {
			return false, ferr
		}
		return e.resilience.ContainsKeyFailure(key, access)
	}
	return holder != nil, nil
}

func (e *Engine[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if err := e.gate.CheckAvailable(); err != nil {
		return zero, false, err
	}
	if err := checkKey(key); err != nil {
		return zero, false, err
	}
	if err := checkValue(value); err != nil {
		return zero, false, err
	}

	var lwErr error
	var wrote bool
	holder, err := e.store.ComputeIfAbsent(key, func(k K) (V, bool, error) {
		if e.useLoaderInAtomics {
			prior, found, lerr := e.lw.Load(ctx, k)
			if lerr != nil {
				lwErr = loaderwriter.NewLoadingError(lerr)
				return zero, false, lwErr
			}
			if found {
				// The source already holds a value; adopt it and do
				// not write.
				return prior, true, nil
			}
		}
		if werr := e.lw.Write(ctx, k, value); werr != nil {
			lwErr = loaderwriter.NewWritingError(werr)
			return zero, false, lwErr
		}
		wrote = true
		return value, true, nil
	})
	if err != nil {
		e.observer.Put(stats.PutFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return zero, false, ferr
		}
		return e.resilience.PutIfAbsentFailure(ctx, key, value, access, lwErr)
	}
	if wrote {
		e.observer.Put(stats.PutPut)
		return zero, false, nil
	}
	e.observer.Put(stats.PutNoop)
	if holder == nil {
		return zero, false, nil
	}
	return holder.Value, true, nil
}

func (e *Engine[K, V]) CompareAndRemove(ctx context.Context, key K, value V) (bool, error) {
	if err := e.gate.CheckAvailable(); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}
	if err := checkValue(value); err != nil {
		return false, err
	}

	var zero V
	outcome := stats.ConditionalRemoveKeyMissing
	var removed bool
	var lwErr error
	_, err := e.store.Compute(key, func(k K, prev V, present bool) (V, store.Op, error) {
		inCache, inPresent, fromLoader, lerr := e.presentOrLoaded(ctx, k, prev, present, &lwErr)
		if lerr != nil {
			return zero, store.OpKeep, lerr
		}
		if !inPresent {
			return zero, store.OpKeep, nil
		}
		if !e.equals(inCache, value) {
			outcome = stats.ConditionalRemoveKeyPresent
			if fromLoader {
				return inCache, store.OpInstall, nil
			}
			return inCache, store.OpKeep, nil
		}
		if werr := e.lw.Delete(ctx, k); werr != nil {
			lwErr = loaderwriter.NewWritingError(werr)
			return prev, store.OpKeep, lwErr
		}
		removed = true
		outcome = stats.ConditionalRemoveSuccess
		return zero, store.OpRemove, nil
	})
	if err != nil {
		e.observer.ConditionalRemove(stats.ConditionalRemoveFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return false, ferr
		}
		return e.resilience.ConditionalRemoveFailure(ctx, key, value, access, lwErr)
	}
	e.observer.ConditionalRemove(outcome)
	return removed, nil
}

func (e *Engine[K, V]) Replace(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if err := e.gate.CheckAvailable(); err != nil {
		return zero, false, err
	}
	if err := checkKey(key); err != nil {
		return zero, false, err
	}
	if err := checkValue(value); err != nil {
		return zero, false, err
	}

	var old V
	var oldPresent bool
	var lwErr error
	_, err := e.store.Compute(key, func(k K, prev V, present bool) (V, store.Op, error) {
		inCache, inPresent, _, lerr := e.presentOrLoaded(ctx, k, prev, present, &lwErr)
		if lerr != nil {
			return zero, store.OpKeep, lerr
		}
		if !inPresent {
			return zero, store.OpKeep, nil
		}
		if werr := e.lw.Write(ctx, k, value); werr != nil {
			lwErr = loaderwriter.NewWritingError(werr)
			return prev, store.OpKeep, lwErr
		}
		old, oldPresent = inCache, true
		return value, store.OpInstall, nil
	})
	if err != nil {
		e.observer.Replace(stats.ReplaceFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return zero, false, ferr
		}
		return e.resilience.ReplaceFailure(ctx, key, value, access, lwErr)
	}
	if oldPresent {
		e.observer.Replace(stats.ReplaceHit)
		return old, true, nil
	}
	e.observer.Replace(stats.ReplaceMissNotPresent)
	return zero, false, nil
}

func (e *Engine[K, V]) CompareAndReplace(ctx context.Context, key K, oldValue, newValue V) (bool, error) {
	if err := e.gate.CheckAvailable(); err != nil {
		return false, err
	}
	if err := checkKey(key); err != nil {
		return false, err
	}
	if err := checkValue(oldValue); err != nil {
		return false, err
	}
	if err := checkValue(newValue); err != nil {
		return false, err
	}

	var zero V
	outcome := stats.ReplaceMissNotPresent
	var replaced bool
	var lwErr error
	_, err := e.store.Compute(key, func(k K, prev V, present bool) (V, store.Op, error) {
		inCache, inPresent, fromLoader, lerr := e.presentOrLoaded(ctx, k, prev, present, &lwErr)
		if lerr != nil {
			return zero, store.OpKeep, lerr
		}
		if !inPresent {
			return zero, store.OpKeep, nil
		}
		if !e.equals(inCache, oldValue) {
			outcome = stats.ReplaceMissPresent
			if fromLoader {
				return inCache, store.OpInstall, nil
			}
			return inCache, store.OpKeep, nil
		}
		if werr := e.lw.Write(ctx, k, newValue); werr != nil {
			lwErr = loaderwriter.NewWritingError(werr)
			return prev, store.OpKeep, lwErr
		}
		replaced = true
		outcome = stats.ReplaceHit
		return newValue, store.OpInstall, nil
	})
	if err != nil {
		e.observer.Replace(stats.ReplaceFailure)
		access, ferr := e.recovering(err)
		if access == nil {
			return false, ferr
		}
		return e.resilience.ConditionalReplaceFailure(ctx, key, oldValue, newValue, access, lwErr)
	}
	e.observer.Replace(outcome)
	return replaced, nil
}

// presentOrLoaded resolves the value a conditional operation compares
// against: the cached value when present, otherwise the loader's answer when
// the engine trusts the source inside atomics. fromLoader tells the caller
// whether an install is needed to retain the value.
func (e *Engine[K, V]) presentOrLoaded(ctx context.Context, key K, prev V, present bool, lwErr *error) (V, bool, bool, error) {
	if present {
		return prev, true, false, nil
	}
	var zero V
	if !e.useLoaderInAtomics {
		return zero, false, false, nil
	}
	loaded, found, lerr := e.lw.Load(ctx, key)
	if lerr != nil {
		*lwErr = loaderwriter.NewLoadingError(lerr)
		return zero, false, false, *lwErr
	}
	return loaded, found, true, nil
}

func (e *Engine[K, V]) Clear() error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	if err := e.store.Clear(); err != nil {
		access, ferr := e.recovering(err)
		if access == nil {
			return ferr
		}
		return e.resilience.ClearFailure(access)
	}
	return nil
}

func (e *Engine[K, V]) Entries(fn func(key K, value V) bool) error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	return e.store.Iterate(func(key K, holder *store.ValueHolder[V]) bool {
		return fn(key, holder.Value)
	})
}

var _ Cache[string, string] = (*Engine[string, string])(nil)
