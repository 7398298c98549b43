package lwcache

import (
	"context"
	"errors"
	"sync"

	"github.com/kaveri-io/lwcache/loaderwriter"
	"github.com/kaveri-io/lwcache/stats"
	"github.com/kaveri-io/lwcache/store"
)

/*
Bulk operations fan the key set out to the store, which may split it into
sub-batches and run the batch closure concurrently across disjoint key sets.
The accumulators below are therefore guarded by a mutex; per-key state never
crosses sub-batch boundaries.

Within one bulk call a key lands in successes or failures, never both, and the
pending-entries map is drained monotonically as sub-batches are processed.
*/

func (e *Engine[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	if err := e.gate.CheckAvailable(); err != nil {
		return nil, err
	}
	for _, key := range keys {
		if err := checkKey(key); err != nil {
			return nil, err
		}
	}
	if len(keys) == 0 {
		return map[K]V{}, nil
	}

	var mu sync.Mutex
	successes := make(map[K]V)
	failures := make(map[K]error)

	result, err := e.store.BulkComputeIfAbsent(keys, func(absent []K) ([]store.BulkEntry[K, V], error) {
		entries := make([]store.BulkEntry[K, V], len(absent))
		for i, key := range absent {
			entries[i] = store.BulkEntry[K, V]{Key: key}
		}
		loaded, lerr := e.lw.LoadAll(ctx, absent)
		if lerr != nil {
			mu.Lock()
			var bulk *loaderwriter.BulkLoadingError[K, V]
			if errors.As(lerr, &bulk) {
				for k, v := range bulk.Successes {
					successes[k] = v
				}
				for k, kerr := range bulk.Failures {
					failures[k] = kerr
				}
			} else {
				for _, key := range absent {
					failures[key] = lerr
				}
			}
			mu.Unlock()
			// Nothing is installed for a failed sub-batch.
			return entries, nil
		}
		for i, key := range absent {
			if value, ok := loaded[key]; ok {
				entries[i].Value = value
				entries[i].Present = true
			}
		}
		return entries, nil
	})
	if err != nil {
		access, ferr := e.recovering(err)
		if access == nil {
			return nil, ferr
		}
		return e.resilience.GetAllFailure(ctx, keys, access)
	}

	hits := make(map[K]V, len(result))
	misses := 0
	for key, holder := range result {
		if holder != nil {
			hits[key] = holder.Value
		} else {
			misses++
		}
	}
	if len(failures) > 0 {
		for k, v := range hits {
			successes[k] = v
		}
		return nil, &loaderwriter.BulkLoadingError[K, V]{Successes: successes, Failures: failures}
	}
	e.observer.Bulk(stats.GetAllHits, len(hits))
	e.observer.Bulk(stats.GetAllMiss, misses)
	return hits, nil
}

func (e *Engine[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	pending := make(map[K]V, len(entries))
	keys := make([]K, 0, len(entries))
	for key, value := range entries {
		if err := checkKey(key); err != nil {
			return err
		}
		if err := checkValue(value); err != nil {
			return err
		}
		pending[key] = value
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return nil
	}

	var mu sync.Mutex
	successes := make(map[K]struct{})
	failures := make(map[K]error)
	installed := 0

	_, err := e.store.BulkCompute(keys, func(batch []store.BulkEntry[K, V]) ([]store.BulkEntry[K, V], error) {
		mu.Lock()
		toWrite := make(map[K]V, len(batch))
		for _, entry := range batch {
			if value, ok := pending[entry.Key]; ok {
				toWrite[entry.Key] = value
			}
		}
		mu.Unlock()

		if len(toWrite) > 0 {
			werr := e.lw.WriteAll(ctx, toWrite)
			mu.Lock()
			if werr != nil {
				var bulk *loaderwriter.BulkWritingError[K]
				if errors.As(werr, &bulk) {
					for _, k := range bulk.Successes {
						successes[k] = struct{}{}
					}
					for k, kerr := range bulk.Failures {
						failures[k] = kerr
					}
				} else {
					for k := range toWrite {
						failures[k] = werr
					}
				}
			} else {
				for k := range toWrite {
					successes[k] = struct{}{}
				}
			}
			mu.Unlock()
		}

		out := make([]store.BulkEntry[K, V], len(batch))
		mu.Lock()
		for i, entry := range batch {
			value, wasPending := pending[entry.Key]
			delete(pending, entry.Key)
			if _, ok := successes[entry.Key]; ok && wasPending {
				out[i] = store.BulkEntry[K, V]{Key: entry.Key, Value: value, Present: true}
				installed++
			} else {
				out[i] = entry
			}
		}
		mu.Unlock()
		return out, nil
	})
	if err != nil {
		access, ferr := e.recovering(err)
		if access == nil {
			return ferr
		}
		return e.resilience.PutAllFailure(ctx, entries, access)
	}
	if len(failures) > 0 {
		written := make([]K, 0, len(successes))
		for k := range successes {
			written = append(written, k)
		}
		return &loaderwriter.BulkWritingError[K]{Successes: written, Failures: failures}
	}
	e.observer.Bulk(stats.PutAll, installed)
	return nil
}

func (e *Engine[K, V]) RemoveAll(ctx context.Context, keys []K) error {
	if err := e.gate.CheckAvailable(); err != nil {
		return err
	}
	for _, key := range keys {
		if err := checkKey(key); err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return nil
	}

	var mu sync.Mutex
	remaining := make(map[K]struct{}, len(keys))
	for _, key := range keys {
		remaining[key] = struct{}{}
	}
	successes := make(map[K]struct{})
	failures := make(map[K]error)
	// Keys whose deletion outcome is undetermined; their cached mapping is
	// dropped so a stale value cannot be served.
	unknowns := make(map[K]struct{})
	removed := 0

	_, err := e.store.BulkCompute(keys, func(batch []store.BulkEntry[K, V]) ([]store.BulkEntry[K, V], error) {
		mu.Lock()
		toDelete := make([]K, 0, len(batch))
		for _, entry := range batch {
			if _, ok := remaining[entry.Key]; ok {
				toDelete = append(toDelete, entry.Key)
			}
		}
		mu.Unlock()

		if len(toDelete) > 0 {
			derr := e.lw.DeleteAll(ctx, toDelete)
			mu.Lock()
			if derr != nil {
				var bulk *loaderwriter.BulkWritingError[K]
				if errors.As(derr, &bulk) {
					for _, k := range bulk.Successes {
						successes[k] = struct{}{}
					}
					for k, kerr := range bulk.Failures {
						failures[k] = kerr
					}
				} else {
					for _, k := range toDelete {
						failures[k] = derr
						unknowns[k] = struct{}{}
					}
				}
			} else {
				for _, k := range toDelete {
					successes[k] = struct{}{}
				}
			}
			mu.Unlock()
		}

		out := make([]store.BulkEntry[K, V], len(batch))
		mu.Lock()
		for i, entry := range batch {
			if _, ok := successes[entry.Key]; ok {
				out[i] = store.BulkEntry[K, V]{Key: entry.Key}
				delete(remaining, entry.Key)
				if entry.Present {
					removed++
				}
			} else if _, ok := unknowns[entry.Key]; ok {
				out[i] = store.BulkEntry[K, V]{Key: entry.Key}
			} else {
				out[i] = entry
			}
		}
		mu.Unlock()
		return out, nil
	})
	if err != nil {
		access, ferr := e.recovering(err)
		if access == nil {
			return ferr
		}
		return e.resilience.RemoveAllFailure(ctx, keys, access)
	}
	if len(failures) > 0 {
		deleted := make([]K, 0, len(successes))
		for k := range successes {
			deleted = append(deleted, k)
		}
		return &loaderwriter.BulkWritingError[K]{Successes: deleted, Failures: failures}
	}
	e.observer.Bulk(stats.RemoveAll, removed)
	return nil
}
