package loaderwriter

import (
	"context"
	"log/slog"
	"sync"
)

// pendingOp is one queued mutation waiting to reach the source.
type pendingOp[K comparable, V any] struct {
	key    K
	value  V
	delete bool
}

/*
WriteBehind makes single-key writes and deletes asynchronous: mutations are
queued and a background worker applies them to the wrapped LoaderWriter in
order.

The source becomes eventually consistent: a Load racing a queued write may
observe the old value. When the queue is full the mutation is applied
synchronously instead of dropped, so the source never silently misses an
update; it just loses the latency win for that call.

Bulk operations stay synchronous. Their per-key success/failure accounting
has to reach the caller, which a queue cannot do.
*/
type WriteBehind[K comparable, V any] struct {
	next   LoaderWriter[K, V]
	ch     chan pendingOp[K, V]
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

// NewWriteBehind wraps next with an asynchronous write queue of the given
// buffer size. Close must be called to flush pending mutations.
func NewWriteBehind[K comparable, V any](next LoaderWriter[K, V], buffer int, logger *slog.Logger) *WriteBehind[K, V] {
	if logger == nil {
		logger = slog.Default()
	}
	w := &WriteBehind[K, V]{
		next:   next,
		ch:     make(chan pendingOp[K, V], buffer),
		logger: logger,
	}
	w.wg.Add(1)
	go w.worker()
	return w
}

func (w *WriteBehind[K, V]) worker() {
	defer w.wg.Done()
	for op := range w.ch {
		var err error
		if op.delete {
			err = w.next.Delete(context.Background(), op.key)
		} else {
			err = w.next.Write(context.Background(), op.key, op.value)
		}
		if err != nil {
			w.logger.Warn("write-behind flush failed", "key", op.key, "error", err)
		}
	}
}

func (w *WriteBehind[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	return w.next.Load(ctx, key)
}

func (w *WriteBehind[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	return w.next.LoadAll(ctx, keys)
}

func (w *WriteBehind[K, V]) Write(ctx context.Context, key K, value V) error {
	select {
	case w.ch <- pendingOp[K, V]{key: key, value: value}:
		return nil
	default:
		// Queue full: fall back to a synchronous write.
		return w.next.Write(ctx, key, value)
	}
}

func (w *WriteBehind[K, V]) WriteAll(ctx context.Context, entries map[K]V) error {
	return w.next.WriteAll(ctx, entries)
}

func (w *WriteBehind[K, V]) Delete(ctx context.Context, key K) error {
	select {
	case w.ch <- pendingOp[K, V]{key: key, delete: true}:
		return nil
	default:
		return w.next.Delete(ctx, key)
	}
}

func (w *WriteBehind[K, V]) DeleteAll(ctx context.Context, keys []K) error {
	return w.next.DeleteAll(ctx, keys)
}

// Close stops accepting queued mutations and blocks until the worker has
// flushed everything already queued.
func (w *WriteBehind[K, V]) Close() {
	w.closeOnce.Do(func() {
		close(w.ch)
		w.wg.Wait()
	})
}
