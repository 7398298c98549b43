/*
Package heap is the reference in-memory implementation of the store contract.

The key space is split across independent shards. Each shard holds a plain
map guarded by its own mutex; compute closures run on the calling goroutine
while that mutex is held, which is what gives the store its per-key
linearization. Reads are frequent but cheap, and splitting the lock across
shards keeps unrelated keys from contending.
*/
package heap

import (
	"sync"
	"time"

	"github.com/kaveri-io/lwcache/eviction"
	"github.com/kaveri-io/lwcache/events"
	"github.com/kaveri-io/lwcache/expiry"
	"github.com/kaveri-io/lwcache/store"
)

// Option configures a Store.
type Option[K comparable, V any] func(*Store[K, V])

// WithShards sets the shard count. Default 16.
func WithShards[K comparable, V any](n int) Option[K, V] {
	return func(s *Store[K, V]) { s.shardCount = n }
}

// WithCapacity bounds the total entry count. The budget is split evenly
// across shards. Zero means unbounded.
func WithCapacity[K comparable, V any](n int) Option[K, V] {
	return func(s *Store[K, V]) { s.capacity = n }
}

// WithEviction selects the eviction policy used when a shard is full.
// Default LRU.
func WithEviction[K comparable, V any](t eviction.PolicyType) Option[K, V] {
	return func(s *Store[K, V]) { s.policyType = t }
}

// WithExpiry sets the expiry policy stamped onto installed mappings.
// Default no expiry.
func WithExpiry[K comparable, V any](p expiry.Policy[K, V]) Option[K, V] {
	return func(s *Store[K, V]) { s.expiry = p }
}

// WithListener sets the listener notified after each mutation.
func WithListener[K comparable, V any](l events.Listener[K, V]) Option[K, V] {
	return func(s *Store[K, V]) { s.listener = l }
}

// Store is the sharded in-memory store.
type Store[K comparable, V any] struct {
	shards     []*shard[K, V]
	shardCount int
	capacity   int
	policyType eviction.PolicyType
	expiry     expiry.Policy[K, V]
	listener   events.Listener[K, V]
}

type shard[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*store.ValueHolder[V]
	evict   eviction.Policy[K]
}

// New creates a heap store.
func New[K comparable, V any](opts ...Option[K, V]) *Store[K, V] {
	s := &Store[K, V]{
		shardCount: 16,
		policyType: eviction.LRU,
		expiry:     expiry.NoExpiry[K, V](),
		listener:   events.Noop[K, V]{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shards = make([]*shard[K, V], s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard[K, V]{
			entries: make(map[K]*store.ValueHolder[V]),
			evict:   eviction.New[K](s.policyType),
		}
	}
	return s
}

func (s *Store[K, V]) shardFor(key K) *shard[K, V] {
	return s.shards[shardIndex(key, len(s.shards))]
}

// liveLocked returns the holder for key, reaping it first if it has expired.
// The shard mutex must be held.
func (s *Store[K, V]) liveLocked(sh *shard[K, V], key K, now time.Time) *store.ValueHolder[V] {
	holder, ok := sh.entries[key]
	if !ok {
		return nil
	}
	if expiry.Expired(holder.ExpireAt, now) {
		delete(sh.entries, key)
		sh.evict.Remove(key)
		s.listener.OnEvent(events.Event[K, V]{
			Type: events.Expired, Key: key,
			OldValue: holder.Value, OldPresent: true,
			At: now,
		})
		return nil
	}
	return holder
}

// touchLocked applies access-time expiry and eviction bookkeeping.
func (s *Store[K, V]) touchLocked(sh *shard[K, V], key K, holder *store.ValueHolder[V], now time.Time) {
	holder.LastAccessed = now
	if at := s.expiry.ForAccess(key, holder.Value, now); !at.IsZero() {
		holder.ExpireAt = at
	}
	sh.evict.OnGet(key)
}

// installLocked makes key map to value, evicting a victim first when the
// shard is at capacity. An expiry deadline at or before now rejects the
// install: the mapping ends up absent and nil is returned.
func (s *Store[K, V]) installLocked(sh *shard[K, V], key K, value V, prev *store.ValueHolder[V], now time.Time) *store.ValueHolder[V] {
	var expireAt time.Time
	created := now
	if prev != nil {
		expireAt = s.expiry.ForUpdate(key, prev.Value, value, now)
		created = prev.Created
	} else {
		expireAt = s.expiry.ForCreation(key, value, now)
	}

	if expiry.Expired(expireAt, now) {
		s.removeLocked(sh, key, prev, now)
		return nil
	}
	if prev == nil {
		s.evictIfFullLocked(sh, now)
	}

	holder := &store.ValueHolder[V]{
		Value:        value,
		Created:      created,
		LastAccessed: now,
		ExpireAt:     expireAt,
	}
	sh.entries[key] = holder

	if prev != nil {
		sh.evict.OnGet(key)
		s.listener.OnEvent(events.Event[K, V]{
			Type: events.Updated, Key: key,
			OldValue: prev.Value, OldPresent: true,
			NewValue: value, NewPresent: true,
			At: now,
		})
	} else {
		sh.evict.OnPut(key)
		s.listener.OnEvent(events.Event[K, V]{
			Type: events.Created, Key: key,
			NewValue: value, NewPresent: true,
			At: now,
		})
	}
	return holder
}

func (s *Store[K, V]) evictIfFullLocked(sh *shard[K, V], now time.Time) {
	if s.capacity <= 0 {
		return
	}
	perShard := s.capacity / len(s.shards)
	if perShard < 1 {
		perShard = 1
	}
	for len(sh.entries) >= perShard {
		victim, ok := sh.evict.Evict()
		if !ok {
			return
		}
		old, had := sh.entries[victim]
		delete(sh.entries, victim)
		if had {
			s.listener.OnEvent(events.Event[K, V]{
				Type: events.Evicted, Key: victim,
				OldValue: old.Value, OldPresent: true,
				At: now,
			})
		}
	}
}

func (s *Store[K, V]) removeLocked(sh *shard[K, V], key K, prev *store.ValueHolder[V], now time.Time) {
	delete(sh.entries, key)
	sh.evict.Remove(key)
	if prev != nil {
		s.listener.OnEvent(events.Event[K, V]{
			Type: events.Removed, Key: key,
			OldValue: prev.Value, OldPresent: true,
			At: now,
		})
	}
}

// Get returns the live holder for key, nil when absent or expired.
func (s *Store[K, V]) Get(key K) (*store.ValueHolder[V], error) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	holder := s.liveLocked(sh, key, now)
	if holder == nil {
		return nil, nil
	}
	s.touchLocked(sh, key, holder, now)
	return holder, nil
}

// Compute runs fn under the shard lock and applies the returned op.
func (s *Store[K, V]) Compute(key K, fn store.RemapFunc[K, V]) (*store.ValueHolder[V], error) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	holder := s.liveLocked(sh, key, now)
	var prev V
	present := holder != nil
	if present {
		prev = holder.Value
	}

	next, op, err := fn(key, prev, present)
	if err != nil {
		return nil, err
	}

	switch op {
	case store.OpKeep:
		return holder, nil
	case store.OpRemove:
		s.removeLocked(sh, key, holder, now)
		return nil, nil
	default:
		return s.installLocked(sh, key, next, holder, now), nil
	}
}

// ComputeIfAbsent runs fn only when key has no live mapping.
func (s *Store[K, V]) ComputeIfAbsent(key K, fn store.MapFunc[K, V]) (*store.ValueHolder[V], error) {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if holder := s.liveLocked(sh, key, now); holder != nil {
		s.touchLocked(sh, key, holder, now)
		return holder, nil
	}

	value, found, err := fn(key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return s.installLocked(sh, key, value, nil, now), nil
}

/*
BulkCompute groups keys by shard and runs fn once per shard group, under that
shard's lock. Each group is a sub-batch in input order, so a closure shared
across a bulk call observes the multi-invocation behavior the store contract
allows.
*/
func (s *Store[K, V]) BulkCompute(keys []K, fn store.BulkRemapFunc[K, V]) (map[K]*store.ValueHolder[V], error) {
	result := make(map[K]*store.ValueHolder[V], len(keys))
	for _, group := range s.groupByShard(keys) {
		if err := s.bulkComputeShard(group.shard, group.keys, fn, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

type shardGroup[K comparable, V any] struct {
	shard *shard[K, V]
	keys  []K
}

func (s *Store[K, V]) groupByShard(keys []K) []shardGroup[K, V] {
	byIndex := make(map[int]int)
	var groups []shardGroup[K, V]
	seen := make(map[K]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		idx := shardIndex(key, len(s.shards))
		gi, ok := byIndex[idx]
		if !ok {
			gi = len(groups)
			byIndex[idx] = gi
			groups = append(groups, shardGroup[K, V]{shard: s.shards[idx]})
		}
		groups[gi].keys = append(groups[gi].keys, key)
	}
	return groups
}

func (s *Store[K, V]) bulkComputeShard(sh *shard[K, V], keys []K, fn store.BulkRemapFunc[K, V], result map[K]*store.ValueHolder[V]) error {
	now := time.Now()
	sh.mu.Lock()
	defer sh.mu.Unlock()

	batch := make([]store.BulkEntry[K, V], 0, len(keys))
	holders := make(map[K]*store.ValueHolder[V], len(keys))
	for _, key := range keys {
		entry := store.BulkEntry[K, V]{Key: key}
		if holder := s.liveLocked(sh, key, now); holder != nil {
			entry.Value = holder.Value
			entry.Present = true
			holders[key] = holder
		}
		batch = append(batch, entry)
	}

	replacements, err := fn(batch)
	if err != nil {
		return err
	}

	for _, repl := range replacements {
		prev := holders[repl.Key]
		if repl.Present {
			result[repl.Key] = s.installLocked(sh, repl.Key, repl.Value, prev, now)
		} else {
			s.removeLocked(sh, repl.Key, prev, now)
			result[repl.Key] = nil
		}
	}
	return nil
}

// BulkComputeIfAbsent runs fn per shard group over the keys that have no live
// mapping; present keys are returned untouched.
func (s *Store[K, V]) BulkComputeIfAbsent(keys []K, fn store.BulkMapFunc[K, V]) (map[K]*store.ValueHolder[V], error) {
	result := make(map[K]*store.ValueHolder[V], len(keys))
	for _, group := range s.groupByShard(keys) {
		if err := s.bulkAbsentShard(group.shard, group.keys, fn, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store[K, V]) bulkAbsentShard(sh *shard[K, V], keys []K, fn store.BulkMapFunc[K, V], result map[K]*store.ValueHolder[V]) error {
	now := time.Now()
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var absent []K
	for _, key := range keys {
		if holder := s.liveLocked(sh, key, now); holder != nil {
			s.touchLocked(sh, key, holder, now)
			result[key] = holder
		} else {
			absent = append(absent, key)
		}
	}
	if len(absent) == 0 {
		return nil
	}

	computed, err := fn(absent)
	if err != nil {
		return err
	}
	for _, entry := range computed {
		if entry.Present {
			result[entry.Key] = s.installLocked(sh, entry.Key, entry.Value, nil, now)
		} else {
			result[entry.Key] = nil
		}
	}
	return nil
}

// Remove deletes the mapping for key.
func (s *Store[K, V]) Remove(key K) error {
	now := time.Now()
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	holder := sh.entries[key]
	if holder != nil {
		s.removeLocked(sh, key, holder, now)
	}
	return nil
}

// Clear drops every mapping and resets eviction state.
func (s *Store[K, V]) Clear() error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.entries = make(map[K]*store.ValueHolder[V])
		sh.evict = eviction.New[K](s.policyType)
		sh.mu.Unlock()
	}
	return nil
}

// Iterate walks a point-in-time snapshot of the live mappings, taken with
// every shard locked (in index order) and released before fn runs.
func (s *Store[K, V]) Iterate(fn func(key K, holder *store.ValueHolder[V]) bool) error {
	now := time.Now()
	for _, sh := range s.shards {
		sh.mu.Lock()
	}
	snapshot := make(map[K]*store.ValueHolder[V])
	for _, sh := range s.shards {
		for k, h := range sh.entries {
			if !expiry.Expired(h.ExpireAt, now) {
				snapshot[k] = h
			}
		}
	}
	for _, sh := range s.shards {
		sh.mu.Unlock()
	}

	for k, h := range snapshot {
		if !fn(k, h) {
			return nil
		}
	}
	return nil
}

// Len reports the number of live mappings.
func (s *Store[K, V]) Len() int {
	now := time.Now()
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, h := range sh.entries {
			if !expiry.Expired(h.ExpireAt, now) {
				total++
			}
		}
		sh.mu.Unlock()
	}
	return total
}
