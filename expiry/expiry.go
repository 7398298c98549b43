// Package expiry defines how cache mappings age out over time.
package expiry

import "time"

/*
Policy decides the expiry instant of a mapping at each lifecycle event.

Returning the zero time means "no TTL" for creation and update, and "leave the
current expiry unchanged" for access. Returning an instant at or before now
means the value is already expired: the store rejects such an install and
drops the mapping instead.
*/
type Policy[K comparable, V any] interface {

	// ForCreation is consulted when a key gains its first mapping.
	ForCreation(key K, value V, now time.Time) time.Time

	// ForUpdate is consulted when an existing mapping is replaced.
	ForUpdate(key K, oldValue, newValue V, now time.Time) time.Time

	// ForAccess is consulted on every successful read of the mapping.
	ForAccess(key K, value V, now time.Time) time.Time
}

// Expired reports whether a mapping with the given expiry instant is dead at
// now. The zero instant never expires.
func Expired(expireAt, now time.Time) bool {
	return !expireAt.IsZero() && !now.Before(expireAt)
}

// NoExpiry returns a policy under which mappings never expire.
func NoExpiry[K comparable, V any]() Policy[K, V] {
	return noExpiry[K, V]{}
}

type noExpiry[K comparable, V any] struct{}

func (noExpiry[K, V]) ForCreation(K, V, time.Time) time.Time  { return time.Time{} }
func (noExpiry[K, V]) ForUpdate(K, V, V, time.Time) time.Time { return time.Time{} }
func (noExpiry[K, V]) ForAccess(K, V, time.Time) time.Time    { return time.Time{} }

// TimeToLive returns a policy that expires a mapping a fixed duration after
// it was written. Reads do not extend the lifetime.
func TimeToLive[K comparable, V any](ttl time.Duration) Policy[K, V] {
	return ttlPolicy[K, V]{ttl: ttl}
}

type ttlPolicy[K comparable, V any] struct {
	ttl time.Duration
}

func (p ttlPolicy[K, V]) ForCreation(_ K, _ V, now time.Time) time.Time {
	return now.Add(p.ttl)
}

func (p ttlPolicy[K, V]) ForUpdate(_ K, _, _ V, now time.Time) time.Time {
	return now.Add(p.ttl)
}

func (p ttlPolicy[K, V]) ForAccess(K, V, time.Time) time.Time {
	return time.Time{}
}

/*
ExpireAfterAccess returns a sliding-TTL policy. Every read pushes the expiry
forward, so a mapping stays alive as long as it keeps getting used and dies
once nobody touches it for ttl.
*/
func ExpireAfterAccess[K comparable, V any](ttl time.Duration) Policy[K, V] {
	return slidingPolicy[K, V]{ttl: ttl}
}

type slidingPolicy[K comparable, V any] struct {
	ttl time.Duration
}

func (p slidingPolicy[K, V]) ForCreation(_ K, _ V, now time.Time) time.Time {
	return now.Add(p.ttl)
}

func (p slidingPolicy[K, V]) ForUpdate(_ K, _, _ V, now time.Time) time.Time {
	return now.Add(p.ttl)
}

func (p slidingPolicy[K, V]) ForAccess(_ K, _ V, now time.Time) time.Time {
	return now.Add(p.ttl)
}
