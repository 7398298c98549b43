// Package loaderwriter is the contract between the cache and the external
// system of record, plus decorators that change how that system is driven.
package loaderwriter

import "context"

/*
LoaderWriter is how the cache talks to the authoritative data source.

The cache is a cache *of* this source: on a miss the loader is consulted
before the caller observes anything, and every mutation reaches the writer
before it is installed in the store. Implementations typically wrap a
database, an API client, or another service, and may block on I/O; the cache
passes the caller's context through untouched.
*/
type LoaderWriter[K comparable, V any] interface {

	// Load fetches the value for key. found=false means the source has no
	// mapping; it is not an error.
	Load(ctx context.Context, key K) (value V, found bool, err error)

	// LoadAll fetches values for keys. Keys absent from the source are
	// simply absent from the result. A partially failed batch is reported
	// as a *BulkLoadingError carrying the per-key outcomes.
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)

	// Write makes key map to value in the source.
	Write(ctx context.Context, key K, value V) error

	// WriteAll writes a batch. A partially failed batch is reported as a
	// *BulkWritingError carrying the per-key outcomes.
	WriteAll(ctx context.Context, entries map[K]V) error

	// Delete removes key from the source. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key K) error

	// DeleteAll removes a batch, with the same failure model as WriteAll.
	DeleteAll(ctx context.Context, keys []K) error
}
