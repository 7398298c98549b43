package heap

import (
	"fmt"
	"hash/fnv"
)

// shardIndex assigns a key to one of n shards. FNV is a fast,
// non-cryptographic hash that spreads typical key populations well enough to
// avoid hot shards.
func shardIndex[K comparable](key K, n int) int {
	h := fnv.New32a()
	fmt.Fprintf(h, "%v", key)
	return int(h.Sum32() % uint32(n))
}
