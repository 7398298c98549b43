package eviction_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaveri-io/lwcache/eviction"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	p := eviction.New[string](eviction.LRU)
	p.OnPut("a")
	p.OnPut("b")
	p.OnPut("c")
	p.OnGet("a")

	victim, ok := p.Evict()
	require.True(t, ok)
	require.Equal(t, "b", victim)

	victim, ok = p.Evict()
	require.True(t, ok)
	require.Equal(t, "c", victim)

	victim, ok = p.Evict()
	require.True(t, ok)
	require.Equal(t, "a", victim)

	_, ok = p.Evict()
	require.False(t, ok)
}

func TestLRURemoveDropsKey(t *testing.T) {
	p := eviction.New[string](eviction.LRU)
	p.OnPut("a")
	p.OnPut("b")
	p.Remove("a")

	victim, ok := p.Evict()
	require.True(t, ok)
	require.Equal(t, "b", victim)

	_, ok = p.Evict()
	require.False(t, ok)
}

func TestLFUEvictsLeastFrequent(t *testing.T) {
	p := eviction.New[string](eviction.LFU)
	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnGet("a")
	p.OnGet("b")

	victim, ok := p.Evict()
	require.True(t, ok)
	require.Equal(t, "b", victim)

	victim, ok = p.Evict()
	require.True(t, ok)
	require.Equal(t, "a", victim)
}

func TestFIFOIgnoresAccess(t *testing.T) {
	p := eviction.New[string](eviction.FIFO)
	p.OnPut("a")
	p.OnPut("b")
	p.OnGet("a")
	p.OnGet("a")

	victim, ok := p.Evict()
	require.True(t, ok)
	require.Equal(t, "a", victim)
}

func TestEvictOnEmpty(t *testing.T) {
	for _, typ := range []eviction.PolicyType{eviction.LRU, eviction.LFU, eviction.FIFO} {
		p := eviction.New[string](typ)
		_, ok := p.Evict()
		require.False(t, ok, string(typ))
	}
}

func TestUnknownPolicyPanics(t *testing.T) {
	require.Panics(t, func() {
		eviction.New[string]("CLOCK")
	})
}
