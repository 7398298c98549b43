package stats_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaveri-io/lwcache/stats"
)

func TestCountersRecordOutcomes(t *testing.T) {
	c := stats.NewCounters()

	c.Get(stats.GetHit)
	c.Get(stats.GetHit)
	c.Get(stats.GetMiss)
	c.Put(stats.PutPut)
	c.Remove(stats.RemoveNoop)
	c.Replace(stats.ReplaceMissNotPresent)
	c.ConditionalRemove(stats.ConditionalRemoveKeyPresent)
	c.Bulk(stats.PutAll, 3)
	c.Bulk(stats.PutAll, 2)

	require.Equal(t, int64(2), c.Count("get", string(stats.GetHit)))
	require.Equal(t, int64(1), c.Count("get", string(stats.GetMiss)))
	require.Equal(t, int64(0), c.Count("get", string(stats.GetFailure)))
	require.Equal(t, int64(1), c.Count("put", string(stats.PutPut)))
	require.Equal(t, int64(1), c.Count("remove", string(stats.RemoveNoop)))
	require.Equal(t, int64(1), c.Count("replace", string(stats.ReplaceMissNotPresent)))
	require.Equal(t, int64(1), c.Count("conditional_remove", string(stats.ConditionalRemoveKeyPresent)))
	require.Equal(t, int64(5), c.Count("bulk", string(stats.PutAll)))
}

func TestCountersSnapshotIsACopy(t *testing.T) {
	c := stats.NewCounters()
	c.Get(stats.GetHit)

	snap := c.Snapshot()
	require.Equal(t, map[string]int64{"get:HIT": 1}, snap)

	snap["get:HIT"] = 99
	require.Equal(t, int64(1), c.Count("get", string(stats.GetHit)))
}

func TestCountersConcurrent(t *testing.T) {
	c := stats.NewCounters()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Get(stats.GetHit)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(800), c.Count("get", string(stats.GetHit)))
}

func TestMultiFansOut(t *testing.T) {
	a := stats.NewCounters()
	b := stats.NewCounters()
	m := stats.NewMulti(a, b, stats.Noop{})

	m.Get(stats.GetMiss)
	m.Put(stats.PutFailure)
	m.Remove(stats.RemoveSuccess)
	m.Replace(stats.ReplaceHit)
	m.ConditionalRemove(stats.ConditionalRemoveSuccess)
	m.Bulk(stats.GetAllHits, 4)

	for _, c := range []*stats.Counters{a, b} {
		require.Equal(t, int64(1), c.Count("get", string(stats.GetMiss)))
		require.Equal(t, int64(1), c.Count("put", string(stats.PutFailure)))
		require.Equal(t, int64(1), c.Count("remove", string(stats.RemoveSuccess)))
		require.Equal(t, int64(1), c.Count("replace", string(stats.ReplaceHit)))
		require.Equal(t, int64(1), c.Count("conditional_remove", string(stats.ConditionalRemoveSuccess)))
		require.Equal(t, int64(4), c.Count("bulk", string(stats.GetAllHits)))
	}
}
