package lwcache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaveri-io/lwcache/loaderwriter"
)

//
// ================= GETALL =================
//

func TestGetAllLoadsMisses(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)
	source.data[1] = 10
	source.data[2] = 20

	require.NoError(t, cache.Put(ctx, 3, 30))

	got, err := cache.GetAll(ctx, []int{1, 2, 3, 4})
	require.NoError(t, err)
	require.Equal(t, map[int]int{1: 10, 2: 20, 3: 30}, got)
	// only the misses hit the loader
	require.ElementsMatch(t, []int{1, 2, 4}, source.loads)
}

func TestGetAllEmptyKeys(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)

	got, err := cache.GetAll(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, got)
	require.Zero(t, source.loadCount())
}

func TestGetAllBulkLoadFailure(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)
	cause := errors.New("partition offline")
	source.loadAllErr = &loaderwriter.BulkLoadingError[int, int]{
		Successes: map[int]int{1: 10},
		Failures:  map[int]error{2: cause},
	}

	_, err := cache.GetAll(ctx, []int{1, 2})
	var bulk *loaderwriter.BulkLoadingError[int, int]
	require.ErrorAs(t, err, &bulk)
	require.Equal(t, 10, bulk.Successes[1])
	require.Equal(t, cause, bulk.Failures[2])
}

func TestGetAllGenericLoadFailureMarksAllKeys(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)
	cause := errors.New("backend down")
	source.loadAllErr = cause

	require.NoError(t, cache.Put(ctx, 3, 30))

	_, err := cache.GetAll(ctx, []int{1, 2, 3})
	var bulk *loaderwriter.BulkLoadingError[int, int]
	require.ErrorAs(t, err, &bulk)
	require.Equal(t, cause, bulk.Failures[1])
	require.Equal(t, cause, bulk.Failures[2])
	// the cached key is a success, not a failure
	require.NotContains(t, bulk.Failures, 3)
	require.Equal(t, 30, bulk.Successes[3])
}

//
// ================= PUTALL =================
//

func TestPutAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)

	entries := map[int]int{1: 10, 2: 20, 3: 30}
	require.NoError(t, cache.PutAll(ctx, entries))
	require.Equal(t, 3, source.writeCount())

	got, err := cache.GetAll(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, entries, got)
	require.Zero(t, source.loadCount())
}

func TestPutAllEmpty(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)

	require.NoError(t, cache.PutAll(ctx, nil))
	require.Zero(t, source.writeCount())
}

func TestPutAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	cause := errors.New("row locked")
	source.writeAllErr = &loaderwriter.BulkWritingError[int]{
		Successes: []int{1},
		Failures:  map[int]error{2: cause},
	}

	err := cache.PutAll(ctx, map[int]int{1: 1, 2: 2})
	var bulk *loaderwriter.BulkWritingError[int]
	require.ErrorAs(t, err, &bulk)
	require.Equal(t, []int{1}, bulk.Successes)
	require.Equal(t, cause, bulk.Failures[2])

	// the acknowledged key is installed, the failed one is not
	holder, serr := st.Get(1)
	require.NoError(t, serr)
	require.NotNil(t, holder)
	require.Equal(t, 1, holder.Value)

	holder, serr = st.Get(2)
	require.NoError(t, serr)
	require.Nil(t, holder)
}

func TestPutAllGenericWriteFailure(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	cause := errors.New("connection reset")
	source.writeAllErr = cause

	err := cache.PutAll(ctx, map[int]int{1: 1, 2: 2})
	var bulk *loaderwriter.BulkWritingError[int]
	require.ErrorAs(t, err, &bulk)
	require.Len(t, bulk.Failures, 2)
	require.Empty(t, bulk.Successes)

	for _, k := range []int{1, 2} {
		holder, serr := st.Get(k)
		require.NoError(t, serr)
		require.Nil(t, holder)
	}
}

//
// ================= REMOVEALL =================
//

func TestRemoveAllDeletesEverywhere(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)

	require.NoError(t, cache.PutAll(ctx, map[int]int{1: 10, 2: 20}))
	require.NoError(t, cache.RemoveAll(ctx, []int{1, 2}))
	require.ElementsMatch(t, []int{1, 2}, source.deletes)

	for _, k := range []int{1, 2} {
		holder, err := st.Get(k)
		require.NoError(t, err)
		require.Nil(t, holder)
	}
}

func TestRemoveAllEmpty(t *testing.T) {
	ctx := context.Background()
	cache, source, _ := newTestCache(t)

	require.NoError(t, cache.RemoveAll(ctx, nil))
	require.Empty(t, source.deletes)
}

func TestRemoveAllGenericFailureInvalidates(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	require.NoError(t, cache.PutAll(ctx, map[int]int{1: 10, 2: 20}))

	cause := errors.New("bulk delete refused")
	source.deleteAllErr = cause

	err := cache.RemoveAll(ctx, []int{1, 2})
	var bulk *loaderwriter.BulkWritingError[int]
	require.ErrorAs(t, err, &bulk)
	require.Len(t, bulk.Failures, 2)

	// deletion outcome unknown: cached mappings are dropped anyway
	for _, k := range []int{1, 2} {
		holder, serr := st.Get(k)
		require.NoError(t, serr)
		require.Nil(t, holder)
	}
}

func TestRemoveAllPartialFailure(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	require.NoError(t, cache.PutAll(ctx, map[int]int{1: 10, 2: 20}))

	cause := errors.New("row locked")
	source.deleteAllErr = &loaderwriter.BulkWritingError[int]{
		Successes: []int{1},
		Failures:  map[int]error{2: cause},
	}

	err := cache.RemoveAll(ctx, []int{1, 2})
	var bulk *loaderwriter.BulkWritingError[int]
	require.ErrorAs(t, err, &bulk)
	require.Equal(t, []int{1}, bulk.Successes)
	require.Equal(t, cause, bulk.Failures[2])

	// deleted key gone from cache; failed key keeps its mapping
	holder, serr := st.Get(1)
	require.NoError(t, serr)
	require.Nil(t, holder)

	holder, serr = st.Get(2)
	require.NoError(t, serr)
	require.NotNil(t, holder)
	require.Equal(t, 20, holder.Value)
}

//
// ================= BULK STORE FAILURE =================
//

func TestStoreFailsGetAllAnswersFromSource(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	source.data[1] = 10
	source.data[2] = 20
	st.failing.Store(true)

	got, err := cache.GetAll(ctx, []int{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, map[int]int{1: 10, 2: 20}, got)
	require.ElementsMatch(t, []int{1, 2, 3}, st.removedKeys())
}

func TestStoreFailsPutAllWritesThrough(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	st.failing.Store(true)

	require.NoError(t, cache.PutAll(ctx, map[int]int{1: 10, 2: 20}))
	require.Equal(t, 2, source.writeCount())
	require.ElementsMatch(t, []int{1, 2}, st.removedKeys())
}

func TestStoreFailsRemoveAllDeletesThrough(t *testing.T) {
	ctx := context.Background()
	cache, source, st := newTestCache(t)
	source.data[1] = 10
	st.failing.Store(true)

	require.NoError(t, cache.RemoveAll(ctx, []int{1, 2}))
	require.ElementsMatch(t, []int{1, 2}, source.deletes)
}
