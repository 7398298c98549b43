package status_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kaveri-io/lwcache/status"
)

func TestLifecycle(t *testing.T) {
	g := status.NewGate()
	require.Equal(t, status.Uninitialized, g.State())

	var lerr *status.LifecycleError
	require.ErrorAs(t, g.CheckAvailable(), &lerr)
	require.Equal(t, status.Uninitialized, lerr.Current)

	require.NoError(t, g.Init())
	require.Equal(t, status.Available, g.State())
	require.NoError(t, g.CheckAvailable())

	require.NoError(t, g.Close())
	require.Equal(t, status.Closed, g.State())
	require.ErrorAs(t, g.CheckAvailable(), &lerr)
	require.Equal(t, status.Closed, lerr.Current)
}

func TestNoReopen(t *testing.T) {
	g := status.NewGate()
	require.NoError(t, g.Init())
	require.NoError(t, g.Close())

	require.Error(t, g.Init())
	require.Equal(t, status.Closed, g.State())
}

func TestDoubleTransitionsFail(t *testing.T) {
	g := status.NewGate()
	require.Error(t, g.Close(), "close before init")
	require.NoError(t, g.Init())
	require.Error(t, g.Init())
	require.NoError(t, g.Close())
	require.Error(t, g.Close())
}

func TestConcurrentInitExactlyOneWins(t *testing.T) {
	g := status.NewGate()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.Init() == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, wins)
	require.Equal(t, status.Available, g.State())
}

func TestStateString(t *testing.T) {
	require.Equal(t, "UNINITIALIZED", status.Uninitialized.String())
	require.Equal(t, "AVAILABLE", status.Available.String())
	require.Equal(t, "CLOSED", status.Closed.String())
}
