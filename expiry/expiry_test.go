package expiry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kaveri-io/lwcache/expiry"
)

func TestNoExpiry(t *testing.T) {
	p := expiry.NoExpiry[string, int]()
	now := time.Now()

	require.True(t, p.ForCreation("k", 1, now).IsZero())
	require.True(t, p.ForUpdate("k", 1, 2, now).IsZero())
	require.True(t, p.ForAccess("k", 1, now).IsZero())
}

func TestTimeToLive(t *testing.T) {
	p := expiry.TimeToLive[string, int](time.Minute)
	now := time.Now()

	require.Equal(t, now.Add(time.Minute), p.ForCreation("k", 1, now))
	require.Equal(t, now.Add(time.Minute), p.ForUpdate("k", 1, 2, now))
	// reads do not extend a fixed TTL
	require.True(t, p.ForAccess("k", 1, now).IsZero())
}

func TestExpireAfterAccess(t *testing.T) {
	p := expiry.ExpireAfterAccess[string, int](time.Minute)
	now := time.Now()

	require.Equal(t, now.Add(time.Minute), p.ForCreation("k", 1, now))
	require.Equal(t, now.Add(time.Minute), p.ForAccess("k", 1, now))
}

func TestExpired(t *testing.T) {
	now := time.Now()

	require.False(t, expiry.Expired(time.Time{}, now), "zero means no TTL")
	require.False(t, expiry.Expired(now.Add(time.Second), now))
	require.True(t, expiry.Expired(now.Add(-time.Second), now))
	require.True(t, expiry.Expired(now, now), "at-or-before now is expired")
}
