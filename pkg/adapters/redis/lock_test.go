package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ravituringworks/agency/pkg/adapters/redis"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocker(t *testing.T) (*miniredis.Miniredis, *redis.Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, redis.NewLocker(client, "agency:")
}

func TestLocker_AcquireRelease(t *testing.T) {
	mr, locker := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("agency:lock:session-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("agency:lock:session-1"))
}

func TestLocker_BlocksUntilContextDone(t *testing.T) {
	_, locker := newLocker(t)

	unlock, err := locker.Lock(context.Background(), "busy", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*redis.PollInterval)
	defer cancel()

	_, err = locker.Lock(ctx, "busy", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_ReleaseIgnoresForeignToken(t *testing.T) {
	mr, locker := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "stolen", 5*time.Second)
	require.NoError(t, err)

	// Another holder took over after expiry.
	require.NoError(t, mr.Set("agency:lock:stolen", "someone-else"))

	require.NoError(t, unlock(ctx))
	got, err := mr.Get("agency:lock:stolen")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestLocker_AcquiresAfterRelease(t *testing.T) {
	_, locker := newLocker(t)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "handoff", 5*time.Second)
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		u, err := locker.Lock(ctx, "handoff", 5*time.Second)
		if err == nil {
			_ = u(ctx)
		}
		acquired <- err
	}()

	time.Sleep(2 * redis.PollInterval)
	require.NoError(t, unlock(ctx))

	select {
	case err := <-acquired:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second Lock never acquired")
	}
}
