package lease

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })

	token, ok, err := store.Acquire(ctx, "game1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = store.Acquire(ctx, "game1", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "fresh lease must block a second holder")

	_, ok, err = store.Acquire(ctx, "game2", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "leases are per key")

	require.NoError(t, store.Release(ctx, "game1", "someone-else"))
	_, ok, _ = store.Acquire(ctx, "game1", 30*time.Second)
	assert.False(t, ok, "release with a foreign token is ignored")

	require.NoError(t, store.Release(ctx, "game1", token))
	_, ok, _ = store.Acquire(ctx, "game1", 30*time.Second)
	assert.True(t, ok)
}

func TestMemoryStoreStaleLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStoreWithClock(func() time.Time { return now })

	stale, ok, err := store.Acquire(ctx, "game1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	fresh, ok, err := store.Acquire(ctx, "game1", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	// The crashed holder releasing late must not free the new lease.
	require.NoError(t, store.Release(ctx, "game1", stale))
	_, ok, _ = store.Acquire(ctx, "game1", 30*time.Second)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "game1", fresh))
}

func TestMemoryStoreConcurrentAcquire(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok, _ := store.Acquire(ctx, "game9", time.Minute); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, granted)
}
