package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

// fakeLockRepo implements only the lock methods; anything else panics.
type fakeLockRepo struct {
	matchdb.Repository

	owner   string
	expires time.Time
	err     error
}

func (f *fakeLockRepo) TryAcquireLock(_ context.Context, _ bun.IDB, _ string, owner string, now, until time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.owner != "" && f.owner != owner && now.Before(f.expires) {
		return false, nil
	}
	f.owner = owner
	f.expires = until
	return true, nil
}

func (f *fakeLockRepo) ReleaseLock(_ context.Context, _ bun.IDB, _ string, owner string) error {
	if f.owner == owner {
		f.owner = ""
	}
	return nil
}

func TestPostgresStore(t *testing.T) {
	ctx := context.Background()
	repo := &fakeLockRepo{}
	store := NewPostgresStore(repo)

	token, ok, err := store.Acquire(ctx, "game4", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Acquire(ctx, "game4", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "game4", token))
	_, ok, err = store.Acquire(ctx, "game4", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPostgresStoreError(t *testing.T) {
	store := NewPostgresStore(&fakeLockRepo{err: errors.New("db down")})
	_, ok, err := store.Acquire(context.Background(), "game4", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
}
