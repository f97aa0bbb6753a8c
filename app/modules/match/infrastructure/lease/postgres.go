package lease

import (
	"context"
	"time"

	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
)

// PostgresStore keeps leases in the match_leases table, taken with an upsert
// that only overwrites expired or self-owned rows.
type PostgresStore struct {
	repo matchdb.Repository
	now  func() time.Time
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(repo matchdb.Repository) *PostgresStore {
	return &PostgresStore{repo: repo, now: time.Now}
}

func (s *PostgresStore) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := newToken()
	now := s.now().UTC()
	ok, err := s.repo.TryAcquireLock(ctx, nil, key, token, now, now.Add(ttl))
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (s *PostgresStore) Release(ctx context.Context, key, token string) error {
	return s.repo.ReleaseLock(ctx, nil, key, token)
}
