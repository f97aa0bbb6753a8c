package matchdb_test

import (
	"context"
	"testing"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	matchmigrations "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/quickdraw/internal/db/bundb"
	"github.com/Black-And-White-Club/quickdraw/internal/testutils"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	dsn := testutils.PostgresDSN(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := bundb.Open(ctx, dsn, bundb.PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	migrator := migrate.NewMigrator(db, matchmigrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func newMatch(t *testing.T, repo matchdb.Repository, db bun.IDB) *matchdb.Match {
	t.Helper()
	ctx := context.Background()
	n, err := repo.NextMatchNumber(ctx, db)
	require.NoError(t, err)

	m := &matchdb.Match{
		ID:                   matchdomain.MatchKey(n),
		Number:               n,
		Status:               matchdomain.StatusWaiting,
		CountdownDurationSec: 15,
		RoundDurationSec:     10,
		MaxPlayers:           4,
		EntryFeeLamports:     50_000_000,
		TokenSymbol:          "BONK",
		PayoutAssetMint:      "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263",
		PayoutAssetDecimals:  5,
	}
	require.NoError(t, repo.Create(ctx, db, m))
	return m
}

func TestMatchRepositoryIntegration(t *testing.T) {
	db := setupDB(t)
	repo := matchdb.NewRepository(db)
	ctx := context.Background()

	first := newMatch(t, repo, nil)
	second := newMatch(t, repo, nil)
	assert.Equal(t, first.Number+1, second.Number)
	assert.Equal(t, "game1", first.ID)

	t.Run("oldest open match is returned first", func(t *testing.T) {
		open, err := repo.FindOldestOpen(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, open.ID)
	})

	t.Run("optimistic update detects stale writers", func(t *testing.T) {
		a, err := repo.GetByID(ctx, nil, first.ID)
		require.NoError(t, err)
		b, err := repo.GetByID(ctx, nil, first.ID)
		require.NoError(t, err)

		addr := gofakeit.LetterN(44)
		a.Players[addr] = &matchdomain.Player{Address: addr, Status: matchdomain.PlayerAlive, SolPaid: 50_000_000}
		a.TotalCollected += 50_000_000
		require.NoError(t, repo.Update(ctx, nil, a))
		assert.Equal(t, int64(2), a.Version)

		b.Round = 9
		assert.ErrorIs(t, repo.Update(ctx, nil, b), matchdb.ErrVersionConflict)
		assert.Equal(t, int64(1), b.Version)

		stored, err := repo.GetByID(ctx, nil, first.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.PlayerCount)
		assert.Equal(t, 0, stored.Round)

		active, err := repo.FindActiveForPlayer(ctx, nil, addr)
		require.NoError(t, err)
		assert.Equal(t, first.ID, active.ID)

		_, err = repo.FindActiveForPlayer(ctx, nil, "nobody")
		assert.ErrorIs(t, err, matchdb.ErrNotFound)
	})

	t.Run("payment receipts are single use", func(t *testing.T) {
		sig := gofakeit.LetterN(88)
		receipt := &matchdb.PaymentReceipt{Signature: sig, MatchID: first.ID, Player: "p", AmountLamports: 1}
		require.NoError(t, repo.InsertReceipt(ctx, nil, receipt))
		assert.ErrorIs(t, repo.InsertReceipt(ctx, nil, receipt), matchdb.ErrReceiptExists)

		exists, err := repo.ReceiptExists(ctx, nil, sig)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("lease honours expiry and ownership", func(t *testing.T) {
		now := time.Now().UTC()
		ok, err := repo.TryAcquireLock(ctx, nil, second.ID, "owner-a", now, now.Add(30*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.TryAcquireLock(ctx, nil, second.ID, "owner-b", now, now.Add(30*time.Second))
		require.NoError(t, err)
		assert.False(t, ok)

		later := now.Add(31 * time.Second)
		ok, err = repo.TryAcquireLock(ctx, nil, second.ID, "owner-b", later, later.Add(30*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)

		require.NoError(t, repo.ReleaseLock(ctx, nil, second.ID, "owner-b"))
		ok, err = repo.TryAcquireLock(ctx, nil, second.ID, "owner-a", now, now.Add(30*time.Second))
		require.NoError(t, err)
		assert.True(t, ok)

		settleKey := "settle:" + second.ID
		ok, err = repo.TryAcquireLock(ctx, nil, settleKey, "owner-c", now, now.Add(2*time.Minute))
		require.NoError(t, err)
		assert.True(t, ok, "derived keys lease independently of the match key")
	})

	t.Run("stuck transfers and summaries", func(t *testing.T) {
		m, err := repo.GetByID(ctx, nil, second.ID)
		require.NoError(t, err)
		completedAt := time.Now().UTC()
		m.Status = matchdomain.StatusCompleted
		m.CompletedAt = &completedAt
		m.Prize = &matchdomain.Prize{SwapSuccess: true, TransferSuccess: false, PayoutAmountRaw: 1234}
		require.NoError(t, repo.Update(ctx, nil, m))

		stuck, err := repo.ListStuckTransfers(ctx, nil)
		require.NoError(t, err)
		require.Len(t, stuck, 1)
		assert.Equal(t, second.ID, stuck[0].ID)

		summary := &matchdb.PaymentSummary{MatchID: second.ID, Status: matchdomain.StatusCompleted, Rounds: 3, Entries: []matchdb.SummaryEntry{}}
		require.NoError(t, repo.InsertPaymentSummary(ctx, nil, summary))
		summary.Rounds = 99
		require.NoError(t, repo.InsertPaymentSummary(ctx, nil, summary))

		summaries, err := repo.ListPaymentSummaries(ctx, nil, completedAt.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, 3, summaries[0].Rounds)

		prizes, err := repo.ListPrizes(ctx, nil, []string{second.ID, "missing"})
		require.NoError(t, err)
		require.Len(t, prizes, 1)
		assert.Equal(t, uint64(1234), prizes[second.ID].PayoutAmountRaw)
	})

	t.Run("stale empty lobbies are ended", func(t *testing.T) {
		empty := newMatch(t, repo, nil)
		n, err := repo.EndStaleLobbies(ctx, nil, time.Now().UTC().Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stored, err := repo.GetByID(ctx, nil, empty.ID)
		require.NoError(t, err)
		assert.Equal(t, matchdomain.StatusEnded, stored.Status)

		list, err := repo.ListByStatus(ctx, nil, []matchdomain.Status{matchdomain.StatusWaiting})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, first.ID, list[0].ID)
	})
}
