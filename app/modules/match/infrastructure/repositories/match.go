package matchdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/uptrace/bun"
)

const matchCounterName = "match"

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new match repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// NextMatchNumber increments the match counter in a single statement.
func (r *Impl) NextMatchNumber(ctx context.Context, db bun.IDB) (int64, error) {
	db = r.resolveDB(db)
	var value int64
	err := db.NewRaw(`
		INSERT INTO match_counters (name, value) VALUES (?, 1)
		ON CONFLICT (name) DO UPDATE SET value = match_counters.value + 1
		RETURNING value`, matchCounterName).
		Scan(ctx, &value)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate match number: %w", err)
	}
	return value, nil
}

// Create inserts a new match.
func (r *Impl) Create(ctx context.Context, db bun.IDB, match *Match) error {
	db = r.resolveDB(db)
	now := time.Now().UTC()
	match.Version = 1
	match.CreatedAt = now
	match.UpdatedAt = now
	if match.Players == nil {
		match.Players = map[string]*matchdomain.Player{}
	}
	if match.Payments == nil {
		match.Payments = []matchdomain.Payment{}
	}
	match.RecountPlayers()
	if _, err := db.NewInsert().Model(match).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}
	return nil
}

// GetByID retrieves a match by its key.
func (r *Impl) GetByID(ctx context.Context, db bun.IDB, id string) (*Match, error) {
	db = r.resolveDB(db)
	match := new(Match)
	err := db.NewSelect().
		Model(match).
		Where("id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get match by ID: %w", err)
	}
	return match, nil
}

// ListByStatus returns matches in any of the given statuses.
func (r *Impl) ListByStatus(ctx context.Context, db bun.IDB, statuses []matchdomain.Status) ([]*Match, error) {
	db = r.resolveDB(db)
	var matches []*Match
	err := db.NewSelect().
		Model(&matches).
		Where("status IN (?)", bun.In(statuses)).
		Order("number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches by status: %w", err)
	}
	return matches, nil
}

// FindOldestOpen returns the oldest open match with room for another player.
func (r *Impl) FindOldestOpen(ctx context.Context, db bun.IDB) (*Match, error) {
	db = r.resolveDB(db)
	match := new(Match)
	err := db.NewSelect().
		Model(match).
		Where("status IN (?)", bun.In(matchdomain.OpenStatuses)).
		Where("player_count < max_players").
		Order("created_at ASC", "number ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find open match: %w", err)
	}
	return match, nil
}

// FindActiveForPlayer returns the non-terminal match that contains address.
func (r *Impl) FindActiveForPlayer(ctx context.Context, db bun.IDB, address string) (*Match, error) {
	db = r.resolveDB(db)
	match := new(Match)
	err := db.NewSelect().
		Model(match).
		Where("status IN (?)", bun.In(matchdomain.ActiveStatuses)).
		Where("jsonb_exists(players, ?)", address).
		Order("number DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find active match for player: %w", err)
	}
	return match, nil
}

// Update performs an optimistic write guarded by the match version.
func (r *Impl) Update(ctx context.Context, db bun.IDB, match *Match) error {
	db = r.resolveDB(db)
	prev := match.Version
	prevUpdated := match.UpdatedAt

	match.Version = prev + 1
	match.UpdatedAt = time.Now().UTC()
	match.RecountPlayers()

	result, err := db.NewUpdate().
		Model(match).
		ExcludeColumn("id", "number", "created_at").
		Where("id = ?", match.ID).
		Where("version = ?", prev).
		Exec(ctx)
	if err != nil {
		match.Version = prev
		match.UpdatedAt = prevUpdated
		return fmt.Errorf("failed to update match: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		match.Version = prev
		match.UpdatedAt = prevUpdated
		return ErrVersionConflict
	}
	return nil
}

// InsertReceipt consumes a payment signature.
func (r *Impl) InsertReceipt(ctx context.Context, db bun.IDB, receipt *PaymentReceipt) error {
	db = r.resolveDB(db)
	result, err := db.NewInsert().
		Model(receipt).
		On("CONFLICT (signature) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert payment receipt: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrReceiptExists
	}
	return nil
}

// ReceiptExists reports whether a payment signature was consumed.
func (r *Impl) ReceiptExists(ctx context.Context, db bun.IDB, signature string) (bool, error) {
	db = r.resolveDB(db)
	exists, err := db.NewSelect().
		Model((*PaymentReceipt)(nil)).
		Where("signature = ?", signature).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check payment receipt: %w", err)
	}
	return exists, nil
}

// InsertPaymentSummary writes the summary once.
func (r *Impl) InsertPaymentSummary(ctx context.Context, db bun.IDB, summary *PaymentSummary) error {
	db = r.resolveDB(db)
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}
	_, err := db.NewInsert().
		Model(summary).
		On("CONFLICT (match_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert payment summary: %w", err)
	}
	return nil
}

// ListPaymentSummaries returns summaries created at or after since.
func (r *Impl) ListPaymentSummaries(ctx context.Context, db bun.IDB, since time.Time) ([]*PaymentSummary, error) {
	db = r.resolveDB(db)
	var summaries []*PaymentSummary
	err := db.NewSelect().
		Model(&summaries).
		Where("created_at >= ?", since).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment summaries: %w", err)
	}
	return summaries, nil
}

// ListPrizes returns the current prize of each listed match that has one.
func (r *Impl) ListPrizes(ctx context.Context, db bun.IDB, ids []string) (map[string]*matchdomain.Prize, error) {
	prizes := make(map[string]*matchdomain.Prize, len(ids))
	if len(ids) == 0 {
		return prizes, nil
	}
	db = r.resolveDB(db)
	var matches []*Match
	err := db.NewSelect().
		Model(&matches).
		Column("id", "prize").
		Where("id IN (?)", bun.In(ids)).
		Where("prize IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list prizes: %w", err)
	}
	for _, m := range matches {
		prizes[m.ID] = m.Prize
	}
	return prizes, nil
}

// ListStuckTransfers returns completed matches awaiting only their transfer leg.
func (r *Impl) ListStuckTransfers(ctx context.Context, db bun.IDB) ([]*Match, error) {
	db = r.resolveDB(db)
	var matches []*Match
	err := db.NewSelect().
		Model(&matches).
		Where("status = ?", matchdomain.StatusCompleted).
		Where("prize IS NOT NULL").
		Where("COALESCE((prize->>'swapSuccess')::boolean, false) = true").
		Where("COALESCE((prize->>'transferSuccess')::boolean, false) = false").
		Order("completed_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck transfers: %w", err)
	}
	return matches, nil
}

// EndStaleLobbies marks abandoned empty matches as ended.
func (r *Impl) EndStaleLobbies(ctx context.Context, db bun.IDB, cutoff time.Time) (int, error) {
	db = r.resolveDB(db)
	result, err := db.NewUpdate().
		Model((*Match)(nil)).
		Set("status = ?", matchdomain.StatusEnded).
		Set("version = version + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("status IN (?)", bun.In(matchdomain.OpenStatuses)).
		Where("player_count = 0").
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to end stale lobbies: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(rows), nil
}

// TryAcquireLock takes the lease on key when it is free, stale, or already ours.
func (r *Impl) TryAcquireLock(ctx context.Context, db bun.IDB, key, owner string, now, until time.Time) (bool, error) {
	db = r.resolveDB(db)
	result, err := db.ExecContext(ctx, `
		INSERT INTO match_leases (key, owner, expires_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE
			SET owner = EXCLUDED.owner, expires_at = EXCLUDED.expires_at
			WHERE match_leases.expires_at < ? OR match_leases.owner = ?`,
		key, owner, until, now, owner)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ReleaseLock deletes the lease if owner still holds it.
func (r *Impl) ReleaseLock(ctx context.Context, db bun.IDB, key, owner string) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*MatchLease)(nil)).
		Where("key = ?", key).
		Where("owner = ?", owner).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
