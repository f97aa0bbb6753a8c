package matchdb

import (
	"context"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/uptrace/bun"
)

// Repository defines the contract for match persistence.
type Repository interface {
	// NextMatchNumber atomically allocates the next sequential match number.
	NextMatchNumber(ctx context.Context, db bun.IDB) (int64, error)

	// Create inserts a new match with version 1.
	Create(ctx context.Context, db bun.IDB, match *Match) error

	// GetByID retrieves a match by its key.
	GetByID(ctx context.Context, db bun.IDB, id string) (*Match, error)

	// ListByStatus returns matches in any of the given statuses, oldest first.
	ListByStatus(ctx context.Context, db bun.IDB, statuses []matchdomain.Status) ([]*Match, error)

	// FindOldestOpen returns the oldest waiting/lobby match with a free seat.
	FindOldestOpen(ctx context.Context, db bun.IDB) (*Match, error)

	// FindActiveForPlayer returns the non-terminal match containing address.
	FindActiveForPlayer(ctx context.Context, db bun.IDB, address string) (*Match, error)

	// Update writes match if its version is unchanged and bumps the version.
	Update(ctx context.Context, db bun.IDB, match *Match) error

	// InsertReceipt consumes a payment signature.
	InsertReceipt(ctx context.Context, db bun.IDB, receipt *PaymentReceipt) error

	// ReceiptExists reports whether a payment signature was consumed.
	ReceiptExists(ctx context.Context, db bun.IDB, signature string) (bool, error)

	// InsertPaymentSummary writes the audit summary once; later calls are no-ops.
	InsertPaymentSummary(ctx context.Context, db bun.IDB, summary *PaymentSummary) error

	// ListPaymentSummaries returns summaries created at or after since.
	ListPaymentSummaries(ctx context.Context, db bun.IDB, since time.Time) ([]*PaymentSummary, error)

	// ListPrizes returns the current prize of each listed match that has one.
	ListPrizes(ctx context.Context, db bun.IDB, ids []string) (map[string]*matchdomain.Prize, error)

	// ListStuckTransfers returns completed matches whose swap succeeded but transfer did not.
	ListStuckTransfers(ctx context.Context, db bun.IDB) ([]*Match, error)

	// EndStaleLobbies marks empty open matches created before cutoff as ended.
	EndStaleLobbies(ctx context.Context, db bun.IDB, cutoff time.Time) (int, error)

	// TryAcquireLock takes the lease on key when free, expired or already owned.
	TryAcquireLock(ctx context.Context, db bun.IDB, key, owner string, now, until time.Time) (bool, error)

	// ReleaseLock deletes the lease on key held by owner.
	ReleaseLock(ctx context.Context, db bun.IDB, key, owner string) error
}
