package matchservice

//go:generate mockgen -package=mocks -destination=mocks/mock_ports.go github.com/Black-And-White-Club/quickdraw/app/modules/match/application Ledger,Exchange,JobScheduler

import (
	"context"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/exchange"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/ledger"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
)

// Service defines the contract for match lifecycle operations.
type Service interface {
	// JoinLobby returns a payment instruction, or seats the player once a
	// payment signature is supplied.
	JoinLobby(ctx context.Context, req JoinRequest) (*JoinResponse, error)
	// PlayerAction records a player's response for the current round.
	PlayerAction(ctx context.Context, req ActionRequest) (*ActionResponse, error)
	// RequestRefund returns a player's entry fee while the match has not started.
	RequestRefund(ctx context.Context, matchID, playerAddress string) (*RefundResponse, error)
	// ProcessTick advances every match whose timer has expired.
	ProcessTick(ctx context.Context) (*TickResult, error)
	// SettleMatch converts the pool of a completed match and pays the winner.
	SettleMatch(ctx context.Context, matchID string) (*matchdomain.Prize, error)
	// RetryTransfer re-runs only the transfer leg of a settled match.
	RetryTransfer(ctx context.Context, matchID string) (*RetryTransferResponse, error)
	// GetMatch returns the current match snapshot.
	GetMatch(ctx context.Context, matchID string) (*MatchView, error)
	// CleanupStaleLobbies ends empty open matches older than olderThan.
	CleanupStaleLobbies(ctx context.Context, olderThan time.Duration) (int, error)
	// RetryStuckTransfers retries every settled match whose transfer is outstanding.
	RetryStuckTransfers(ctx context.Context) (int, error)
	// ListReconciliation returns audit summaries written since the given time
	// alongside each match's current prize.
	ListReconciliation(ctx context.Context, since time.Time) ([]*matchdb.ReconciliationRow, error)
}

// Ledger is the treasury custody gateway.
type Ledger interface {
	Balance(ctx context.Context, address string) (int64, error)
	TokenBalance(ctx context.Context, owner, mint string) (uint64, error)
	Transaction(ctx context.Context, signature string) (*ledger.Transaction, error)
	TransferSOL(ctx context.Context, recipient string, lamports int64) (string, error)
	TransferToken(ctx context.Context, recipient, mint string, amount uint64) (string, error)
}

// Exchange converts the pooled SOL into the payout asset.
type Exchange interface {
	Quote(ctx context.Context, req exchange.QuoteRequest) (*exchange.Quote, error)
	Swap(ctx context.Context, quote *exchange.Quote) (*exchange.SwapResult, error)
	DirectSwap(ctx context.Context, quote *exchange.Quote, owner string) (*exchange.SwapResult, error)
}

// JobScheduler enqueues deferred work for a match.
type JobScheduler interface {
	ScheduleTick(ctx context.Context, matchID string, at time.Time) error
	ScheduleTransferRetry(ctx context.Context, matchID string, at time.Time) error
}

// Archiver stores a copy of a payment summary outside the database.
type Archiver interface {
	ArchiveSummary(ctx context.Context, summary *matchdb.PaymentSummary) error
}

// JoinRequest is the input of JoinLobby.
type JoinRequest struct {
	PlayerAddress    string `json:"playerAddress"`
	PaymentSignature string `json:"transactionSignature,omitempty"`
	TargetMatchID    string `json:"targetMatchId,omitempty"`
}

// JoinResponse is either a payment instruction or a seated player.
type JoinResponse struct {
	Success         bool               `json:"success"`
	RequiresPayment bool               `json:"requiresPayment,omitempty"`
	EntryFee        int64              `json:"entryFee"`
	EntryFeeSOL     string             `json:"entryFeeSol"`
	TreasuryAddress string             `json:"treasuryAddress,omitempty"`
	TargetMatchID   string             `json:"targetMatchId,omitempty"`
	MatchID         string             `json:"matchId,omitempty"`
	PlayerCount     int                `json:"playerCount"`
	MaxPlayers      int                `json:"maxPlayers"`
	Status          matchdomain.Status `json:"status"`
}

// ActionRequest is the input of PlayerAction.
type ActionRequest struct {
	MatchID              string     `json:"matchId"`
	PlayerAddress        string     `json:"playerAddress"`
	ClientTimestamp      *time.Time `json:"clientTimestamp,omitempty"`
	ClientResponseTimeMs *int64     `json:"clientResponseTime,omitempty"`
	RoundStartTime       *time.Time `json:"roundStartTime,omitempty"`
}

// ActionResponse reports the recorded response.
type ActionResponse struct {
	Success        bool  `json:"success"`
	Round          int   `json:"round"`
	ResponseTimeMs int64 `json:"responseTime"`
	Ignored        bool  `json:"ignored,omitempty"`
}

// RefundResponse reports a completed refund.
type RefundResponse struct {
	Success         bool               `json:"success"`
	RefundAmount    int64              `json:"refundAmount"`
	RefundSignature string             `json:"refundSignature"`
	NewPlayerCount  int                `json:"newPlayerCount"`
	NewStatus       matchdomain.Status `json:"newStatus"`
}

// TickResult is the output of ProcessTick.
type TickResult struct {
	Success          bool   `json:"success"`
	ProcessedMatches int    `json:"processedMatches"`
	Message          string `json:"message"`
}

// RetryTransferResponse is the output of RetryTransfer.
type RetryTransferResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	TransferSignature string `json:"transferSignature,omitempty"`
}

// MatchView is the client-facing match snapshot.
type MatchView struct {
	ID                 string                         `json:"id"`
	Status             matchdomain.Status             `json:"status"`
	Players            map[string]*matchdomain.Player `json:"players"`
	PlayerCount        int                            `json:"playerCount"`
	Round              int                            `json:"round"`
	RoundStartedAt     *time.Time                     `json:"roundStartedAt,omitempty"`
	CountdownStartedAt *time.Time                     `json:"countdownStartedAt,omitempty"`
	CountdownDuration  int                            `json:"countdownDuration"`
	RoundDurationSec   int                            `json:"roundDurationSec"`
	MaxPlayers         int                            `json:"maxPlayers"`
	EntryFee           int64                          `json:"entryFee"`
	TotalCollected     int64                          `json:"totalSolCollected"`
	TokenSymbol        string                         `json:"tokenSymbol"`
	PayoutAssetMint    string                         `json:"payoutAssetMint"`
	Winner             string                         `json:"winner,omitempty"`
	CompletedAt        *time.Time                     `json:"completedAt,omitempty"`
	FinalStats         *matchdomain.FinalStats        `json:"finalStats,omitempty"`
	Prize              *matchdomain.Prize             `json:"prize,omitempty"`
	CreatedAt          time.Time                      `json:"createdAt"`
	UpdatedAt          time.Time                      `json:"updatedAt"`
	ServerTime         time.Time                      `json:"serverTime"`
}
