package matchservice

import (
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/exchange"
)

const (
	// maxMutateAttempts bounds optimistic write retries.
	maxMutateAttempts = 5
	// maxSeatAttempts bounds re-locating a lobby that filled up under us.
	maxSeatAttempts = 3
	// settlementLeaseTTL covers a full settlement including transfer backoff.
	settlementLeaseTTL = 2 * time.Minute
	// transferRetryDelay is how long a failed transfer waits before the queued retry.
	transferRetryDelay = time.Minute
	// roundStartSkewWarning is the client/server round start gap worth logging.
	roundStartSkewWarning = 2 * time.Second
)

// Config holds the game and settlement parameters.
type Config struct {
	MaxPlayers               int
	EntryFeeLamports         int64
	CountdownDuration        time.Duration
	RoundDuration            time.Duration
	RoundBuffer              time.Duration
	LockTTL                  time.Duration
	GraceWindow              time.Duration
	PaymentToleranceBps      int
	FixedTransferFeeLamports int64
	MaxClientLatencyCredit   time.Duration
	TreasuryAddress          string
	TokenSymbol              string
	PayoutAssetMint          string
	PayoutAssetDecimals      int
	SlippageBps              int
	HouseFeeBps              int
	TransferAttempts         int
	BackoffStep              time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxPlayers:               8,
		EntryFeeLamports:         matchdomain.LamportsPerSOL / 10,
		CountdownDuration:        15 * time.Second,
		RoundDuration:            10 * time.Second,
		RoundBuffer:              5 * time.Second,
		LockTTL:                  30 * time.Second,
		GraceWindow:              10 * time.Second,
		PaymentToleranceBps:      9500,
		FixedTransferFeeLamports: 5_000,
		MaxClientLatencyCredit:   time.Second,
		TokenSymbol:              "SOL",
		PayoutAssetMint:          exchange.NativeMint,
		PayoutAssetDecimals:      9,
		SlippageBps:              50,
		HouseFeeBps:              0,
		TransferAttempts:         3,
		BackoffStep:              2 * time.Second,
	}
}

func (c Config) minimumPayment(fee int64) int64 {
	return fee * int64(c.PaymentToleranceBps) / 10_000
}
