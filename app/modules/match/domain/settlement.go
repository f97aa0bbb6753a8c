package matchdomain

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// LamportsPerSOL is the number of base units in one SOL.
const LamportsPerSOL = 1_000_000_000

// Payment is one verified entry fee.
type Payment struct {
	Player         string    `json:"player"`
	Signature      string    `json:"signature"`
	AmountLamports int64     `json:"amount"`
	PaidAt         time.Time `json:"paidAt"`
}

// Prize is the settlement record of a completed match.
type Prize struct {
	PayoutAmountRaw       uint64     `json:"payoutAmountRaw"`
	PayoutAmountFormatted string     `json:"payoutAmount"`
	InputLamports         int64      `json:"inputLamports"`
	TokenSymbol           string     `json:"tokenSymbol"`
	Mint                  string     `json:"mint"`
	Direct                bool       `json:"direct"`
	SwapSignature         string     `json:"swapSignature,omitempty"`
	SwapSuccess           bool       `json:"swapSuccess"`
	TransferSignature     string     `json:"transferSignature,omitempty"`
	TransferSuccess       bool       `json:"transferSuccess"`
	TransferAttempts      int        `json:"transferAttempts"`
	TransferError         string     `json:"transferError,omitempty"`
	SwapFailed            bool       `json:"swapFailed"`
	FailureReason         string     `json:"failureReason,omitempty"`
	InsufficientBalance   bool       `json:"insufficientBalance"`
	Estimated             bool       `json:"estimated"`
	SettledAt             time.Time  `json:"settledAt"`
	TransferredAt         *time.Time `json:"transferredAt,omitempty"`
}

// NeedsTransfer reports whether only the transfer leg is outstanding.
func (p *Prize) NeedsTransfer() bool {
	return p != nil && p.SwapSuccess && !p.TransferSuccess
}

// EliminationRecord is one entry of the elimination order.
type EliminationRecord struct {
	Address string            `json:"address"`
	Round   int               `json:"round"`
	Reason  EliminationReason `json:"reason"`
	At      time.Time         `json:"at"`
}

// FinalStats summarises a completed match.
type FinalStats struct {
	EliminationOrder     []EliminationRecord `json:"eliminationOrder"`
	Rounds               int                 `json:"rounds"`
	WinnerResponseTimeMs *int64              `json:"winnerResponseTime,omitempty"`
	WinnerSelection      WinnerSelection     `json:"winnerSelection"`
}

// FormatTokenAmount renders a raw integer amount with the given decimals,
// trimming trailing zeros.
func FormatTokenAmount(raw uint64, decimals int) string {
	if decimals <= 0 {
		return new(big.Int).SetUint64(raw).String()
	}
	r := new(big.Rat).SetFrac(new(big.Int).SetUint64(raw), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	s := r.FloatString(decimals)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// FormatSOL renders lamports as SOL.
func FormatSOL(lamports int64) string {
	if lamports < 0 {
		return "-" + FormatTokenAmount(uint64(-lamports), 9)
	}
	return FormatTokenAmount(uint64(lamports), 9)
}

// ApplyBasisPoints returns amount reduced by bps/10000, never below zero.
func ApplyBasisPoints(amount int64, bps int) int64 {
	if bps <= 0 {
		return amount
	}
	if bps >= 10_000 {
		return 0
	}
	fee := new(big.Int).Mul(big.NewInt(amount), big.NewInt(int64(bps)))
	fee.Quo(fee, big.NewInt(10_000))
	return amount - fee.Int64()
}

// MatchKey renders the sequential match identifier.
func MatchKey(n int64) string {
	return fmt.Sprintf("game%d", n)
}
