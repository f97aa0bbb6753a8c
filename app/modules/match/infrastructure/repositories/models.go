package matchdb

import (
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/uptrace/bun"
)

// Match is the persisted match document.
type Match struct {
	bun.BaseModel `bun:"table:matches,alias:m"`

	ID                   string                         `bun:"id,pk"`
	Number               int64                          `bun:"number,notnull,unique"`
	Status               matchdomain.Status             `bun:"status,notnull"`
	Players              map[string]*matchdomain.Player `bun:"players,type:jsonb,notnull"`
	PlayerCount          int                            `bun:"player_count,notnull"`
	Round                int                            `bun:"round,notnull"`
	RoundStartedAt       *time.Time                     `bun:"round_started_at"`
	CountdownStartedAt   *time.Time                     `bun:"countdown_started_at"`
	CountdownDurationSec int                            `bun:"countdown_duration_sec,notnull"`
	RoundDurationSec     int                            `bun:"round_duration_sec,notnull"`
	MaxPlayers           int                            `bun:"max_players,notnull"`
	EntryFeeLamports     int64                          `bun:"entry_fee_lamports,notnull"`
	TotalCollected       int64                          `bun:"total_collected_lamports,notnull"`
	TokenSymbol          string                         `bun:"token_symbol,notnull"`
	PayoutAssetMint      string                         `bun:"payout_asset_mint,notnull"`
	PayoutAssetDecimals  int                            `bun:"payout_asset_decimals,notnull"`
	Payments             []matchdomain.Payment          `bun:"payments,type:jsonb,notnull"`
	Winner               string                         `bun:"winner,nullzero"`
	CompletedAt          *time.Time                     `bun:"completed_at"`
	FinalStats           *matchdomain.FinalStats        `bun:"final_stats,type:jsonb"`
	Prize                *matchdomain.Prize             `bun:"prize,type:jsonb"`
	Version              int64                          `bun:"version,notnull"`
	CreatedAt            time.Time                      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time                      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// RecountPlayers keeps PlayerCount equal to len(Players).
func (m *Match) RecountPlayers() {
	m.PlayerCount = len(m.Players)
}

// Clone returns a deep copy so callers can mutate freely.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = make(map[string]*matchdomain.Player, len(m.Players))
	for addr, p := range m.Players {
		c.Players[addr] = p.Clone()
	}
	c.Payments = append([]matchdomain.Payment(nil), m.Payments...)
	c.RoundStartedAt = cloneTime(m.RoundStartedAt)
	c.CountdownStartedAt = cloneTime(m.CountdownStartedAt)
	c.CompletedAt = cloneTime(m.CompletedAt)
	if m.FinalStats != nil {
		fs := *m.FinalStats
		fs.EliminationOrder = append([]matchdomain.EliminationRecord(nil), m.FinalStats.EliminationOrder...)
		c.FinalStats = &fs
	}
	if m.Prize != nil {
		p := *m.Prize
		p.TransferredAt = cloneTime(m.Prize.TransferredAt)
		c.Prize = &p
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// MatchCounter backs sequential match numbers.
type MatchCounter struct {
	bun.BaseModel `bun:"table:match_counters"`

	Name  string `bun:"name,pk"`
	Value int64  `bun:"value,notnull"`
}

// PaymentReceipt records a consumed entry payment signature.
type PaymentReceipt struct {
	bun.BaseModel `bun:"table:payment_receipts"`

	Signature      string    `bun:"signature,pk"`
	MatchID        string    `bun:"match_id,notnull"`
	Player         string    `bun:"player,notnull"`
	AmountLamports int64     `bun:"amount_lamports,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// SummaryEntry is one player's line in a payment summary.
type SummaryEntry struct {
	Address        string                   `json:"address"`
	PaidLamports   int64                    `json:"paid"`
	Status         matchdomain.PlayerStatus `json:"status,omitempty"`
	ResponseTimeMs *int64                   `json:"responseTime,omitempty"`
	EliminatedIn   int                      `json:"eliminatedRound,omitempty"`
	Refunded       bool                     `json:"refunded,omitempty"`
}

// PaymentSummary is the immutable audit record written at settlement. It
// holds intake and outcome facts only; the transfer leg can still change
// afterwards and is read from the match prize.
type PaymentSummary struct {
	bun.BaseModel `bun:"table:match_payment_summaries"`

	MatchID           string             `bun:"match_id,pk" json:"matchId"`
	Status            matchdomain.Status `bun:"status,notnull" json:"status"`
	Winner            string             `bun:"winner,nullzero" json:"winner,omitempty"`
	Rounds            int                `bun:"rounds,notnull" json:"rounds"`
	Entries           []SummaryEntry     `bun:"entries,type:jsonb,notnull" json:"entries"`
	TotalCollected    int64              `bun:"total_collected_lamports,notnull" json:"totalCollected"`
	PayoutAmountRaw   int64              `bun:"payout_amount_raw,notnull" json:"payoutAmountRaw"`
	PayoutFormatted   string             `bun:"payout_amount,nullzero" json:"payoutAmount,omitempty"`
	TokenSymbol       string             `bun:"token_symbol,nullzero" json:"tokenSymbol,omitempty"`
	SwapSignature     string             `bun:"swap_signature,nullzero" json:"swapSignature,omitempty"`
	SwapSuccess       bool               `bun:"swap_success,notnull" json:"swapSuccess"`
	CreatedAt         time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// ReconciliationRow pairs a summary with the current prize of its match.
type ReconciliationRow struct {
	Summary *PaymentSummary
	Prize   *matchdomain.Prize
}

// TransferSuccess reports whether the winner has been paid.
func (r *ReconciliationRow) TransferSuccess() bool {
	return r.Prize != nil && r.Prize.TransferSuccess
}

// TransferSignature is the signature of the paying transfer, if any.
func (r *ReconciliationRow) TransferSignature() string {
	if r.Prize == nil {
		return ""
	}
	return r.Prize.TransferSignature
}

// Outstanding reports whether the swap landed but the winner is still unpaid.
func (r *ReconciliationRow) Outstanding() bool {
	return r.Summary.SwapSuccess && !r.TransferSuccess()
}

// MatchLease is an advisory lease row. Keys are match IDs or derived keys
// such as "settle:<id>".
type MatchLease struct {
	bun.BaseModel `bun:"table:match_leases"`

	Key       string    `bun:"key,pk"`
	Owner     string    `bun:"owner,notnull"`
	ExpiresAt time.Time `bun:"expires_at,notnull"`
}
