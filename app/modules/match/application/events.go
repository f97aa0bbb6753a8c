package matchservice

import (
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
)

// Topics published by the match service.
const (
	TopicPlayerJoined   = "match.player.joined.v1"
	TopicPlayerRefunded = "match.player.refunded.v1"
	TopicMatchStarted   = "match.started.v1"
	TopicRoundAdvanced  = "match.round.advanced.v1"
	TopicMatchCompleted = "match.completed.v1"
	TopicMatchSettled   = "match.settled.v1"
	TopicTransferSent   = "match.transfer.completed.v1"
)

type PlayerJoinedPayload struct {
	MatchID       string             `json:"match_id"`
	PlayerAddress string             `json:"player_address"`
	PlayerCount   int                `json:"player_count"`
	MaxPlayers    int                `json:"max_players"`
	Status        matchdomain.Status `json:"status"`
}

type PlayerRefundedPayload struct {
	MatchID       string             `json:"match_id"`
	PlayerAddress string             `json:"player_address"`
	Amount        int64              `json:"amount_lamports"`
	Signature     string             `json:"signature"`
	PlayerCount   int                `json:"player_count"`
	Status        matchdomain.Status `json:"status"`
}

type MatchStartedPayload struct {
	MatchID        string    `json:"match_id"`
	PlayerCount    int       `json:"player_count"`
	RoundStartedAt time.Time `json:"round_started_at"`
}

type RoundAdvancedPayload struct {
	MatchID        string                          `json:"match_id"`
	ResolvedRound  int                             `json:"resolved_round"`
	Round          int                             `json:"round"`
	Eliminated     []matchdomain.EliminationRecord `json:"eliminated"`
	Survivors      []string                        `json:"survivors"`
	RoundStartedAt time.Time                       `json:"round_started_at"`
}

type MatchCompletedPayload struct {
	MatchID    string                 `json:"match_id"`
	Winner     string                 `json:"winner"`
	FinalStats matchdomain.FinalStats `json:"final_stats"`
}

type MatchSettledPayload struct {
	MatchID string            `json:"match_id"`
	Winner  string            `json:"winner"`
	Prize   matchdomain.Prize `json:"prize"`
}

type TransferCompletedPayload struct {
	MatchID   string `json:"match_id"`
	Winner    string `json:"winner"`
	Signature string `json:"signature"`
	Attempts  int    `json:"attempts"`
}
