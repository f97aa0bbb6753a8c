package matchdomain

import "time"

type PlayerStatus string

const (
	PlayerAlive      PlayerStatus = "alive"
	PlayerEliminated PlayerStatus = "eliminated"
)

type EliminationReason string

const (
	ReasonSlowestResponse EliminationReason = "slowest_response"
	ReasonNoAction        EliminationReason = "no_action"
)

// Player is embedded in a match keyed by wallet address.
type Player struct {
	Address              string            `json:"address"`
	Status               PlayerStatus      `json:"status"`
	JoinedAt             time.Time         `json:"joinedAt"`
	LastActionRound      int               `json:"lastActionRound"`
	LastActionAt         *time.Time        `json:"lastActionAt,omitempty"`
	ResponseTimeMs       *int64            `json:"responseTime,omitempty"`
	ClientResponseTimeMs *int64            `json:"clientResponseTime,omitempty"`
	ServerResponseTimeMs *int64            `json:"serverResponseTime,omitempty"`
	SolPaid              int64             `json:"solPaid"`
	PaymentSignature     string            `json:"paymentSignature,omitempty"`
	RefundRequested      bool              `json:"refundRequested"`
	EliminatedAt         *time.Time        `json:"eliminatedAt,omitempty"`
	EliminatedRound      int               `json:"eliminatedRound,omitempty"`
	EliminationReason    EliminationReason `json:"eliminationReason,omitempty"`
}

func (p *Player) Alive() bool { return p.Status == PlayerAlive }

// ActedIn reports whether the player submitted an action for round.
func (p *Player) ActedIn(round int) bool { return p.LastActionRound == round }

func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	c := *p
	c.LastActionAt = cloneTime(p.LastActionAt)
	c.ResponseTimeMs = cloneInt64(p.ResponseTimeMs)
	c.ClientResponseTimeMs = cloneInt64(p.ClientResponseTimeMs)
	c.ServerResponseTimeMs = cloneInt64(p.ServerResponseTimeMs)
	c.EliminatedAt = cloneTime(p.EliminatedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}
