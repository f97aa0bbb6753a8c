package matchdomain

import (
	"sort"
	"time"
)

// WinnerSelection names the rule that picked the winner.
type WinnerSelection string

const (
	SelectionLastAlive         WinnerSelection = "last_alive"
	SelectionFastestFinalRound WinnerSelection = "fastest_final_round"
	SelectionFurthestRound     WinnerSelection = "furthest_round"
)

// RoundOutcome is the result of resolving one expired round.
type RoundOutcome struct {
	Round           int
	Eliminated      []EliminationRecord
	Survivors       []string
	Completed       bool
	Winner          string
	WinnerSelection WinnerSelection
	NextRound       int
}

// ResolveRound applies the elimination rules for round to players in place
// and reports what happened. Ties on response time are broken by address so
// the same inputs always eliminate the same players.
func ResolveRound(round int, players map[string]*Player, now time.Time) RoundOutcome {
	outcome := RoundOutcome{Round: round}

	var acted, idle []*Player
	for _, addr := range sortedAddresses(players) {
		p := players[addr]
		if !p.Alive() {
			continue
		}
		if p.ActedIn(round) {
			acted = append(acted, p)
		} else {
			idle = append(idle, p)
		}
	}

	switch {
	case len(acted) >= 2:
		sort.SliceStable(acted, func(i, j int) bool { return slowerThan(acted[i], acted[j]) })
		outcome.Eliminated = append(outcome.Eliminated, eliminate(acted[0], round, ReasonSlowestResponse, now))
	case len(idle) > 0:
		// Nobody acted, or a single player did: every idle player is out.
		for _, p := range idle {
			outcome.Eliminated = append(outcome.Eliminated, eliminate(p, round, ReasonNoAction, now))
		}
	}

	var alive []*Player
	for _, addr := range sortedAddresses(players) {
		if p := players[addr]; p.Alive() {
			alive = append(alive, p)
		}
	}

	switch len(alive) {
	case 0:
		if len(players) == 0 {
			outcome.Completed = true
			return outcome
		}
		winner, selection := SelectWinner(round, players)
		revive(players[winner])
		outcome.Completed = true
		outcome.Winner = winner
		outcome.WinnerSelection = selection
		outcome.Eliminated = withoutAddress(outcome.Eliminated, winner)
	case 1:
		outcome.Completed = true
		outcome.Winner = alive[0].Address
		outcome.WinnerSelection = SelectionLastAlive
	default:
		for _, p := range alive {
			p.ResponseTimeMs = nil
			p.ClientResponseTimeMs = nil
			p.ServerResponseTimeMs = nil
			outcome.Survivors = append(outcome.Survivors, p.Address)
		}
		outcome.NextRound = round + 1
	}

	return outcome
}

// SelectWinner picks a winner when no player is left alive: the fastest
// responder of the final round, otherwise the player who got furthest, then
// fastest, then earliest to join.
func SelectWinner(round int, players map[string]*Player) (string, WinnerSelection) {
	var finalists []*Player
	all := make([]*Player, 0, len(players))
	for _, addr := range sortedAddresses(players) {
		p := players[addr]
		all = append(all, p)
		if p.ActedIn(round) && p.ResponseTimeMs != nil {
			finalists = append(finalists, p)
		}
	}

	if len(finalists) > 0 {
		sort.SliceStable(finalists, func(i, j int) bool { return fasterThan(finalists[i], finalists[j]) })
		return finalists[0].Address, SelectionFastestFinalRound
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.LastActionRound != b.LastActionRound {
			return a.LastActionRound > b.LastActionRound
		}
		if cmp := compareResponse(a, b); cmp != 0 {
			return cmp < 0
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.Address < b.Address
	})
	return all[0].Address, SelectionFurthestRound
}

// compareResponse orders by response time ascending with missing times last.
func compareResponse(a, b *Player) int {
	switch {
	case a.ResponseTimeMs == nil && b.ResponseTimeMs == nil:
		return 0
	case a.ResponseTimeMs == nil:
		return 1
	case b.ResponseTimeMs == nil:
		return -1
	case *a.ResponseTimeMs < *b.ResponseTimeMs:
		return -1
	case *a.ResponseTimeMs > *b.ResponseTimeMs:
		return 1
	}
	return 0
}

func slowerThan(a, b *Player) bool {
	if cmp := compareResponse(a, b); cmp != 0 {
		return cmp > 0
	}
	return a.Address < b.Address
}

func fasterThan(a, b *Player) bool {
	if cmp := compareResponse(a, b); cmp != 0 {
		return cmp < 0
	}
	return a.Address < b.Address
}

func eliminate(p *Player, round int, reason EliminationReason, now time.Time) EliminationRecord {
	at := now
	p.Status = PlayerEliminated
	p.EliminatedAt = &at
	p.EliminatedRound = round
	p.EliminationReason = reason
	return EliminationRecord{Address: p.Address, Round: round, Reason: reason, At: now}
}

func revive(p *Player) {
	p.Status = PlayerAlive
	p.EliminatedAt = nil
	p.EliminatedRound = 0
	p.EliminationReason = ""
}

func withoutAddress(records []EliminationRecord, address string) []EliminationRecord {
	out := records[:0]
	for _, r := range records {
		if r.Address != address {
			out = append(out, r)
		}
	}
	return out
}

func sortedAddresses(players map[string]*Player) []string {
	addrs := make([]string, 0, len(players))
	for addr := range players {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
