package matchservice

import (
	"context"
	"fmt"
	"sort"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
)

type transition int

const (
	transitionNone transition = iota
	transitionStarted
	transitionRoundAdvanced
	transitionCompleted
)

// tickOutcome is what one match did during a tick.
type tickOutcome struct {
	kind    transition
	match   *matchdb.Match
	outcome matchdomain.RoundOutcome
}

// ProcessTick advances every active match whose timer has expired. A match
// whose lease is held elsewhere is skipped; the holder or the next tick will
// pick it up.
func (s *MatchService) ProcessTick(ctx context.Context) (*TickResult, error) {
	result, err := withTelemetry(s, ctx, "ProcessTick", "all", func(ctx context.Context) (results.OperationResult[*TickResult, error], error) {
		return s.processTickLogic(ctx)
	})
	return unwrapResult(result, err)
}

// ProcessMatch runs the tick for a single match.
func (s *MatchService) ProcessMatch(ctx context.Context, matchID string) (bool, error) {
	result, err := withTelemetry(s, ctx, "ProcessMatch", matchID, func(ctx context.Context) (results.OperationResult[bool, error], error) {
		processed, err := s.tickMatch(ctx, matchID)
		if err != nil {
			return failureOrError[bool](err)
		}
		return results.SuccessResult[bool, error](processed), nil
	})
	return unwrapResult(result, err)
}

func (s *MatchService) processTickLogic(ctx context.Context) (results.OperationResult[*TickResult, error], error) {
	matches, err := s.repo.ListByStatus(ctx, nil, matchdomain.TickStatuses)
	if err != nil {
		return results.OperationResult[*TickResult, error]{}, fmt.Errorf("failed to list active matches: %w", err)
	}

	processed, failed := 0, 0
	for _, m := range matches {
		ok, err := s.tickMatch(ctx, m.ID)
		if err != nil {
			failed++
			s.logger.ErrorContext(ctx, "Failed to process match",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(m.ID),
				attr.Error(err),
			)
			continue
		}
		if ok {
			processed++
		}
	}

	msg := fmt.Sprintf("processed %d of %d active matches", processed, len(matches))
	if failed > 0 {
		msg = fmt.Sprintf("%s, %d failed", msg, failed)
	}
	return results.SuccessResult[*TickResult, error](&TickResult{
		Success:          true,
		ProcessedMatches: processed,
		Message:          msg,
	}), nil
}

// tickMatch advances one match under its lease and settles it when it
// completes. It reports whether anything was written.
func (s *MatchService) tickMatch(ctx context.Context, matchID string) (bool, error) {
	out, err := s.advanceUnderLease(ctx, matchID)
	if err != nil || out.kind == transitionNone {
		return false, err
	}

	m := out.match
	switch out.kind {
	case transitionStarted:
		s.publish(ctx, TopicMatchStarted, MatchStartedPayload{
			MatchID:        m.ID,
			PlayerCount:    m.PlayerCount,
			RoundStartedAt: *m.RoundStartedAt,
		})
		s.scheduleNextTick(ctx, m)

	case transitionRoundAdvanced:
		s.recordEliminations(ctx, out.outcome)
		s.publish(ctx, TopicRoundAdvanced, RoundAdvancedPayload{
			MatchID:        m.ID,
			ResolvedRound:  out.outcome.Round,
			Round:          m.Round,
			Eliminated:     out.outcome.Eliminated,
			Survivors:      out.outcome.Survivors,
			RoundStartedAt: *m.RoundStartedAt,
		})
		s.scheduleNextTick(ctx, m)

	case transitionCompleted:
		s.recordEliminations(ctx, out.outcome)
		s.metrics.RecordMatchCompleted(ctx, string(out.outcome.WinnerSelection))
		s.logger.InfoContext(ctx, "Match completed",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Wallet(m.Winner),
			attr.Int("rounds", m.Round),
			attr.String("winner_selection", string(out.outcome.WinnerSelection)),
		)
		if m.FinalStats != nil {
			s.publish(ctx, TopicMatchCompleted, MatchCompletedPayload{
				MatchID:    m.ID,
				Winner:     m.Winner,
				FinalStats: *m.FinalStats,
			})
		}
		if _, err := s.SettleMatch(ctx, m.ID); err != nil {
			s.logger.ErrorContext(ctx, "Settlement failed after completion",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(m.ID),
				attr.Error(err),
			)
		}
	}
	return true, nil
}

func (s *MatchService) recordEliminations(ctx context.Context, outcome matchdomain.RoundOutcome) {
	for _, e := range outcome.Eliminated {
		s.metrics.RecordElimination(ctx, string(e.Reason))
	}
}

// advanceUnderLease holds the match lease while the transition is computed
// and written.
func (s *MatchService) advanceUnderLease(ctx context.Context, matchID string) (tickOutcome, error) {
	key := "match:" + matchID
	token, ok, err := s.leases.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return tickOutcome{}, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		s.metrics.RecordLeaseContention(ctx)
		s.logger.DebugContext(ctx, "Match lease held elsewhere, skipping",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
		)
		return tickOutcome{}, nil
	}
	defer s.releaseLease(ctx, key, token)

	var out tickOutcome
	_, err = runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[bool, error], error) {
		m, changed, err := s.mutate(ctx, db, matchID, func(m *matchdb.Match) (bool, error) {
			out = tickOutcome{}
			kind, outcome := s.advance(m, s.now())
			out.kind, out.outcome = kind, outcome
			return kind != transitionNone, nil
		})
		if err != nil {
			return results.OperationResult[bool, error]{}, err
		}
		if !changed {
			out = tickOutcome{}
		}
		out.match = m
		return results.SuccessResult[bool, error](changed), nil
	})
	if err != nil {
		return tickOutcome{}, err
	}
	return out, nil
}

// advance applies the timer-driven transition due for m at now. It never
// moves a match backwards.
func (s *MatchService) advance(m *matchdb.Match, now time.Time) (transition, matchdomain.RoundOutcome) {
	switch m.Status {
	case matchdomain.StatusStarting:
		startRound(m, now)
		return transitionStarted, matchdomain.RoundOutcome{}

	case matchdomain.StatusLobby:
		if m.CountdownStartedAt == nil || m.PlayerCount < 2 || hasPendingRefund(m) {
			return transitionNone, matchdomain.RoundOutcome{}
		}
		if now.Sub(*m.CountdownStartedAt) < time.Duration(m.CountdownDurationSec)*time.Second {
			return transitionNone, matchdomain.RoundOutcome{}
		}
		startRound(m, now)
		return transitionStarted, matchdomain.RoundOutcome{}

	case matchdomain.StatusInProgress:
		if m.RoundStartedAt == nil {
			m.RoundStartedAt = &now
			return transitionRoundAdvanced, matchdomain.RoundOutcome{Round: m.Round, NextRound: m.Round}
		}
		deadline := time.Duration(m.RoundDurationSec)*time.Second + s.cfg.RoundBuffer
		if now.Sub(*m.RoundStartedAt) < deadline {
			return transitionNone, matchdomain.RoundOutcome{}
		}

		outcome := matchdomain.ResolveRound(m.Round, m.Players, now)
		if outcome.Completed {
			completeMatch(m, outcome, now)
			return transitionCompleted, outcome
		}
		m.Round = outcome.NextRound
		m.RoundStartedAt = &now
		return transitionRoundAdvanced, outcome
	}
	return transitionNone, matchdomain.RoundOutcome{}
}

func startRound(m *matchdb.Match, now time.Time) {
	m.Status = matchdomain.StatusInProgress
	m.Round = 1
	m.RoundStartedAt = &now
	m.CountdownStartedAt = nil
}

func hasPendingRefund(m *matchdb.Match) bool {
	for _, p := range m.Players {
		if p.RefundRequested {
			return true
		}
	}
	return false
}

// completeMatch writes the terminal fields. The winner is never changed once set.
func completeMatch(m *matchdb.Match, outcome matchdomain.RoundOutcome, now time.Time) {
	m.Status = matchdomain.StatusCompleted
	m.CompletedAt = &now
	if m.Winner == "" {
		m.Winner = outcome.Winner
	}

	stats := &matchdomain.FinalStats{
		EliminationOrder: eliminationOrder(m.Players),
		Rounds:           m.Round,
		WinnerSelection:  outcome.WinnerSelection,
	}
	if w, ok := m.Players[m.Winner]; ok && w.ResponseTimeMs != nil {
		rt := *w.ResponseTimeMs
		stats.WinnerResponseTimeMs = &rt
	}
	m.FinalStats = stats
}

// eliminationOrder lists eliminated players by round, then time, then address.
func eliminationOrder(players map[string]*matchdomain.Player) []matchdomain.EliminationRecord {
	order := make([]matchdomain.EliminationRecord, 0, len(players))
	for _, p := range players {
		if p.Alive() {
			continue
		}
		rec := matchdomain.EliminationRecord{Address: p.Address, Round: p.EliminatedRound, Reason: p.EliminationReason}
		if p.EliminatedAt != nil {
			rec.At = *p.EliminatedAt
		}
		order = append(order, rec)
	}
	sort.Slice(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		if !a.At.Equal(b.At) {
			return a.At.Before(b.At)
		}
		return a.Address < b.Address
	})
	return order
}
