package matchservice

import (
	"context"
	"fmt"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
)

// GetMatch returns the match snapshot rendered by clients.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*MatchView, error) {
	result, err := withTelemetry(s, ctx, "GetMatch", matchID, func(ctx context.Context) (results.OperationResult[*MatchView, error], error) {
		if matchID == "" {
			return results.FailureResult[*MatchView, error](apperror.InvalidArgument("match id is required")), nil
		}
		m, err := s.loadMatch(ctx, matchID)
		if err != nil {
			return failureOrError[*MatchView](err)
		}
		return results.SuccessResult[*MatchView, error](s.toView(m)), nil
	})
	return unwrapResult(result, err)
}

func (s *MatchService) toView(m *matchdb.Match) *MatchView {
	players := m.Players
	if players == nil {
		players = map[string]*matchdomain.Player{}
	}
	return &MatchView{
		ID:                 m.ID,
		Status:             m.Status,
		Players:            players,
		PlayerCount:        m.PlayerCount,
		Round:              m.Round,
		RoundStartedAt:     m.RoundStartedAt,
		CountdownStartedAt: m.CountdownStartedAt,
		CountdownDuration:  m.CountdownDurationSec,
		RoundDurationSec:   m.RoundDurationSec,
		MaxPlayers:         m.MaxPlayers,
		EntryFee:           m.EntryFeeLamports,
		TotalCollected:     m.TotalCollected,
		TokenSymbol:        m.TokenSymbol,
		PayoutAssetMint:    m.PayoutAssetMint,
		Winner:             m.Winner,
		CompletedAt:        m.CompletedAt,
		FinalStats:         m.FinalStats,
		Prize:              m.Prize,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
		ServerTime:         s.now(),
	}
}

// CleanupStaleLobbies ends empty open matches created more than olderThan ago.
func (s *MatchService) CleanupStaleLobbies(ctx context.Context, olderThan time.Duration) (int, error) {
	result, err := withTelemetry(s, ctx, "CleanupStaleLobbies", olderThan.String(), func(ctx context.Context) (results.OperationResult[int, error], error) {
		cutoff := s.now().Add(-olderThan)
		n, err := s.repo.EndStaleLobbies(ctx, nil, cutoff)
		if err != nil {
			return results.OperationResult[int, error]{}, fmt.Errorf("failed to end stale lobbies: %w", err)
		}
		if n > 0 {
			s.logger.InfoContext(ctx, "Ended stale lobbies",
				attr.ExtractCorrelationID(ctx),
				attr.Int("count", n),
				attr.Time("cutoff", cutoff),
			)
		}
		return results.SuccessResult[int, error](n), nil
	})
	return unwrapResult(result, err)
}

// RetryStuckTransfers retries the transfer leg of every settled match that
// is still owed a transfer and reports how many went through.
func (s *MatchService) RetryStuckTransfers(ctx context.Context) (int, error) {
	result, err := withTelemetry(s, ctx, "RetryStuckTransfers", "all", func(ctx context.Context) (results.OperationResult[int, error], error) {
		stuck, err := s.repo.ListStuckTransfers(ctx, nil)
		if err != nil {
			return results.OperationResult[int, error]{}, fmt.Errorf("failed to list stuck transfers: %w", err)
		}

		sent := 0
		for _, m := range stuck {
			resp, err := s.RetryTransfer(ctx, m.ID)
			if err != nil {
				s.logger.WarnContext(ctx, "Stuck transfer still failing",
					attr.ExtractCorrelationID(ctx),
					attr.MatchID(m.ID),
					attr.Error(err),
				)
				continue
			}
			if resp.Success {
				sent++
			}
		}
		return results.SuccessResult[int, error](sent), nil
	})
	return unwrapResult(result, err)
}

// ListReconciliation returns audit summaries written at or after since,
// each paired with the current prize of its match.
func (s *MatchService) ListReconciliation(ctx context.Context, since time.Time) ([]*matchdb.ReconciliationRow, error) {
	result, err := withTelemetry(s, ctx, "ListReconciliation", since.Format(time.RFC3339), func(ctx context.Context) (results.OperationResult[[]*matchdb.ReconciliationRow, error], error) {
		summaries, err := s.repo.ListPaymentSummaries(ctx, nil, since)
		if err != nil {
			return results.OperationResult[[]*matchdb.ReconciliationRow, error]{}, fmt.Errorf("failed to list payment summaries: %w", err)
		}
		ids := make([]string, 0, len(summaries))
		for _, summary := range summaries {
			ids = append(ids, summary.MatchID)
		}
		prizes, err := s.repo.ListPrizes(ctx, nil, ids)
		if err != nil {
			return results.OperationResult[[]*matchdb.ReconciliationRow, error]{}, fmt.Errorf("failed to load prizes: %w", err)
		}
		rows := make([]*matchdb.ReconciliationRow, 0, len(summaries))
		for _, summary := range summaries {
			rows = append(rows, &matchdb.ReconciliationRow{Summary: summary, Prize: prizes[summary.MatchID]})
		}
		return results.SuccessResult[[]*matchdb.ReconciliationRow, error](rows), nil
	})
	return unwrapResult(result, err)
}

var _ Service = (*MatchService)(nil)
