package matchservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
)

// errRefundAfterStart means a refunded player's match left the lobby before
// the seat could be removed.
var errRefundAfterStart = errors.New("refunded player's match already started")

// RequestRefund pays a player's entry fee back, less the transfer fee, and
// removes them from a match that has not started.
func (s *MatchService) RequestRefund(ctx context.Context, matchID, playerAddress string) (*RefundResponse, error) {
	matchID = strings.TrimSpace(matchID)
	playerAddress = strings.TrimSpace(playerAddress)

	result, err := withTelemetry(s, ctx, "RequestRefund", matchID, func(ctx context.Context) (results.OperationResult[*RefundResponse, error], error) {
		if matchID == "" || playerAddress == "" {
			return results.FailureResult[*RefundResponse, error](apperror.InvalidArgument("match id and player address are required")), nil
		}
		return s.requestRefundLogic(ctx, matchID, playerAddress)
	})
	return unwrapResult(result, err)
}

func (s *MatchService) requestRefundLogic(ctx context.Context, matchID, playerAddress string) (results.OperationResult[*RefundResponse, error], error) {
	var amount int64

	// The flag is written before any funds move so a second request is rejected.
	marked, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdb.Match, error], error) {
		m, _, err := s.mutate(ctx, db, matchID, func(m *matchdb.Match) (bool, error) {
			if !m.Status.IsOpen() {
				return false, apperror.FailedPrecondition("refunds are only possible before the match starts; match %s is %s", m.ID, m.Status)
			}
			p, ok := m.Players[playerAddress]
			if !ok {
				return false, apperror.NotFound("player %s is not in match %s", playerAddress, m.ID)
			}
			if p.RefundRequested {
				return false, apperror.AlreadyExists("refund already requested for %s", playerAddress)
			}
			amount = p.SolPaid - s.cfg.FixedTransferFeeLamports
			if amount <= 0 {
				return false, apperror.FailedPrecondition("paid amount %s SOL does not cover the transfer fee", matchdomain.FormatSOL(p.SolPaid))
			}
			p.RefundRequested = true
			return true, nil
		})
		if err != nil {
			return failureOrError[*matchdb.Match](err)
		}
		return results.SuccessResult[*matchdb.Match, error](m), nil
	})
	if err != nil || marked.IsFailure() {
		return results.OperationResult[*RefundResponse, error]{Failure: marked.Failure}, err
	}

	signature, err := s.ledger.TransferSOL(ctx, playerAddress, amount)
	if err != nil {
		s.clearRefundFlag(ctx, matchID, playerAddress)
		return results.FailureResult[*RefundResponse, error](apperror.Internal(err, "refund transfer failed")), nil
	}

	s.logger.InfoContext(ctx, "Refund transferred",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
		attr.Wallet(playerAddress),
		attr.Int64("amount_lamports", amount),
		attr.String("signature", signature),
	)

	removed, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdb.Match, error], error) {
		now := s.now()
		m, _, err := s.mutate(ctx, db, matchID, func(m *matchdb.Match) (bool, error) {
			p, ok := m.Players[playerAddress]
			if !ok {
				return false, nil
			}
			if !m.Status.IsOpen() {
				return false, fmt.Errorf("match %s is %s: %w", m.ID, m.Status, errRefundAfterStart)
			}
			delete(m.Players, playerAddress)
			m.TotalCollected -= p.SolPaid
			m.RecountPlayers()

			switch m.PlayerCount {
			case 0:
				m.Status = matchdomain.StatusCancelled
				m.CountdownStartedAt = nil
			case 1:
				m.Status = matchdomain.StatusWaiting
				m.CountdownStartedAt = nil
			default:
				m.Status = matchdomain.StatusLobby
				m.CountdownStartedAt = &now
			}
			return true, nil
		})
		if err != nil {
			return results.OperationResult[*matchdb.Match, error]{}, err
		}
		return results.SuccessResult[*matchdb.Match, error](m), nil
	})
	if err != nil {
		// Funds already left the treasury; surface it loudly for reconciliation.
		s.logger.ErrorContext(ctx, "Refund paid but player removal failed",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Wallet(playerAddress),
			attr.String("signature", signature),
			attr.Error(err),
		)
		return results.OperationResult[*RefundResponse, error]{}, fmt.Errorf("failed to remove refunded player: %w", err)
	}
	m := *removed.Success

	s.publish(ctx, TopicPlayerRefunded, PlayerRefundedPayload{
		MatchID:       m.ID,
		PlayerAddress: playerAddress,
		Amount:        amount,
		Signature:     signature,
		PlayerCount:   m.PlayerCount,
		Status:        m.Status,
	})
	s.scheduleNextTick(ctx, m)

	return results.SuccessResult[*RefundResponse, error](&RefundResponse{
		Success:         true,
		RefundAmount:    amount,
		RefundSignature: signature,
		NewPlayerCount:  m.PlayerCount,
		NewStatus:       m.Status,
	}), nil
}

// clearRefundFlag lets the player ask again after a failed transfer.
func (s *MatchService) clearRefundFlag(ctx context.Context, matchID, playerAddress string) {
	_, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[bool, error], error) {
		_, _, err := s.mutate(ctx, db, matchID, func(m *matchdb.Match) (bool, error) {
			p, ok := m.Players[playerAddress]
			if !ok || !p.RefundRequested {
				return false, nil
			}
			p.RefundRequested = false
			return true, nil
		})
		return results.OperationResult[bool, error]{}, err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to clear refund flag",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Wallet(playerAddress),
			attr.Error(err),
		)
	}
}
