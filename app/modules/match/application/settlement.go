package matchservice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/exchange"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/ledger"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
)

// Settlement outcomes recorded in metrics.
const (
	settlementDirect         = "direct"
	settlementSwapTransfer   = "swap_transfer"
	settlementTransferFailed = "transfer_failed"
	settlementSwapFailed     = "swap_failed"
	settlementEmpty          = "empty"
)

// errInsufficientTreasury is the balance pre-check failing.
var errInsufficientTreasury = errors.New("treasury balance too low")

// SettleMatch converts the pool of a completed match into the payout asset
// and delivers it to the winner. It runs once per match: a match that already
// carries a prize is returned unchanged. Failures are recorded on the prize
// and never touch the match status or winner.
func (s *MatchService) SettleMatch(ctx context.Context, matchID string) (*matchdomain.Prize, error) {
	result, err := withTelemetry(s, ctx, "SettleMatch", matchID, func(ctx context.Context) (results.OperationResult[*matchdomain.Prize, error], error) {
		return s.settleMatchLogic(ctx, matchID)
	})
	return unwrapResult(result, err)
}

func (s *MatchService) settleMatchLogic(ctx context.Context, matchID string) (results.OperationResult[*matchdomain.Prize, error], error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return failureOrError[*matchdomain.Prize](err)
	}
	if m.Status != matchdomain.StatusCompleted {
		return results.FailureResult[*matchdomain.Prize, error](apperror.FailedPrecondition("match %s is %s, not completed", m.ID, m.Status)), nil
	}
	if m.Prize != nil {
		return results.SuccessResult[*matchdomain.Prize, error](m.Prize), nil
	}

	key := "settle:" + matchID
	token, ok, err := s.leases.Acquire(ctx, key, settlementLeaseTTL)
	if err != nil {
		return results.OperationResult[*matchdomain.Prize, error]{}, fmt.Errorf("failed to acquire settlement lease: %w", err)
	}
	if !ok {
		return results.FailureResult[*matchdomain.Prize, error](apperror.FailedPrecondition("settlement of match %s is already running", matchID)), nil
	}
	defer s.releaseLease(ctx, key, token)

	// Re-read under the lease; another instance may have finished meanwhile.
	m, err = s.loadMatch(ctx, matchID)
	if err != nil {
		return failureOrError[*matchdomain.Prize](err)
	}
	if m.Prize != nil {
		return results.SuccessResult[*matchdomain.Prize, error](m.Prize), nil
	}

	prize, outcome := s.computePrize(ctx, m)

	settled, written, err := s.writePrize(ctx, matchID, func(m *matchdb.Match) (bool, error) {
		if m.Prize != nil {
			return false, nil
		}
		m.Prize = prize
		return true, nil
	})
	if err != nil {
		return results.OperationResult[*matchdomain.Prize, error]{}, fmt.Errorf("failed to persist prize: %w", err)
	}
	if !written {
		return results.SuccessResult[*matchdomain.Prize, error](settled.Prize), nil
	}

	s.metrics.RecordSettlement(ctx, outcome)
	s.logger.InfoContext(ctx, "Match settled",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
		attr.Wallet(settled.Winner),
		attr.String("outcome", outcome),
		attr.Uint64("payout_raw", prize.PayoutAmountRaw),
		attr.Bool("swap_success", prize.SwapSuccess),
		attr.Bool("transfer_success", prize.TransferSuccess),
	)

	if prize.NeedsTransfer() {
		s.scheduleTransferRetry(ctx, matchID)
	}
	s.writeSummary(ctx, settled)
	s.publish(ctx, TopicMatchSettled, MatchSettledPayload{
		MatchID: matchID,
		Winner:  settled.Winner,
		Prize:   *prize,
	})

	return results.SuccessResult[*matchdomain.Prize, error](prize), nil
}

// computePrize runs the swap and transfer legs and describes the result.
func (s *MatchService) computePrize(ctx context.Context, m *matchdb.Match) (*matchdomain.Prize, string) {
	now := s.now()
	prize := &matchdomain.Prize{
		TokenSymbol: m.TokenSymbol,
		Mint:        m.PayoutAssetMint,
		SettledAt:   now,
	}

	if m.TotalCollected <= 0 || m.Winner == "" {
		prize.FailureReason = "no funds collected"
		return prize, settlementEmpty
	}

	payout := matchdomain.ApplyBasisPoints(m.TotalCollected, s.cfg.HouseFeeBps) - s.cfg.FixedTransferFeeLamports
	prize.InputLamports = payout
	if payout <= 0 {
		prize.SwapFailed = true
		prize.FailureReason = "pool does not cover the transfer fee"
		return prize, settlementSwapFailed
	}

	if err := s.checkTreasurySOL(ctx, payout); err != nil {
		s.recordSwapFailure(ctx, m, prize, err)
		return prize, settlementSwapFailed
	}

	quote, err := s.exchange.Quote(ctx, exchange.QuoteRequest{
		InputMint:   exchange.NativeMint,
		OutputMint:  m.PayoutAssetMint,
		Amount:      uint64(payout),
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		s.recordSwapFailure(ctx, m, prize, err)
		return prize, settlementSwapFailed
	}

	res, err := s.exchange.DirectSwap(ctx, quote, m.Winner)
	if err == nil {
		at := s.now()
		prize.Direct = true
		prize.SwapSuccess = true
		prize.SwapSignature = res.Signature
		prize.TransferSuccess = true
		prize.TransferSignature = res.Signature
		prize.TransferAttempts = 1
		prize.TransferredAt = &at
		s.setPayoutAmount(prize, m, res.OutAmount)
		return prize, settlementDirect
	}
	s.logger.WarnContext(ctx, "Direct swap unavailable, falling back to swap and transfer",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.Bool("unsupported", errors.Is(err, exchange.ErrDirectSwapUnsupported)),
		attr.Error(err),
	)

	if err := s.checkTreasurySOL(ctx, payout); err != nil {
		s.recordSwapFailure(ctx, m, prize, err)
		return prize, settlementSwapFailed
	}
	res, err = s.exchange.Swap(ctx, quote)
	if err != nil {
		s.recordSwapFailure(ctx, m, prize, err)
		return prize, settlementSwapFailed
	}
	prize.SwapSuccess = true
	prize.SwapSignature = res.Signature
	s.setPayoutAmount(prize, m, res.OutAmount)

	s.transferPrize(ctx, m.ID, m.Winner, prize)
	if !prize.TransferSuccess {
		return prize, settlementTransferFailed
	}
	return prize, settlementSwapTransfer
}

func (s *MatchService) setPayoutAmount(prize *matchdomain.Prize, m *matchdb.Match, raw uint64) {
	prize.PayoutAmountRaw = raw
	prize.PayoutAmountFormatted = matchdomain.FormatTokenAmount(raw, m.PayoutAssetDecimals)
}

// recordSwapFailure marks the prize as unpaid and attaches a best-effort
// estimate so the winner can still be shown an amount.
func (s *MatchService) recordSwapFailure(ctx context.Context, m *matchdb.Match, prize *matchdomain.Prize, cause error) {
	prize.SwapFailed = true
	prize.FailureReason = cause.Error()
	prize.InsufficientBalance = isInsufficientFunds(cause)

	s.logger.ErrorContext(ctx, "Prize swap failed",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.Bool("insufficient_balance", prize.InsufficientBalance),
		attr.Error(cause),
	)

	quote, err := s.exchange.Quote(ctx, exchange.QuoteRequest{
		InputMint:   exchange.NativeMint,
		OutputMint:  m.PayoutAssetMint,
		Amount:      uint64(prize.InputLamports),
		SlippageBps: s.cfg.SlippageBps,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to get estimate quote",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
		return
	}
	prize.Estimated = true
	s.setPayoutAmount(prize, m, quote.OutAmount)
}

func isInsufficientFunds(err error) bool {
	return errors.Is(err, errInsufficientTreasury) ||
		errors.Is(err, ledger.ErrInsufficientFunds) ||
		errors.Is(err, exchange.ErrInsufficientFunds)
}

func (s *MatchService) checkTreasurySOL(ctx context.Context, lamports int64) error {
	balance, err := s.ledger.Balance(ctx, s.cfg.TreasuryAddress)
	if err != nil {
		return fmt.Errorf("failed to read treasury balance: %w", err)
	}
	if balance < lamports+s.cfg.FixedTransferFeeLamports {
		return fmt.Errorf("%w: have %s SOL, need %s SOL", errInsufficientTreasury,
			matchdomain.FormatSOL(balance), matchdomain.FormatSOL(lamports+s.cfg.FixedTransferFeeLamports))
	}
	return nil
}

func (s *MatchService) checkTreasuryToken(ctx context.Context, mint string, amount uint64) error {
	balance, err := s.ledger.TokenBalance(ctx, s.cfg.TreasuryAddress, mint)
	if err != nil {
		return fmt.Errorf("failed to read treasury token balance: %w", err)
	}
	if balance < amount {
		return fmt.Errorf("%w: have %d, need %d", errInsufficientTreasury, balance, amount)
	}
	return nil
}

// transferPrize sends the swapped tokens to the winner, retrying with linear
// backoff. It only writes the transfer fields of prize.
func (s *MatchService) transferPrize(ctx context.Context, matchID, winner string, prize *matchdomain.Prize) {
	attempts := s.cfg.TransferAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		prize.TransferAttempts++

		lastErr = s.checkTreasuryToken(ctx, prize.Mint, prize.PayoutAmountRaw)
		if lastErr == nil {
			var sig string
			sig, lastErr = s.ledger.TransferToken(ctx, winner, prize.Mint, prize.PayoutAmountRaw)
			if lastErr == nil {
				at := s.now()
				prize.TransferSuccess = true
				prize.TransferSignature = sig
				prize.TransferError = ""
				prize.TransferredAt = &at
				return
			}
		}

		s.logger.WarnContext(ctx, "Prize transfer attempt failed",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Int("attempt", attempt),
			attr.Error(lastErr),
		)
		if attempt == attempts {
			break
		}
		if err := s.sleep(ctx, time.Duration(attempt)*s.cfg.BackoffStep); err != nil {
			lastErr = err
			break
		}
	}

	prize.TransferSuccess = false
	prize.TransferError = lastErr.Error()
	prize.InsufficientBalance = isInsufficientFunds(lastErr)
}

// RetryTransfer re-attempts only the transfer leg for a match whose swap
// already succeeded. It is a no-op success when the transfer went through.
func (s *MatchService) RetryTransfer(ctx context.Context, matchID string) (*RetryTransferResponse, error) {
	matchID = strings.TrimSpace(matchID)
	result, err := withTelemetry(s, ctx, "RetryTransfer", matchID, func(ctx context.Context) (results.OperationResult[*RetryTransferResponse, error], error) {
		if matchID == "" {
			return results.FailureResult[*RetryTransferResponse, error](apperror.InvalidArgument("match id is required")), nil
		}
		return s.retryTransferLogic(ctx, matchID)
	})
	return unwrapResult(result, err)
}

func (s *MatchService) retryTransferLogic(ctx context.Context, matchID string) (results.OperationResult[*RetryTransferResponse, error], error) {
	m, err := s.loadMatch(ctx, matchID)
	if err != nil {
		return failureOrError[*RetryTransferResponse](err)
	}
	if m.Prize == nil || !m.Prize.SwapSuccess {
		return results.FailureResult[*RetryTransferResponse, error](apperror.FailedPrecondition("match %s has no successful swap to transfer", matchID)), nil
	}
	if m.Prize.TransferSuccess {
		return results.SuccessResult[*RetryTransferResponse, error](&RetryTransferResponse{
			Success:           true,
			Message:           "prize already transferred",
			TransferSignature: m.Prize.TransferSignature,
		}), nil
	}

	key := "settle:" + matchID
	token, ok, err := s.leases.Acquire(ctx, key, settlementLeaseTTL)
	if err != nil {
		return results.OperationResult[*RetryTransferResponse, error]{}, fmt.Errorf("failed to acquire settlement lease: %w", err)
	}
	if !ok {
		return results.FailureResult[*RetryTransferResponse, error](apperror.FailedPrecondition("a transfer for match %s is already running", matchID)), nil
	}
	defer s.releaseLease(ctx, key, token)

	attempt := *m.Prize
	attempt.TransferAttempts = 0
	s.transferPrize(ctx, matchID, m.Winner, &attempt)

	updated, _, err := s.writePrize(ctx, matchID, func(m *matchdb.Match) (bool, error) {
		if m.Prize == nil || m.Prize.TransferSuccess {
			return false, nil
		}
		m.Prize.TransferAttempts += attempt.TransferAttempts
		m.Prize.TransferSuccess = attempt.TransferSuccess
		m.Prize.TransferSignature = attempt.TransferSignature
		m.Prize.TransferError = attempt.TransferError
		m.Prize.TransferredAt = attempt.TransferredAt
		if attempt.TransferSuccess {
			m.Prize.InsufficientBalance = false
		}
		return true, nil
	})
	if err != nil {
		return results.OperationResult[*RetryTransferResponse, error]{}, fmt.Errorf("failed to persist transfer result: %w", err)
	}

	if !updated.Prize.TransferSuccess {
		return results.FailureResult[*RetryTransferResponse, error](apperror.Internal(errors.New(attempt.TransferError), "prize transfer failed")), nil
	}

	s.publish(ctx, TopicTransferSent, TransferCompletedPayload{
		MatchID:   matchID,
		Winner:    updated.Winner,
		Signature: updated.Prize.TransferSignature,
		Attempts:  updated.Prize.TransferAttempts,
	})
	return results.SuccessResult[*RetryTransferResponse, error](&RetryTransferResponse{
		Success:           true,
		Message:           "prize transferred",
		TransferSignature: updated.Prize.TransferSignature,
	}), nil
}

func (s *MatchService) writePrize(ctx context.Context, matchID string, fn mutateFunc) (*matchdb.Match, bool, error) {
	var written bool
	res, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdb.Match, error], error) {
		m, changed, err := s.mutate(ctx, db, matchID, fn)
		if err != nil {
			return results.OperationResult[*matchdb.Match, error]{}, err
		}
		written = changed
		return results.SuccessResult[*matchdb.Match, error](m), nil
	})
	if err != nil {
		return nil, false, err
	}
	return *res.Success, written, nil
}

func (s *MatchService) scheduleTransferRetry(ctx context.Context, matchID string) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.ScheduleTransferRetry(ctx, matchID, s.now().Add(transferRetryDelay)); err != nil {
		s.logger.WarnContext(ctx, "Failed to schedule transfer retry",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Error(err),
		)
	}
}

// writeSummary stores the immutable audit record and archives a copy.
func (s *MatchService) writeSummary(ctx context.Context, m *matchdb.Match) {
	summary := buildSummary(m)
	if err := s.repo.InsertPaymentSummary(ctx, nil, summary); err != nil {
		s.logger.ErrorContext(ctx, "Failed to write payment summary",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
		return
	}
	if s.archive == nil {
		return
	}
	if err := s.archive.ArchiveSummary(ctx, summary); err != nil {
		s.logger.WarnContext(ctx, "Failed to archive payment summary",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
	}
}

// buildSummary lists every payment, marking players that left through a refund.
func buildSummary(m *matchdb.Match) *matchdb.PaymentSummary {
	entries := make([]matchdb.SummaryEntry, 0, len(m.Payments))
	for _, pay := range m.Payments {
		entry := matchdb.SummaryEntry{
			Address:      pay.Player,
			PaidLamports: pay.AmountLamports,
		}
		if p, ok := m.Players[pay.Player]; ok {
			entry.Status = p.Status
			entry.ResponseTimeMs = p.ResponseTimeMs
			entry.EliminatedIn = p.EliminatedRound
		} else {
			entry.Refunded = true
		}
		entries = append(entries, entry)
	}

	summary := &matchdb.PaymentSummary{
		MatchID:        m.ID,
		Status:         m.Status,
		Winner:         m.Winner,
		Rounds:         m.Round,
		Entries:        entries,
		TotalCollected: m.TotalCollected,
	}
	if p := m.Prize; p != nil {
		summary.PayoutAmountRaw = int64(p.PayoutAmountRaw)
		summary.PayoutFormatted = p.PayoutAmountFormatted
		summary.TokenSymbol = p.TokenSymbol
		summary.SwapSignature = p.SwapSignature
		summary.SwapSuccess = p.SwapSuccess
	}
	return summary
}

func (s *MatchService) loadMatch(ctx context.Context, matchID string) (*matchdb.Match, error) {
	m, err := s.repo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, matchdb.ErrNotFound) {
			return nil, apperror.NotFound("match %s not found", matchID)
		}
		return nil, fmt.Errorf("failed to load match: %w", err)
	}
	return m, nil
}

func (s *MatchService) releaseLease(ctx context.Context, key, token string) {
	if err := s.leases.Release(context.WithoutCancel(ctx), key, token); err != nil {
		s.logger.WarnContext(ctx, "Failed to release lease",
			attr.ExtractCorrelationID(ctx),
			attr.String("key", key),
			attr.Error(err),
		)
	}
}
