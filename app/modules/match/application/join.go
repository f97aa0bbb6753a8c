package matchservice

import (
	"context"
	"errors"
	"fmt"
	"strings"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/ledger"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
)

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// errSeatTaken signals that the located match filled up or closed before the write.
var errSeatTaken = errors.New("match no longer has a free seat")

func validAddress(address string) bool {
	if len(address) < 32 || len(address) > 44 {
		return false
	}
	for _, r := range address {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}

// JoinLobby runs the two-phase join. Without a signature it only validates
// and points the player at a match; with one it verifies the payment and seats
// the player.
func (s *MatchService) JoinLobby(ctx context.Context, req JoinRequest) (*JoinResponse, error) {
	req.PlayerAddress = strings.TrimSpace(req.PlayerAddress)
	req.PaymentSignature = strings.TrimSpace(req.PaymentSignature)

	result, err := withTelemetry(s, ctx, "JoinLobby", req.PlayerAddress, func(ctx context.Context) (results.OperationResult[*JoinResponse, error], error) {
		if req.PlayerAddress == "" {
			return results.FailureResult[*JoinResponse, error](apperror.InvalidArgument("player address is required")), nil
		}
		if !validAddress(req.PlayerAddress) {
			return results.FailureResult[*JoinResponse, error](apperror.InvalidArgument("player address %q is not a valid public key", req.PlayerAddress)), nil
		}
		if req.PaymentSignature == "" {
			return s.paymentInstruction(ctx, req)
		}
		return s.seatPlayer(ctx, req)
	})
	return unwrapResult(result, err)
}

// paymentInstruction is the first join phase.
func (s *MatchService) paymentInstruction(ctx context.Context, req JoinRequest) (results.OperationResult[*JoinResponse, error], error) {
	if err := s.ensureNotPlaying(ctx, nil, req.PlayerAddress); err != nil {
		return failureOrError[*JoinResponse](err)
	}

	target, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdb.Match, error], error) {
		m, err := s.findOrCreateOpen(ctx, db, "")
		if err != nil {
			return results.OperationResult[*matchdb.Match, error]{}, err
		}
		return results.SuccessResult[*matchdb.Match, error](m), nil
	})
	if err != nil {
		return results.OperationResult[*JoinResponse, error]{}, err
	}
	m := *target.Success

	balance, err := s.ledger.Balance(ctx, req.PlayerAddress)
	if err != nil {
		return results.OperationResult[*JoinResponse, error]{}, fmt.Errorf("failed to read wallet balance: %w", err)
	}
	required := m.EntryFeeLamports + s.cfg.FixedTransferFeeLamports
	if balance < required {
		return results.FailureResult[*JoinResponse, error](apperror.FailedPrecondition(
			"insufficient balance: need %s SOL, have %s SOL",
			matchdomain.FormatSOL(required), matchdomain.FormatSOL(balance),
		)), nil
	}

	return results.SuccessResult[*JoinResponse, error](&JoinResponse{
		Success:         true,
		RequiresPayment: true,
		EntryFee:        m.EntryFeeLamports,
		EntryFeeSOL:     matchdomain.FormatSOL(m.EntryFeeLamports),
		TreasuryAddress: s.cfg.TreasuryAddress,
		TargetMatchID:   m.ID,
		PlayerCount:     m.PlayerCount,
		MaxPlayers:      m.MaxPlayers,
		Status:          m.Status,
	}), nil
}

// seatPlayer is the second join phase.
func (s *MatchService) seatPlayer(ctx context.Context, req JoinRequest) (results.OperationResult[*JoinResponse, error], error) {
	used, err := s.repo.ReceiptExists(ctx, nil, req.PaymentSignature)
	if err != nil {
		return results.OperationResult[*JoinResponse, error]{}, fmt.Errorf("failed to check payment receipt: %w", err)
	}
	if used {
		return results.FailureResult[*JoinResponse, error](apperror.AlreadyExists("payment %s was already used", req.PaymentSignature)), nil
	}

	received, err := s.verifyPayment(ctx, req.PlayerAddress, req.PaymentSignature)
	if err != nil {
		return failureOrError[*JoinResponse](err)
	}

	var started bool
	seated, err := runInTx(s, ctx, func(ctx context.Context, db bun.IDB) (results.OperationResult[*matchdb.Match, error], error) {
		started = false
		if err := s.ensureNotPlaying(ctx, db, req.PlayerAddress); err != nil {
			return failureOrError[*matchdb.Match](err)
		}

		m, err := s.insertPlayer(ctx, db, req, received)
		if err != nil {
			return failureOrError[*matchdb.Match](err)
		}

		err = s.repo.InsertReceipt(ctx, db, &matchdb.PaymentReceipt{
			Signature:      req.PaymentSignature,
			MatchID:        m.ID,
			Player:         req.PlayerAddress,
			AmountLamports: m.EntryFeeLamports,
		})
		if err != nil {
			if errors.Is(err, matchdb.ErrReceiptExists) {
				// Returning an error rolls the seat back with the transaction.
				return results.OperationResult[*matchdb.Match, error]{}, apperror.AlreadyExists("payment %s was already used", req.PaymentSignature)
			}
			return results.OperationResult[*matchdb.Match, error]{}, err
		}

		if m.Status == matchdomain.StatusStarting {
			m, started, err = s.startMatch(ctx, db, m.ID)
			if err != nil {
				return results.OperationResult[*matchdb.Match, error]{}, err
			}
		}
		return results.SuccessResult[*matchdb.Match, error](m), nil
	})
	if err != nil {
		return failureOrError[*JoinResponse](err)
	}
	if seated.IsFailure() {
		return results.FailureResult[*JoinResponse, error](*seated.Failure), nil
	}
	m := *seated.Success

	s.logger.InfoContext(ctx, "Player seated",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
		attr.Wallet(req.PlayerAddress),
		attr.Int("player_count", m.PlayerCount),
		attr.String("status", string(m.Status)),
	)

	s.publish(ctx, TopicPlayerJoined, PlayerJoinedPayload{
		MatchID:       m.ID,
		PlayerAddress: req.PlayerAddress,
		PlayerCount:   m.PlayerCount,
		MaxPlayers:    m.MaxPlayers,
		Status:        m.Status,
	})
	if started {
		s.publish(ctx, TopicMatchStarted, MatchStartedPayload{
			MatchID:        m.ID,
			PlayerCount:    m.PlayerCount,
			RoundStartedAt: *m.RoundStartedAt,
		})
	}
	s.scheduleNextTick(ctx, m)

	return results.SuccessResult[*JoinResponse, error](&JoinResponse{
		Success:     true,
		EntryFee:    m.EntryFeeLamports,
		EntryFeeSOL: matchdomain.FormatSOL(m.EntryFeeLamports),
		MatchID:     m.ID,
		PlayerCount: m.PlayerCount,
		MaxPlayers:  m.MaxPlayers,
		Status:      m.Status,
	}), nil
}

// insertPlayer seats the player in the hinted match or the oldest open one,
// re-locating when the chosen match fills up before the write lands. The
// payment must cover the fee frozen on the match that is actually joined.
func (s *MatchService) insertPlayer(ctx context.Context, db bun.IDB, req JoinRequest, received int64) (*matchdb.Match, error) {
	hint := req.TargetMatchID
	for attempt := 0; attempt < maxSeatAttempts; attempt++ {
		target, err := s.findOrCreateOpen(ctx, db, hint)
		if err != nil {
			return nil, err
		}

		now := s.now()
		m, _, err := s.mutate(ctx, db, target.ID, func(m *matchdb.Match) (bool, error) {
			if !m.Status.IsOpen() || m.PlayerCount >= m.MaxPlayers {
				return false, errSeatTaken
			}
			if _, ok := m.Players[req.PlayerAddress]; ok {
				return false, apperror.AlreadyExists("player %s is already in match %s", req.PlayerAddress, m.ID)
			}
			if err := s.checkPaymentCovers(received, m.EntryFeeLamports); err != nil {
				return false, err
			}
			if m.Players == nil {
				m.Players = map[string]*matchdomain.Player{}
			}
			m.Players[req.PlayerAddress] = &matchdomain.Player{
				Address:          req.PlayerAddress,
				Status:           matchdomain.PlayerAlive,
				JoinedAt:         now,
				SolPaid:          m.EntryFeeLamports,
				PaymentSignature: req.PaymentSignature,
			}
			m.Payments = append(m.Payments, matchdomain.Payment{
				Player:         req.PlayerAddress,
				Signature:      req.PaymentSignature,
				AmountLamports: m.EntryFeeLamports,
				PaidAt:         now,
			})
			m.TotalCollected += m.EntryFeeLamports
			m.RecountPlayers()

			m.Status = matchdomain.LobbyStatus(m.PlayerCount, m.MaxPlayers)
			if m.Status == matchdomain.StatusStarting && hasPendingRefund(m) {
				// A seat is on its way out; the countdown starts the match
				// once the refund settles.
				m.Status = matchdomain.StatusLobby
			}
			switch m.Status {
			case matchdomain.StatusLobby:
				m.CountdownStartedAt = &now
			default:
				m.CountdownStartedAt = nil
			}
			return true, nil
		})
		if errors.Is(err, errSeatTaken) {
			hint = ""
			continue
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	}
	return nil, fmt.Errorf("failed to seat player after %d attempts: %w", maxSeatAttempts, errSeatTaken)
}

// startMatch moves a full match from starting into round one.
func (s *MatchService) startMatch(ctx context.Context, db bun.IDB, matchID string) (*matchdb.Match, bool, error) {
	now := s.now()
	return s.mutate(ctx, db, matchID, func(m *matchdb.Match) (bool, error) {
		if m.Status != matchdomain.StatusStarting {
			return false, nil
		}
		m.Status = matchdomain.StatusInProgress
		m.Round = 1
		m.RoundStartedAt = &now
		m.CountdownStartedAt = nil
		return true, nil
	})
}

// findOrCreateOpen returns the hinted match when it is still open with room,
// else the oldest open match, else a freshly created one.
func (s *MatchService) findOrCreateOpen(ctx context.Context, db bun.IDB, hint string) (*matchdb.Match, error) {
	if hint != "" {
		m, err := s.repo.GetByID(ctx, db, hint)
		switch {
		case err == nil && m.Status.IsOpen() && m.PlayerCount < m.MaxPlayers:
			return m, nil
		case err != nil && !errors.Is(err, matchdb.ErrNotFound):
			return nil, fmt.Errorf("failed to load target match: %w", err)
		}
	}

	m, err := s.repo.FindOldestOpen(ctx, db)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, matchdb.ErrNotFound) {
		return nil, fmt.Errorf("failed to find open match: %w", err)
	}

	n, err := s.repo.NextMatchNumber(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate match number: %w", err)
	}
	m = s.newMatch(n)
	if err := s.repo.Create(ctx, db, m); err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}
	s.logger.InfoContext(ctx, "Created match",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(m.ID),
	)
	return m, nil
}

func (s *MatchService) newMatch(n int64) *matchdb.Match {
	now := s.now()
	return &matchdb.Match{
		ID:                   matchdomain.MatchKey(n),
		Number:               n,
		Status:               matchdomain.StatusWaiting,
		Players:              map[string]*matchdomain.Player{},
		CountdownDurationSec: int(s.cfg.CountdownDuration.Seconds()),
		RoundDurationSec:     int(s.cfg.RoundDuration.Seconds()),
		MaxPlayers:           s.cfg.MaxPlayers,
		EntryFeeLamports:     s.cfg.EntryFeeLamports,
		TokenSymbol:          s.cfg.TokenSymbol,
		PayoutAssetMint:      s.cfg.PayoutAssetMint,
		PayoutAssetDecimals:  s.cfg.PayoutAssetDecimals,
		Payments:             []matchdomain.Payment{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// ensureNotPlaying rejects wallets that already sit in a live match.
func (s *MatchService) ensureNotPlaying(ctx context.Context, db bun.IDB, address string) error {
	active, err := s.repo.FindActiveForPlayer(ctx, db, address)
	if err == nil {
		return apperror.AlreadyExists("player %s is already in match %s", address, active.ID)
	}
	if errors.Is(err, matchdb.ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to check active matches: %w", err)
}

// verifyPayment checks that signature is a successful transfer signed by
// player and returns the lamports it credited to the treasury.
func (s *MatchService) verifyPayment(ctx context.Context, player, signature string) (int64, error) {
	tx, err := s.ledger.Transaction(ctx, signature)
	if err != nil {
		if errors.Is(err, ledger.ErrTransactionNotFound) {
			return 0, apperror.FailedPrecondition("payment transaction %s not found", signature)
		}
		return 0, fmt.Errorf("failed to load payment transaction: %w", err)
	}
	if !tx.Succeeded {
		return 0, apperror.FailedPrecondition("payment transaction %s failed on-chain", signature)
	}
	if !tx.SignedBy(player) {
		return 0, apperror.FailedPrecondition("payment transaction %s was not signed by %s", signature, player)
	}
	return tx.DeltaFor(s.cfg.TreasuryAddress), nil
}

// checkPaymentCovers accepts received when it reaches the tolerated share of fee.
func (s *MatchService) checkPaymentCovers(received, fee int64) error {
	if received < s.cfg.minimumPayment(fee) {
		return apperror.FailedPrecondition(
			"payment of %s SOL is below the entry fee of %s SOL",
			matchdomain.FormatSOL(received), matchdomain.FormatSOL(fee),
		)
	}
	return nil
}
