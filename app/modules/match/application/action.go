package matchservice

import (
	"context"
	"errors"
	"strings"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
)

// errGraceNoop marks an action that raced the end of the match.
var errGraceNoop = errors.New("action arrived after completion")

// PlayerAction records the player's response for the current round. The
// server-measured time is authoritative; a client-reported time is only
// accepted when it is positive, not larger than the server's and within the
// configured latency credit of it.
func (s *MatchService) PlayerAction(ctx context.Context, req ActionRequest) (*ActionResponse, error) {
	req.MatchID = strings.TrimSpace(req.MatchID)
	req.PlayerAddress = strings.TrimSpace(req.PlayerAddress)

	actionTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*ActionResponse, error], error) {
		return s.playerActionLogic(ctx, db, req)
	}

	result, err := withTelemetry(s, ctx, "PlayerAction", req.MatchID, func(ctx context.Context) (results.OperationResult[*ActionResponse, error], error) {
		if req.MatchID == "" || req.PlayerAddress == "" {
			return results.FailureResult[*ActionResponse, error](apperror.InvalidArgument("match id and player address are required")), nil
		}
		return runInTx(s, ctx, actionTx)
	})
	return unwrapResult(result, err)
}

func (s *MatchService) playerActionLogic(ctx context.Context, db bun.IDB, req ActionRequest) (results.OperationResult[*ActionResponse, error], error) {
	now := s.now()
	var resp ActionResponse
	var serverRoundStart time.Time

	_, _, err := s.mutate(ctx, db, req.MatchID, func(m *matchdb.Match) (bool, error) {
		resp = ActionResponse{}

		if m.Status == matchdomain.StatusCompleted && m.CompletedAt != nil && now.Sub(*m.CompletedAt) <= s.cfg.GraceWindow {
			resp = ActionResponse{Success: true, Round: m.Round, Ignored: true}
			return false, errGraceNoop
		}
		if m.Status != matchdomain.StatusInProgress {
			return false, apperror.FailedPrecondition("match %s is %s, not in progress", m.ID, m.Status)
		}
		p, ok := m.Players[req.PlayerAddress]
		if !ok {
			return false, apperror.NotFound("player %s is not in match %s", req.PlayerAddress, m.ID)
		}
		if !p.Alive() {
			return false, apperror.FailedPrecondition("player %s was eliminated in round %d", req.PlayerAddress, p.EliminatedRound)
		}
		if p.ActedIn(m.Round) {
			return false, apperror.AlreadyExists("player %s already acted in round %d", req.PlayerAddress, m.Round)
		}
		if m.RoundStartedAt == nil {
			return false, apperror.FailedPrecondition("round %d of match %s has not started", m.Round, m.ID)
		}

		serverRoundStart = *m.RoundStartedAt
		server := now.Sub(serverRoundStart).Milliseconds()
		if server < 0 {
			server = 0
		}
		recorded := s.acceptedResponseTime(server, req.ClientResponseTimeMs)

		at := now
		p.LastActionRound = m.Round
		p.LastActionAt = &at
		p.ResponseTimeMs = &recorded
		p.ServerResponseTimeMs = &server
		p.ClientResponseTimeMs = nil
		if req.ClientResponseTimeMs != nil {
			client := *req.ClientResponseTimeMs
			p.ClientResponseTimeMs = &client
		}

		resp = ActionResponse{Success: true, Round: m.Round, ResponseTimeMs: recorded}
		return true, nil
	})
	if errors.Is(err, errGraceNoop) {
		s.logger.InfoContext(ctx, "Ignoring action received after match completion",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(req.MatchID),
			attr.Wallet(req.PlayerAddress),
		)
		return results.SuccessResult[*ActionResponse, error](&resp), nil
	}
	if err != nil {
		return failureOrError[*ActionResponse](err)
	}

	if req.RoundStartTime != nil {
		skew := req.RoundStartTime.Sub(serverRoundStart)
		if skew < 0 {
			skew = -skew
		}
		if skew > roundStartSkewWarning {
			s.logger.WarnContext(ctx, "Client round start differs from server",
				attr.ExtractCorrelationID(ctx),
				attr.MatchID(req.MatchID),
				attr.Wallet(req.PlayerAddress),
				attr.Duration("skew", skew),
			)
		}
	}

	return results.SuccessResult[*ActionResponse, error](&resp), nil
}

// acceptedResponseTime picks the value recorded as the player's response time.
func (s *MatchService) acceptedResponseTime(server int64, client *int64) int64 {
	if client == nil {
		return server
	}
	c := *client
	if c <= 0 || c > server {
		return server
	}
	if server-c > s.cfg.MaxClientLatencyCredit.Milliseconds() {
		return server
	}
	return c
}
