package matchhandlers

import (
	"context"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
)

// ------------------------
// Fake Service
// ------------------------

type FakeService struct {
	JoinLobbyFunc            func(ctx context.Context, req matchservice.JoinRequest) (*matchservice.JoinResponse, error)
	PlayerActionFunc         func(ctx context.Context, req matchservice.ActionRequest) (*matchservice.ActionResponse, error)
	RequestRefundFunc        func(ctx context.Context, matchID, playerAddress string) (*matchservice.RefundResponse, error)
	ProcessTickFunc          func(ctx context.Context) (*matchservice.TickResult, error)
	SettleMatchFunc          func(ctx context.Context, matchID string) (*matchdomain.Prize, error)
	RetryTransferFunc        func(ctx context.Context, matchID string) (*matchservice.RetryTransferResponse, error)
	GetMatchFunc             func(ctx context.Context, matchID string) (*matchservice.MatchView, error)
	CleanupStaleLobbiesFunc  func(ctx context.Context, olderThan time.Duration) (int, error)
	RetryStuckTransfersFunc  func(ctx context.Context) (int, error)
	ListReconciliationFunc   func(ctx context.Context, since time.Time) ([]*matchdb.ReconciliationRow, error)
}

var _ matchservice.Service = (*FakeService)(nil)

func (f *FakeService) JoinLobby(ctx context.Context, req matchservice.JoinRequest) (*matchservice.JoinResponse, error) {
	if f.JoinLobbyFunc != nil {
		return f.JoinLobbyFunc(ctx, req)
	}
	return &matchservice.JoinResponse{Success: true}, nil
}

func (f *FakeService) PlayerAction(ctx context.Context, req matchservice.ActionRequest) (*matchservice.ActionResponse, error) {
	if f.PlayerActionFunc != nil {
		return f.PlayerActionFunc(ctx, req)
	}
	return &matchservice.ActionResponse{Success: true}, nil
}

func (f *FakeService) RequestRefund(ctx context.Context, matchID, playerAddress string) (*matchservice.RefundResponse, error) {
	if f.RequestRefundFunc != nil {
		return f.RequestRefundFunc(ctx, matchID, playerAddress)
	}
	return &matchservice.RefundResponse{Success: true}, nil
}

func (f *FakeService) ProcessTick(ctx context.Context) (*matchservice.TickResult, error) {
	if f.ProcessTickFunc != nil {
		return f.ProcessTickFunc(ctx)
	}
	return &matchservice.TickResult{Success: true}, nil
}

func (f *FakeService) SettleMatch(ctx context.Context, matchID string) (*matchdomain.Prize, error) {
	if f.SettleMatchFunc != nil {
		return f.SettleMatchFunc(ctx, matchID)
	}
	return &matchdomain.Prize{}, nil
}

func (f *FakeService) RetryTransfer(ctx context.Context, matchID string) (*matchservice.RetryTransferResponse, error) {
	if f.RetryTransferFunc != nil {
		return f.RetryTransferFunc(ctx, matchID)
	}
	return &matchservice.RetryTransferResponse{Success: true}, nil
}

func (f *FakeService) GetMatch(ctx context.Context, matchID string) (*matchservice.MatchView, error) {
	if f.GetMatchFunc != nil {
		return f.GetMatchFunc(ctx, matchID)
	}
	return &matchservice.MatchView{ID: matchID}, nil
}

func (f *FakeService) CleanupStaleLobbies(ctx context.Context, olderThan time.Duration) (int, error) {
	if f.CleanupStaleLobbiesFunc != nil {
		return f.CleanupStaleLobbiesFunc(ctx, olderThan)
	}
	return 0, nil
}

func (f *FakeService) RetryStuckTransfers(ctx context.Context) (int, error) {
	if f.RetryStuckTransfersFunc != nil {
		return f.RetryStuckTransfersFunc(ctx)
	}
	return 0, nil
}

func (f *FakeService) ListReconciliation(ctx context.Context, since time.Time) ([]*matchdb.ReconciliationRow, error) {
	if f.ListReconciliationFunc != nil {
		return f.ListReconciliationFunc(ctx, since)
	}
	return nil, nil
}

// ------------------------
// Fake Job Inspector
// ------------------------

type FakeJobs struct {
	GetScheduledJobsFunc func(ctx context.Context, matchID string) ([]matchqueue.JobInfo, error)
	CancelMatchJobsFunc  func(ctx context.Context, matchID string) error
}

var _ JobInspector = (*FakeJobs)(nil)

func (f *FakeJobs) GetScheduledJobs(ctx context.Context, matchID string) ([]matchqueue.JobInfo, error) {
	if f.GetScheduledJobsFunc != nil {
		return f.GetScheduledJobsFunc(ctx, matchID)
	}
	return nil, nil
}

func (f *FakeJobs) CancelMatchJobs(ctx context.Context, matchID string) error {
	if f.CancelMatchJobsFunc != nil {
		return f.CancelMatchJobsFunc(ctx, matchID)
	}
	return nil
}
