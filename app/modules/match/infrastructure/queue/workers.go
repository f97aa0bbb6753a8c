package matchqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/riverqueue/river"
)

// Ticker advances a single match.
type Ticker interface {
	ProcessMatch(ctx context.Context, matchID string) (bool, error)
}

// TransferRetrier re-attempts a prize transfer.
type TransferRetrier interface {
	RetryTransfer(ctx context.Context, matchID string) (*matchservice.RetryTransferResponse, error)
}

// TickWorker runs match_tick jobs.
type TickWorker struct {
	river.WorkerDefaults[TickJob]
	logger *slog.Logger
	ticker Ticker
}

func NewTickWorker(logger *slog.Logger, ticker Ticker) *TickWorker {
	return &TickWorker{logger: logger, ticker: ticker}
}

// Timeout bounds a tick, which may include settlement.
func (w *TickWorker) Timeout(*river.Job[TickJob]) time.Duration { return 2 * time.Minute }

func (w *TickWorker) Work(ctx context.Context, job *river.Job[TickJob]) error {
	logger := w.logger.With(
		attr.MatchID(job.Args.MatchID),
		attr.Int64("job_id", job.ID),
		attr.Time("due_at", job.Args.DueAt),
	)

	processed, err := w.ticker.ProcessMatch(ctx, job.Args.MatchID)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			logger.WarnContext(ctx, "Tick job for unknown match, cancelling", attr.Error(err))
			return river.JobCancel(err)
		}
		logger.ErrorContext(ctx, "Tick job failed", attr.Error(err))
		return fmt.Errorf("failed to process match %s: %w", job.Args.MatchID, err)
	}

	logger.InfoContext(ctx, "Tick job completed", attr.Bool("processed", processed))
	return nil
}

// TransferRetryWorker runs transfer_retry jobs.
type TransferRetryWorker struct {
	river.WorkerDefaults[TransferRetryJob]
	logger  *slog.Logger
	retrier TransferRetrier
}

func NewTransferRetryWorker(logger *slog.Logger, retrier TransferRetrier) *TransferRetryWorker {
	return &TransferRetryWorker{logger: logger, retrier: retrier}
}

func (w *TransferRetryWorker) Work(ctx context.Context, job *river.Job[TransferRetryJob]) error {
	logger := w.logger.With(
		attr.MatchID(job.Args.MatchID),
		attr.Int64("job_id", job.ID),
		attr.Int("attempt", job.Attempt),
	)

	out, err := w.retrier.RetryTransfer(ctx, job.Args.MatchID)
	if err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindNotFound, apperror.KindFailedPrecondition, apperror.KindInvalidArgument:
			logger.WarnContext(ctx, "Transfer retry not applicable, cancelling", attr.Error(err))
			return river.JobCancel(err)
		}
		logger.ErrorContext(ctx, "Transfer retry failed", attr.Error(err))
		return fmt.Errorf("failed to retry transfer for match %s: %w", job.Args.MatchID, err)
	}

	logger.InfoContext(ctx, "Transfer retry completed",
		attr.Bool("success", out.Success),
		attr.String("signature", out.TransferSignature),
	)
	return nil
}
