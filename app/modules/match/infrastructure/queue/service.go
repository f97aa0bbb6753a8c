package matchqueue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	"github.com/Black-And-White-Club/quickdraw/internal/observability"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/uptrace/bun"
)

const (
	queueName     = "match"
	metricService = "river"
)

// Processor is the match service surface the workers call into.
type Processor interface {
	Ticker
	TransferRetrier
}

// QueueService interface defines the contract for job scheduling operations
type QueueService interface {
	matchservice.JobScheduler
	// CancelMatchJobs cancels all pending jobs for a match
	CancelMatchJobs(ctx context.Context, matchID string) error
	// GetScheduledJobs returns information about scheduled jobs for a match (for debugging)
	GetScheduledJobs(ctx context.Context, matchID string) ([]JobInfo, error)
	HealthCheck(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

var _ QueueService = (*Service)(nil)

// Service schedules match timer and transfer retry jobs using River
type Service struct {
	client  *river.Client[pgx.Tx]
	pool    *pgxpool.Pool
	logger  *slog.Logger
	db      *bun.DB
	metrics observability.OperationMetrics
}

// NewService creates the River client and registers the match workers.
func NewService(ctx context.Context, bunDB *bun.DB, logger *slog.Logger, dsn string, metrics observability.OperationMetrics, processor Processor) (*Service, error) {
	ctxLogger := logger.With(
		attr.String("operation", "new_match_queue_service"),
		attr.String("component", "river_queue"),
	)

	start := time.Now()
	metrics.RecordOperationAttempt(ctx, "initialize_service", metricService)

	ctxLogger.Info("Initializing match queue service")

	// River requires pgx, not database/sql
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		ctxLogger.Error("Failed to parse DSN for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricService)
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		ctxLogger.Error("Failed to create pgx pool for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricService)
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		ctxLogger.Error("Failed to ping database for River", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricService)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, NewTickWorker(ctxLogger, processor))
	river.AddWorker(workers, NewTransferRetryWorker(ctxLogger, processor))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
			queueName:          {MaxWorkers: 50},
		},
		Workers: workers,
		Logger:  ctxLogger,
	})
	if err != nil {
		pool.Close()
		ctxLogger.Error("Failed to create River client", attr.Error(err))
		metrics.RecordOperationFailure(ctx, "initialize_service", metricService)
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	metrics.RecordOperationSuccess(ctx, "initialize_service", metricService)
	metrics.RecordOperationDuration(ctx, "initialize_service", metricService, time.Since(start))

	ctxLogger.Info("Match queue service initialized successfully")
	return &Service{
		client:  riverClient,
		pool:    pool,
		logger:  ctxLogger,
		db:      bunDB,
		metrics: metrics,
	}, nil
}

// Start starts the River queue service
func (s *Service) Start(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "start_service", metricService)

	s.logger.Info("Starting match queue service")

	if err := s.client.Start(ctx); err != nil {
		s.logger.Error("Failed to start River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "start_service", metricService)
		return fmt.Errorf("failed to start River client: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "start_service", metricService)
	s.metrics.RecordOperationDuration(ctx, "start_service", metricService, time.Since(start))
	return nil
}

// Stop waits for running jobs and closes the pgx pool.
func (s *Service) Stop(ctx context.Context) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "stop_service", metricService)

	s.logger.Info("Stopping match queue service")

	if err := s.client.Stop(ctx); err != nil {
		s.logger.Error("Failed to stop River client", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "stop_service", metricService)
		return fmt.Errorf("failed to stop River client: %w", err)
	}
	s.pool.Close()

	s.metrics.RecordOperationSuccess(ctx, "stop_service", metricService)
	s.metrics.RecordOperationDuration(ctx, "stop_service", metricService, time.Since(start))
	return nil
}

// ScheduleTick enqueues a tick for matchID at the given timer expiry. A past
// time runs as soon as a worker is free.
func (s *Service) ScheduleTick(ctx context.Context, matchID string, at time.Time) error {
	return s.schedule(ctx, "schedule_match_tick", matchID, at, TickJob{MatchID: matchID, DueAt: at.UTC()})
}

// ScheduleTransferRetry enqueues a transfer retry for matchID.
func (s *Service) ScheduleTransferRetry(ctx context.Context, matchID string, at time.Time) error {
	return s.schedule(ctx, "schedule_transfer_retry", matchID, at, TransferRetryJob{MatchID: matchID, DueAt: at.UTC()})
}

func (s *Service) schedule(ctx context.Context, operation, matchID string, at time.Time, args river.JobArgs) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, operation, metricService)

	ctxLogger := s.logger.With(
		attr.MatchID(matchID),
		attr.Time("scheduled_at", at),
		attr.String("operation", operation),
	)

	// Identical args are the same timer; inserting twice is a no-op.
	res, err := s.client.Insert(ctx, args, &river.InsertOpts{
		Queue:       queueName,
		ScheduledAt: at,
		UniqueOpts: river.UniqueOpts{
			ByArgs: true,
		},
	})
	if err != nil {
		ctxLogger.ErrorContext(ctx, "Failed to schedule job", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, operation, metricService)
		return fmt.Errorf("failed to schedule %s job: %w", args.Kind(), err)
	}

	s.metrics.RecordOperationSuccess(ctx, operation, metricService)
	s.metrics.RecordOperationDuration(ctx, operation, metricService, time.Since(start))

	ctxLogger.DebugContext(ctx, "Job scheduled",
		attr.Int64("job_id", res.Job.ID),
		attr.Bool("duplicate", res.UniqueSkippedAsDuplicate),
		attr.Duration("delay", time.Until(at)),
	)
	return nil
}

type riverJobRow struct {
	ID          int64          `bun:"id"`
	Kind        string         `bun:"kind"`
	State       string         `bun:"state"`
	Args        map[string]any `bun:"args,type:jsonb"`
	ScheduledAt *time.Time     `bun:"scheduled_at"`
	CreatedAt   time.Time      `bun:"created_at"`
	Attempt     int16          `bun:"attempt"`
	MaxAttempts int16          `bun:"max_attempts"`
}

// CancelMatchJobs cancels every pending job for a match, used when a match
// ends outside the tick path.
func (s *Service) CancelMatchJobs(ctx context.Context, matchID string) error {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "cancel_match_jobs", metricService)

	ctxLogger := s.logger.With(
		attr.MatchID(matchID),
		attr.String("operation", "cancel_match_jobs"),
	)

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state").
		Where("kind IN (?, ?)", TickJob{}.Kind(), TransferRetryJob{}.Kind()).
		Where("state IN (?, ?, ?)", "available", "scheduled", "retryable").
		Where("args->>'match_id' = ?", matchID).
		Scan(ctx, &jobs)
	if err != nil {
		ctxLogger.ErrorContext(ctx, "Failed to query jobs for cancellation", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "cancel_match_jobs", metricService)
		return fmt.Errorf("failed to query jobs for cancellation: %w", err)
	}

	cancelled := 0
	for _, job := range jobs {
		if _, err := s.client.JobCancel(ctx, job.ID); err != nil {
			ctxLogger.WarnContext(ctx, "Failed to cancel job",
				attr.Int64("job_id", job.ID),
				attr.String("job_kind", job.Kind),
				attr.Error(err))
			continue
		}
		cancelled++
	}

	if cancelled == len(jobs) {
		s.metrics.RecordOperationSuccess(ctx, "cancel_match_jobs", metricService)
	} else {
		s.metrics.RecordOperationFailure(ctx, "cancel_match_jobs", metricService)
	}
	s.metrics.RecordOperationDuration(ctx, "cancel_match_jobs", metricService, time.Since(start))

	ctxLogger.InfoContext(ctx, "Match jobs cancelled",
		attr.Int("total_found", len(jobs)),
		attr.Int("cancelled_count", cancelled))
	return nil
}

// GetScheduledJobs returns information about scheduled jobs for a match (for debugging)
func (s *Service) GetScheduledJobs(ctx context.Context, matchID string) ([]JobInfo, error) {
	start := time.Now()
	s.metrics.RecordOperationAttempt(ctx, "get_scheduled_jobs", metricService)

	var jobs []riverJobRow
	err := s.db.NewSelect().
		Table("river_job").
		Column("id", "kind", "state", "args", "scheduled_at", "created_at", "attempt", "max_attempts").
		Where("kind IN (?, ?)", TickJob{}.Kind(), TransferRetryJob{}.Kind()).
		Where("args->>'match_id' = ?", matchID).
		Order("scheduled_at ASC NULLS LAST", "created_at ASC").
		Scan(ctx, &jobs)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to query scheduled jobs", attr.MatchID(matchID), attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "get_scheduled_jobs", metricService)
		return nil, fmt.Errorf("failed to query scheduled jobs: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "get_scheduled_jobs", metricService)
	s.metrics.RecordOperationDuration(ctx, "get_scheduled_jobs", metricService, time.Since(start))
	return toJobInfos(matchID, jobs), nil
}

func toJobInfos(matchID string, jobs []riverJobRow) []JobInfo {
	out := make([]JobInfo, len(jobs))
	for i, job := range jobs {
		scheduledAt := ""
		if job.ScheduledAt != nil {
			scheduledAt = job.ScheduledAt.Format(time.RFC3339)
		}
		out[i] = JobInfo{
			ID:          job.ID,
			Kind:        job.Kind,
			MatchID:     matchID,
			State:       job.State,
			ScheduledAt: scheduledAt,
			CreatedAt:   job.CreatedAt.Format(time.RFC3339),
			Attempt:     int(job.Attempt),
			MaxAttempts: int(job.MaxAttempts),
		}
	}
	return out
}

// HealthCheck verifies the queue service is healthy
func (s *Service) HealthCheck(ctx context.Context) error {
	s.metrics.RecordOperationAttempt(ctx, "health_check", metricService)

	if s.client == nil {
		s.metrics.RecordOperationFailure(ctx, "health_check", metricService)
		return fmt.Errorf("river client is nil")
	}

	var count int
	err := s.db.NewSelect().
		Table("river_job").
		ColumnExpr("COUNT(*)").
		Where("state = ?", "available").
		Scan(ctx, &count)
	if err != nil {
		s.logger.ErrorContext(ctx, "Queue service health check failed", attr.Error(err))
		s.metrics.RecordOperationFailure(ctx, "health_check", metricService)
		return fmt.Errorf("queue service health check failed: %w", err)
	}

	s.metrics.RecordOperationSuccess(ctx, "health_check", metricService)
	s.logger.DebugContext(ctx, "Queue service health check passed", attr.Int("available_jobs", count))
	return nil
}
