package matchservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	matchdomain "github.com/Black-And-White-Club/quickdraw/app/modules/match/domain"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/lease"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/eventbus"
	"github.com/Black-And-White-Club/quickdraw/internal/observability"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/Black-And-White-Club/quickdraw/internal/results"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "MatchService"

// Dependencies are the collaborators of MatchService. Jobs, Events and
// Archive are optional.
type Dependencies struct {
	Ledger   Ledger
	Exchange Exchange
	Leases   lease.Store
	Events   eventbus.EventBus
	Jobs     JobScheduler
	Archive  Archiver
}

// MatchService implements the Service interface.
type MatchService struct {
	repo     matchdb.Repository
	logger   *slog.Logger
	metrics  observability.MatchMetrics
	tracer   trace.Tracer
	db       *bun.DB
	cfg      Config
	ledger   Ledger
	exchange Exchange
	leases   lease.Store
	events   eventbus.EventBus
	jobs     JobScheduler
	archive  Archiver
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option customises a MatchService.
type Option func(*MatchService)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *MatchService) { s.now = now }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *MatchService) { s.sleep = sleep }
}

// NewMatchService creates a new MatchService.
func NewMatchService(
	repo matchdb.Repository,
	logger *slog.Logger,
	metrics observability.MatchMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
	deps Dependencies,
	opts ...Option,
) *MatchService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewNoop()
	}
	if deps.Leases == nil {
		deps.Leases = lease.NewMemoryStore()
	}
	s := &MatchService{
		repo:     repo,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		db:       db,
		cfg:      cfg,
		ledger:   deps.Ledger,
		exchange: deps.Exchange,
		leases:   deps.Leases,
		events:   deps.Events,
		jobs:     deps.Jobs,
		archive:  deps.Archive,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetJobScheduler wires the job queue once it exists; the queue's workers
// call back into the service so it is built afterwards.
func (s *MatchService) SetJobScheduler(jobs JobScheduler) {
	s.jobs = jobs
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mutateFunc edits a fresh copy of a match. Returning false skips the write.
type mutateFunc func(m *matchdb.Match) (bool, error)

// mutate re-reads the match, applies fn and writes it guarded by the version
// column, starting over when another writer got there first.
func (s *MatchService) mutate(ctx context.Context, db bun.IDB, matchID string, fn mutateFunc) (*matchdb.Match, bool, error) {
	for attempt := 1; attempt <= maxMutateAttempts; attempt++ {
		current, err := s.repo.GetByID(ctx, db, matchID)
		if err != nil {
			if errors.Is(err, matchdb.ErrNotFound) {
				return nil, false, apperror.NotFound("match %s not found", matchID)
			}
			return nil, false, err
		}

		next := current.Clone()
		changed, err := fn(next)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return current, false, nil
		}

		err = s.repo.Update(ctx, db, next)
		if err == nil {
			return next, true, nil
		}
		if !errors.Is(err, matchdb.ErrVersionConflict) {
			return nil, false, err
		}
		s.logger.DebugContext(ctx, "Match changed concurrently, retrying write",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(matchID),
			attr.Int("attempt", attempt),
		)
	}
	return nil, false, fmt.Errorf("match %s: %w after %d attempts", matchID, matchdb.ErrVersionConflict, maxMutateAttempts)
}

func (s *MatchService) publish(ctx context.Context, topic string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, topic, payload); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish match event",
			attr.ExtractCorrelationID(ctx),
			attr.String("topic", topic),
			attr.Error(err),
		)
	}
}

// scheduleNextTick enqueues a tick for the next timer of m.
func (s *MatchService) scheduleNextTick(ctx context.Context, m *matchdb.Match) {
	if s.jobs == nil || m == nil {
		return
	}
	at, ok := s.nextDeadline(m)
	if !ok {
		return
	}
	if err := s.jobs.ScheduleTick(ctx, m.ID, at); err != nil {
		s.logger.WarnContext(ctx, "Failed to schedule match tick",
			attr.ExtractCorrelationID(ctx),
			attr.MatchID(m.ID),
			attr.Error(err),
		)
	}
}

func (s *MatchService) nextDeadline(m *matchdb.Match) (time.Time, bool) {
	switch m.Status {
	case matchdomain.StatusStarting:
		return s.now(), true
	case matchdomain.StatusLobby:
		if m.CountdownStartedAt == nil {
			return time.Time{}, false
		}
		return m.CountdownStartedAt.Add(time.Duration(m.CountdownDurationSec) * time.Second), true
	case matchdomain.StatusInProgress:
		if m.RoundStartedAt == nil {
			return time.Time{}, false
		}
		return m.RoundStartedAt.Add(time.Duration(m.RoundDurationSec)*time.Second + s.cfg.RoundBuffer), true
	}
	return time.Time{}, false
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *MatchService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {

	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.InfoContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.InfoContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)

	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *MatchService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {

	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})

	return result, err
}

// failureOrError turns classified errors into failure results and leaves
// everything else as an infrastructure error.
func failureOrError[S any](err error) (results.OperationResult[S, error], error) {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		return results.FailureResult[S, error](appErr), nil
	}
	return results.OperationResult[S, error]{}, err
}

// unwrapResult converts an operation result into the public return pair.
func unwrapResult[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		return zero, err
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, nil
	}
	return *result.Success, nil
}
