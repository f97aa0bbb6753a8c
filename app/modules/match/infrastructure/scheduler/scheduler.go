package matchscheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/go-co-op/gocron/v2"
)

// Sweeper is the maintenance surface of the match service.
type Sweeper interface {
	ProcessTick(ctx context.Context) (*matchservice.TickResult, error)
	CleanupStaleLobbies(ctx context.Context, olderThan time.Duration) (int, error)
	RetryStuckTransfers(ctx context.Context) (int, error)
}

// Config sets the sweep intervals.
type Config struct {
	TickInterval     time.Duration
	CleanupInterval  time.Duration
	TransferInterval time.Duration
	StaleLobbyAfter  time.Duration
}

func DefaultConfig() Config {
	return Config{
		TickInterval:     5 * time.Second,
		CleanupInterval:  time.Minute,
		TransferInterval: 5 * time.Minute,
		StaleLobbyAfter:  30 * time.Minute,
	}
}

// Scheduler runs the periodic match sweeps. The tick sweep is a backstop for
// timers whose queued job was lost; ticks are idempotent so overlap is harmless.
type Scheduler struct {
	sched   gocron.Scheduler
	sweeper Sweeper
	logger  *slog.Logger
	cfg     Config
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(cfg Config, sweeper Sweeper, logger *slog.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		sched:   sched,
		sweeper: sweeper,
		logger:  logger.With(attr.String("component", "match_scheduler")),
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		run      func(context.Context)
	}{
		{"tick-backstop", cfg.TickInterval, s.sweepTicks},
		{"stale-lobby-cleanup", cfg.CleanupInterval, s.sweepStaleLobbies},
		{"stuck-transfer-retry", cfg.TransferInterval, s.sweepTransfers},
	}
	for _, j := range jobs {
		if j.interval <= 0 {
			continue
		}
		run := j.run
		_, err := sched.NewJob(
			gocron.DurationJob(j.interval),
			gocron.NewTask(func() { run(s.ctx) }),
			gocron.WithName(j.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			cancel()
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to register %s job: %w", j.name, err)
		}
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting match scheduler", attr.Int("jobs", len(s.sched.Jobs())))
	s.sched.Start()
}

func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	return nil
}

func (s *Scheduler) sweepTicks(ctx context.Context) {
	res, err := s.sweeper.ProcessTick(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Tick sweep failed", attr.Error(err))
		return
	}
	if res.ProcessedMatches > 0 {
		s.logger.InfoContext(ctx, "Tick sweep advanced matches", attr.String("message", res.Message))
	}
}

func (s *Scheduler) sweepStaleLobbies(ctx context.Context) {
	n, err := s.sweeper.CleanupStaleLobbies(ctx, s.cfg.StaleLobbyAfter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Stale lobby sweep failed", attr.Error(err))
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Ended stale lobbies", attr.Int("count", n))
	}
}

func (s *Scheduler) sweepTransfers(ctx context.Context) {
	n, err := s.sweeper.RetryStuckTransfers(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Stuck transfer sweep failed", attr.Error(err))
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "Delivered stuck transfers", attr.Int("count", n))
	}
}
