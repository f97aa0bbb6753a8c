package match

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	matcharchive "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/archive"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/exchange"
	matchhandlers "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/handlers"
	matchjwt "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/jwt"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/lease"
	"github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/ledger"
	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	matchdb "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/repositories"
	matchrouter "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/router"
	matchscheduler "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/scheduler"
	"github.com/Black-And-White-Club/quickdraw/config"
	"github.com/Black-And-White-Club/quickdraw/internal/eventbus"
	"github.com/Black-And-White-Club/quickdraw/internal/observability"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"golang.org/x/time/rate"
)

// queueStopTimeout bounds how long Close waits for running jobs.
const queueStopTimeout = 30 * time.Second

// Module represents the match module.
type Module struct {
	config        *config.Config
	observability observability.Observability
	db            *bun.DB
	service       *matchservice.MatchService
	handlers      matchhandlers.Handlers
	queue         *matchqueue.Service
	scheduler     *matchscheduler.Scheduler
	redis         *redis.Client
	cancelFunc    context.CancelFunc
	logger        *slog.Logger
}

// NewModule creates the match module and registers its HTTP routes on
// httpRouter when one is given.
func NewModule(
	ctx context.Context,
	cfg *config.Config,
	obs observability.Observability,
	db *bun.DB,
	eventBus eventbus.EventBus,
	httpRouter chi.Router,
) (*Module, error) {
	logger := obs.Logger
	tracer := obs.Tracer

	logger.InfoContext(ctx, "Initializing match module")

	repo := matchdb.NewRepository(db)

	leases, redisClient, err := newLeaseStore(ctx, cfg, repo)
	if err != nil {
		return nil, err
	}

	deps := matchservice.Dependencies{
		Ledger: ledger.NewClient(ledger.Config{
			BaseURL: cfg.Ledger.URL,
			APIKey:  cfg.Ledger.APIKey,
			Timeout: cfg.Ledger.Timeout,
		}, logger),
		Exchange: exchange.NewClient(exchange.Config{
			BaseURL: cfg.Exchange.URL,
			APIKey:  cfg.Exchange.APIKey,
			Timeout: cfg.Exchange.Timeout,
		}, logger),
		Leases: leases,
		Events: eventBus,
	}

	if cfg.Archive.Bucket != "" {
		s3Client, err := matcharchive.NewS3Client(ctx, matcharchive.Config{
			AccountID:       cfg.Archive.AccountID,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			AccessKeySecret: cfg.Archive.AccessKeySecret,
			Bucket:          cfg.Archive.Bucket,
			Endpoint:        cfg.Archive.Endpoint,
			Prefix:          cfg.Archive.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create archive client: %w", err)
		}
		deps.Archive = matcharchive.New(s3Client, cfg.Archive.Bucket, cfg.Archive.Prefix, logger)
	}

	service := matchservice.NewMatchService(repo, logger, obs.Metrics, tracer, db, ServiceConfig(cfg), deps)

	var queue *matchqueue.Service
	var jobs matchhandlers.JobInspector
	if cfg.Queue.Enabled {
		queue, err = matchqueue.NewService(ctx, db, logger, cfg.Postgres.DSN, obs.Metrics, service)
		if err != nil {
			return nil, fmt.Errorf("failed to create match queue: %w", err)
		}
		service.SetJobScheduler(queue)
		jobs = queue
	}

	scheduler, err := matchscheduler.New(matchscheduler.Config{
		TickInterval:     cfg.Scheduler.TickInterval,
		CleanupInterval:  cfg.Scheduler.CleanupInterval,
		TransferInterval: cfg.Scheduler.TransferInterval,
		StaleLobbyAfter:  cfg.Game.StaleLobbyAfter,
	}, service, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create match scheduler: %w", err)
	}

	handlers := matchhandlers.NewMatchHandlers(service, jobs, logger, tracer)

	if httpRouter != nil {
		routerCfg := matchrouter.Config{
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			RateLimit:      rate.Limit(cfg.HTTP.RateLimit),
			RateBurst:      cfg.HTTP.RateBurst,
		}
		if cfg.Auth.JWTSecret != "" {
			routerCfg.Tokens = matchjwt.NewProvider(cfg.Auth.JWTSecret)
		} else {
			logger.WarnContext(ctx, "JWT secret not configured, admin routes disabled")
		}
		matchrouter.Register(httpRouter, handlers, routerCfg)
	}

	return &Module{
		config:        cfg,
		observability: obs,
		db:            db,
		service:       service,
		handlers:      handlers,
		queue:         queue,
		scheduler:     scheduler,
		redis:         redisClient,
		logger:        logger,
	}, nil
}

// ServiceConfig maps the game, treasury and settlement sections onto the
// service configuration.
func ServiceConfig(cfg *config.Config) matchservice.Config {
	return matchservice.Config{
		MaxPlayers:               cfg.Game.MaxPlayers,
		EntryFeeLamports:         cfg.Game.EntryFeeLamports,
		CountdownDuration:        cfg.Game.CountdownDuration,
		RoundDuration:            cfg.Game.RoundDuration,
		RoundBuffer:              cfg.Game.RoundBuffer,
		LockTTL:                  cfg.Game.LockTTL,
		GraceWindow:              cfg.Game.GraceWindow,
		PaymentToleranceBps:      cfg.Game.PaymentToleranceBps,
		FixedTransferFeeLamports: cfg.Game.FixedTransferFeeLamports,
		MaxClientLatencyCredit:   cfg.Game.MaxClientLatencyCredit,
		TreasuryAddress:          cfg.Treasury.Address,
		TokenSymbol:              cfg.Game.TokenSymbol,
		PayoutAssetMint:          cfg.Game.PayoutAssetMint,
		PayoutAssetDecimals:      cfg.Game.PayoutAssetDecimals,
		SlippageBps:              cfg.Exchange.SlippageBps,
		HouseFeeBps:              cfg.Settlement.HouseFeeBps,
		TransferAttempts:         cfg.Settlement.TransferAttempts,
		BackoffStep:              cfg.Settlement.BackoffStep,
	}
}

func newLeaseStore(ctx context.Context, cfg *config.Config, repo matchdb.Repository) (lease.Store, *redis.Client, error) {
	switch cfg.Lease.Backend {
	case lease.BackendMemory:
		return lease.NewMemoryStore(), nil, nil
	case lease.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return lease.NewRedisStore(client), client, nil
	case lease.BackendPostgres, "":
		return lease.NewPostgresStore(repo), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown lease backend %q", cfg.Lease.Backend)
	}
}

// Run starts the queue workers and maintenance sweeps and blocks until ctx
// is cancelled.
func (m *Module) Run(ctx context.Context, wg *sync.WaitGroup) {
	m.logger.InfoContext(ctx, "Starting match module")

	ctx, cancel := context.WithCancel(ctx)
	m.cancelFunc = cancel
	defer cancel()

	if wg != nil {
		defer wg.Done()
	}

	if m.queue != nil {
		if err := m.queue.Start(ctx); err != nil {
			m.logger.ErrorContext(ctx, "Failed to start match queue", attr.Error(err))
			return
		}
	}
	m.scheduler.Start()

	m.logger.InfoContext(ctx, "Match module started",
		attr.Bool("queue_enabled", m.queue != nil),
		attr.String("lease_backend", m.config.Lease.Backend),
	)

	<-ctx.Done()
	m.logger.InfoContext(ctx, "Match module goroutine stopped")
}

// Close stops the match module.
func (m *Module) Close() error {
	m.logger.Info("Stopping match module")

	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	var firstErr error
	if err := m.scheduler.Stop(); err != nil {
		m.logger.Error("Error stopping match scheduler", attr.Error(err))
		firstErr = fmt.Errorf("error stopping scheduler: %w", err)
	}

	if m.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), queueStopTimeout)
		defer cancel()
		if err := m.queue.Stop(ctx); err != nil {
			m.logger.Error("Error stopping match queue", attr.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("error stopping queue: %w", err)
			}
		}
	}

	if m.redis != nil {
		if err := m.redis.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("error closing redis: %w", err)
		}
	}

	m.logger.Info("Match module stopped")
	return firstErr
}

// HealthCheck reports whether the database and, when enabled, the queue are reachable.
func (m *Module) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if m.queue != nil {
		if err := m.queue.HealthCheck(ctx); err != nil {
			return err
		}
	}
	return nil
}

// GetService returns the match service for use by other modules.
func (m *Module) GetService() matchservice.Service {
	return m.service
}
