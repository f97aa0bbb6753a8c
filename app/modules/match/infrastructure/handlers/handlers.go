package matchhandlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 16 << 10

// Handlers exposes the match operations over HTTP.
type Handlers interface {
	HandleJoin(w http.ResponseWriter, r *http.Request)
	HandleAction(w http.ResponseWriter, r *http.Request)
	HandleRefund(w http.ResponseWriter, r *http.Request)
	HandleTick(w http.ResponseWriter, r *http.Request)
	HandleGetMatch(w http.ResponseWriter, r *http.Request)
	HandleSettle(w http.ResponseWriter, r *http.Request)
	HandleRetryTransfer(w http.ResponseWriter, r *http.Request)
	HandleReconciliation(w http.ResponseWriter, r *http.Request)
	HandleListJobs(w http.ResponseWriter, r *http.Request)
	HandleCancelJobs(w http.ResponseWriter, r *http.Request)
}

// JobInspector lists and cancels the queued jobs of a match.
type JobInspector interface {
	GetScheduledJobs(ctx context.Context, matchID string) ([]matchqueue.JobInfo, error)
	CancelMatchJobs(ctx context.Context, matchID string) error
}

// MatchHandlers implements Handlers on top of the match service.
type MatchHandlers struct {
	service matchservice.Service
	jobs    JobInspector
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewMatchHandlers creates a new MatchHandlers instance. jobs may be nil when
// the job queue is disabled.
func NewMatchHandlers(
	service matchservice.Service,
	jobs JobInspector,
	logger *slog.Logger,
	tracer trace.Tracer,
) Handlers {
	return &MatchHandlers{
		service: service,
		jobs:    jobs,
		logger:  logger,
		tracer:  tracer,
		now:     time.Now,
	}
}
