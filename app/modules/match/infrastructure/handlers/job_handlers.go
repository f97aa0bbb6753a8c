package matchhandlers

import (
	"net/http"

	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/go-chi/chi/v5"
)

type jobsResponse struct {
	MatchID string               `json:"matchId"`
	Jobs    []matchqueue.JobInfo `json:"jobs"`
}

func (h *MatchHandlers) requireJobs(w http.ResponseWriter, r *http.Request, op string) bool {
	if h.jobs == nil {
		h.writeError(w, r, op, apperror.FailedPrecondition("job queue is disabled"))
		return false
	}
	return true
}

// HandleListJobs lists the pending and recent jobs of a match.
func (h *MatchHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleListJobs")
	defer span.End()
	r = r.WithContext(ctx)

	if !h.requireJobs(w, r, "ListJobs") {
		return
	}
	matchID := chi.URLParam(r, MatchIDParam)
	jobs, err := h.jobs.GetScheduledJobs(ctx, matchID)
	if err != nil {
		h.writeError(w, r, "ListJobs", apperror.Internal(err, "failed to list jobs"))
		return
	}
	h.writeJSON(w, r, http.StatusOK, jobsResponse{MatchID: matchID, Jobs: jobs})
}

// HandleCancelJobs cancels every pending job of a match.
func (h *MatchHandlers) HandleCancelJobs(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleCancelJobs")
	defer span.End()
	r = r.WithContext(ctx)

	if !h.requireJobs(w, r, "CancelJobs") {
		return
	}
	matchID := chi.URLParam(r, MatchIDParam)
	if err := h.jobs.CancelMatchJobs(ctx, matchID); err != nil {
		h.writeError(w, r, "CancelJobs", apperror.Internal(err, "failed to cancel jobs"))
		return
	}
	h.logger.InfoContext(ctx, "Match jobs cancelled by operator",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
	)
	w.WriteHeader(http.StatusNoContent)
}
