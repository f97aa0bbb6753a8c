package matchhandlers

import (
	"net/http"
	"time"

	matchservice "github.com/Black-And-White-Club/quickdraw/app/modules/match/application"
	matchreport "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/report"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/go-chi/chi/v5"
)

const (
	// MatchIDParam is the chi URL parameter carrying the match ID.
	MatchIDParam = "matchID"
	// defaultReportWindow is the reconciliation range when since is omitted.
	defaultReportWindow = 30 * 24 * time.Hour
	xlsxContentType     = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type refundRequest struct {
	PlayerAddress string `json:"playerAddress"`
}

// HandleJoin returns a payment instruction or seats a paid player.
func (h *MatchHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleJoin")
	defer span.End()
	r = r.WithContext(ctx)

	var req matchservice.JoinRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "JoinLobby", err)
		return
	}

	resp, err := h.service.JoinLobby(ctx, req)
	if err != nil {
		h.writeError(w, r, "JoinLobby", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleAction records a player's response for the current round.
func (h *MatchHandlers) HandleAction(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleAction")
	defer span.End()
	r = r.WithContext(ctx)

	var req matchservice.ActionRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "PlayerAction", err)
		return
	}
	req.MatchID = chi.URLParam(r, MatchIDParam)

	resp, err := h.service.PlayerAction(ctx, req)
	if err != nil {
		h.writeError(w, r, "PlayerAction", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleRefund returns a player's entry fee before the match starts.
func (h *MatchHandlers) HandleRefund(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleRefund")
	defer span.End()
	r = r.WithContext(ctx)

	var req refundRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.writeError(w, r, "RequestRefund", err)
		return
	}

	resp, err := h.service.RequestRefund(ctx, chi.URLParam(r, MatchIDParam), req.PlayerAddress)
	if err != nil {
		h.writeError(w, r, "RequestRefund", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleTick advances every match whose timer has expired.
func (h *MatchHandlers) HandleTick(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleTick")
	defer span.End()
	r = r.WithContext(ctx)

	resp, err := h.service.ProcessTick(ctx)
	if err != nil {
		h.writeError(w, r, "ProcessTick", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleGetMatch returns the match snapshot.
func (h *MatchHandlers) HandleGetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleGetMatch")
	defer span.End()
	r = r.WithContext(ctx)

	view, err := h.service.GetMatch(ctx, chi.URLParam(r, MatchIDParam))
	if err != nil {
		h.writeError(w, r, "GetMatch", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, view)
}

// HandleSettle runs settlement for a completed match that has no prize yet.
func (h *MatchHandlers) HandleSettle(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleSettle")
	defer span.End()
	r = r.WithContext(ctx)

	matchID := chi.URLParam(r, MatchIDParam)
	prize, err := h.service.SettleMatch(ctx, matchID)
	if err != nil {
		h.writeError(w, r, "SettleMatch", err)
		return
	}
	operator := "unknown"
	if claims, ok := ClaimsFromContext(ctx); ok {
		operator = claims.Subject
	}
	h.logger.InfoContext(ctx, "Settlement triggered by operator",
		attr.ExtractCorrelationID(ctx),
		attr.MatchID(matchID),
		attr.String("operator", operator),
		attr.Bool("transfer_success", prize.TransferSuccess),
	)
	h.writeJSON(w, r, http.StatusOK, prize)
}

// HandleRetryTransfer re-runs the transfer leg of a settled match.
func (h *MatchHandlers) HandleRetryTransfer(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleRetryTransfer")
	defer span.End()
	r = r.WithContext(ctx)

	resp, err := h.service.RetryTransfer(ctx, chi.URLParam(r, MatchIDParam))
	if err != nil {
		h.writeError(w, r, "RetryTransfer", err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// HandleReconciliation streams a workbook of payment summaries written since
// the RFC 3339 "since" query parameter.
func (h *MatchHandlers) HandleReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MatchHandlers.HandleReconciliation")
	defer span.End()
	r = r.WithContext(ctx)

	since := h.now().Add(-defaultReportWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.writeError(w, r, "Reconciliation", apperror.InvalidArgument("since must be an RFC 3339 timestamp"))
			return
		}
		since = parsed
	}

	rows, err := h.service.ListReconciliation(ctx, since)
	if err != nil {
		h.writeError(w, r, "Reconciliation", err)
		return
	}

	book, err := matchreport.BuildReconciliation(rows)
	if err != nil {
		h.writeError(w, r, "Reconciliation", apperror.Internal(err, "failed to build reconciliation workbook"))
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="reconciliation-`+since.UTC().Format("20060102")+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(book); err != nil {
		h.logger.WarnContext(ctx, "Failed to write reconciliation workbook", attr.Error(err))
	}
}
