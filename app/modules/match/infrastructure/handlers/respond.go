package matchhandlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperror.Kind `json:"kind"`
	Message string        `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidArgument:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindFailedPrecondition:
		return http.StatusPreconditionFailed
	case apperror.KindAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *MatchHandlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to encode response", attr.Error(err))
	}
}

func (h *MatchHandlers) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	kind := apperror.KindOf(err)
	status := statusFor(kind)

	logAttrs := []any{
		attr.ExtractCorrelationID(r.Context()),
		attr.String("operation", op),
		attr.String("kind", string(kind)),
		attr.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Request failed", logAttrs...)
	} else {
		h.logger.InfoContext(r.Context(), "Request rejected", logAttrs...)
	}

	h.writeJSON(w, r, status, errorBody{Error: errorDetail{Kind: kind, Message: apperror.MessageOf(err)}})
}

// decodeBody reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.InvalidArgument("request body exceeds %d bytes", tooLarge.Limit)
		}
		return apperror.InvalidArgument("malformed request body: %s", shortError(err))
	}
	return nil
}

func shortError(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		return fmt.Sprintf("%s...", msg[:120])
	}
	return msg
}
