package matchhandlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	matchqueue "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/queue"
	"github.com/Black-And-White-Club/quickdraw/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchHandlers_HandleListJobs(t *testing.T) {
	h := newTestHandlers(&FakeService{})
	h.jobs = &FakeJobs{
		GetScheduledJobsFunc: func(ctx context.Context, matchID string) ([]matchqueue.JobInfo, error) {
			return []matchqueue.JobInfo{{ID: 7, Kind: matchqueue.TickJob{}.Kind(), MatchID: matchID, State: "scheduled"}}, nil
		},
	}

	rr := httptest.NewRecorder()
	h.HandleListJobs(rr, withMatchID(httptest.NewRequest(http.MethodGet, "/", nil), "game5"))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp jobsResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "game5", resp.MatchID)
	require.Len(t, resp.Jobs, 1)
	assert.Equal(t, "match_tick", resp.Jobs[0].Kind)
}

func TestMatchHandlers_HandleCancelJobs(t *testing.T) {
	tests := []struct {
		name       string
		jobs       JobInspector
		wantStatus int
	}{
		{name: "cancelled", jobs: &FakeJobs{}, wantStatus: http.StatusNoContent},
		{
			name: "queue failure",
			jobs: &FakeJobs{CancelMatchJobsFunc: func(ctx context.Context, matchID string) error {
				return errors.New("connection reset")
			}},
			wantStatus: http.StatusInternalServerError,
		},
		{name: "queue disabled", jobs: nil, wantStatus: http.StatusPreconditionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandlers(&FakeService{})
			h.jobs = tt.jobs

			rr := httptest.NewRecorder()
			h.HandleCancelJobs(rr, withMatchID(httptest.NewRequest(http.MethodDelete, "/", nil), "game5"))
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusPreconditionFailed {
				assert.Equal(t, apperror.KindFailedPrecondition, decodeError(t, rr).Kind)
			}
		})
	}
}
