package matchhandlers

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	matchjwt "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/jwt"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	handler := RateLimitMiddleware(limiter)(okHandler)

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tick", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodPost, "/api/v1/tick", nil)
	other.RemoteAddr = "10.0.0.2:5555"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, other)
	assert.Equal(t, http.StatusOK, rr.Code, "limits are per address")
}

func TestIPRateLimiterPrunesIdleEntries(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	limiter := NewIPRateLimiter(1, 1)
	limiter.now = func() time.Time { return now }

	for i := 0; i <= cleanupThreshold; i++ {
		limiter.GetLimiter("10.1.0." + strconv.Itoa(i))
	}
	require.Equal(t, cleanupThreshold+1, limiter.Len())

	now = now.Add(maxIdleAge + time.Second)
	limiter.GetLimiter("10.2.0.1")
	assert.Equal(t, 1, limiter.Len())
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://play.quickdraw.gg"})(okHandler)

	tests := []struct {
		name        string
		method      string
		origin      string
		wantAllowed string
	}{
		{name: "allowed origin", method: http.MethodGet, origin: "https://play.quickdraw.gg", wantAllowed: "https://play.quickdraw.gg"},
		{name: "foreign origin", method: http.MethodGet, origin: "https://evil.example", wantAllowed: ""},
		{name: "preflight", method: http.MethodOptions, origin: "https://play.quickdraw.gg", wantAllowed: "https://play.quickdraw.gg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/matches/game1", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, tt.wantAllowed, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCorrelationIDMiddleware(t *testing.T) {
	var seen string
	handler := CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = attr.CorrelationID(r.Context())
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rr.Header().Get(CorrelationIDHeader))

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, incoming)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, incoming, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "<script>")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.NotEqual(t, "<script>", seen)
}

func TestAdminMiddleware(t *testing.T) {
	provider := matchjwt.NewProvider("test-secret-at-least-32-chars-long!!")
	adminToken, err := provider.GenerateToken("ops", matchjwt.RoleAdmin, time.Hour)
	require.NoError(t, err)
	viewerToken, err := provider.GenerateToken("viewer", "viewer", time.Hour)
	require.NoError(t, err)
	expiredToken, err := provider.GenerateToken("ops", matchjwt.RoleAdmin, -time.Hour)
	require.NoError(t, err)

	var subject string
	handler := AdminMiddleware(provider)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := ClaimsFromContext(r.Context()); ok {
			subject = claims.Subject
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "admin", header: "Bearer " + adminToken, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + adminToken, wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expiredToken, wantStatus: http.StatusUnauthorized},
		{name: "not admin", header: "Bearer " + viewerToken, wantStatus: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/matches/game1/retry-transfer", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "ops", subject)
			}
		})
	}
}
