package matchrouter

import (
	matchhandlers "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/handlers"
	matchjwt "github.com/Black-And-White-Club/quickdraw/app/modules/match/infrastructure/jwt"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

const (
	// APIPrefix is the mount point of the match API.
	APIPrefix = "/api/v1"

	matchPath = "/matches/{" + matchhandlers.MatchIDParam + "}"
)

// Config controls the middleware wrapped around the match routes.
type Config struct {
	AllowedOrigins []string
	RateLimit      rate.Limit
	RateBurst      int
	Tokens         matchjwt.Provider
}

// Register mounts the match API on r. Admin routes are only mounted when a
// token provider is configured.
func Register(r chi.Router, handlers matchhandlers.Handlers, cfg Config) {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	limiter := matchhandlers.NewIPRateLimiter(cfg.RateLimit, cfg.RateBurst)

	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(matchhandlers.CorrelationIDMiddleware)
		r.Use(matchhandlers.CORSMiddleware(cfg.AllowedOrigins))

		// Public routes
		r.Group(func(r chi.Router) {
			r.Use(matchhandlers.RateLimitMiddleware(limiter))
			r.Post("/lobby/join", handlers.HandleJoin)
			r.Post("/tick", handlers.HandleTick)
			r.Get(matchPath, handlers.HandleGetMatch)
			r.Post(matchPath+"/actions", handlers.HandleAction)
			r.Post(matchPath+"/refund", handlers.HandleRefund)
		})

		// Operator routes
		if cfg.Tokens != nil {
			r.Route("/admin", func(r chi.Router) {
				r.Use(matchhandlers.AdminMiddleware(cfg.Tokens))
				r.Post(matchPath+"/settle", handlers.HandleSettle)
				r.Post(matchPath+"/retry-transfer", handlers.HandleRetryTransfer)
				r.Get(matchPath+"/jobs", handlers.HandleListJobs)
				r.Delete(matchPath+"/jobs", handlers.HandleCancelJobs)
				r.Get("/reconciliation.xlsx", handlers.HandleReconciliation)
			})
		}
	})
}
