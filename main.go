package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Black-And-White-Club/quickdraw/app/modules/match"
	"github.com/Black-And-White-Club/quickdraw/config"
	"github.com/Black-And-White-Club/quickdraw/internal/db/bundb"
	"github.com/Black-And-White-Club/quickdraw/internal/eventbus"
	"github.com/Black-And-White-Club/quickdraw/internal/observability"
	"github.com/Black-And-White-Club/quickdraw/internal/observability/attr"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	obs := observability.New(config.ToObsConfig(cfg))
	logger := obs.Logger
	logger.Info("Starting quickdraw")

	db, err := bundb.Open(ctx, cfg.Postgres.DSN, bundb.DefaultPoolConfig())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var eventBus eventbus.EventBus
	if cfg.NATS.URL != "" {
		eventBus, err = eventbus.NewNATS(eventbus.NATSConfig{URL: cfg.NATS.URL, NKeySeed: cfg.NATS.NKeySeed}, logger)
		if err != nil {
			log.Fatalf("Failed to create event bus: %v", err)
		}
	} else {
		logger.Warn("NATS URL not configured, publishing match events in-process")
		eventBus, _ = eventbus.NewInProcess(logger)
	}
	defer eventBus.Close()

	router := chi.NewRouter()
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)

	module, err := match.NewModule(ctx, cfg, obs, db, eventBus, router)
	if err != nil {
		log.Fatalf("Failed to create match module: %v", err)
	}

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := module.HealthCheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	metricsHandler := promhttp.HandlerFor(obs.Registry, promhttp.HandlerOpts{})
	servers := []*http.Server{{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if addr := cfg.Observability.MetricsAddress; addr != "" && addr != cfg.HTTP.Addr {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricsHandler)
		servers = append(servers, &http.Server{Addr: addr, Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second})
	} else {
		router.Handle("/metrics", metricsHandler)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go module.Run(ctx, &wg)

	for _, srv := range servers {
		go func(srv *http.Server) {
			logger.Info("HTTP server listening", attr.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server failed", attr.String("addr", srv.Addr), attr.Error(err))
				cancel()
			}
		}(srv)
	}

	<-ctx.Done()
	logger.Info("Shutting down quickdraw")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down HTTP server", attr.String("addr", srv.Addr), attr.Error(err))
		}
	}
	if err := module.Close(); err != nil {
		logger.Error("Error closing match module", attr.Error(err))
	}
	wg.Wait()

	logger.Info("Quickdraw stopped")
}
