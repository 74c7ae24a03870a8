package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"claimintake/internal/platform/config"
	"claimintake/internal/platform/httpserver"
	"claimintake/internal/platform/logger"
	"claimintake/internal/platform/middleware"
	platformredis "claimintake/internal/platform/redis"
	"claimintake/internal/submission"
	"claimintake/internal/submission/cache"
	"claimintake/internal/submission/handler"
	"claimintake/internal/submission/metrics"
	"claimintake/internal/submission/store"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal/submission.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	var submissionStore submission.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err.Error())
			os.Exit(1)
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := db.PingContext(ctx); err != nil {
			cancel()
			log.Error("database unreachable", "error", err.Error())
			os.Exit(1)
		}
		pg := store.NewPostgresStore(db)
		if err := pg.Migrate(ctx); err != nil {
			cancel()
			log.Error("migrate schema", "error", err.Error())
			os.Exit(1)
		}
		cancel()
		submissionStore = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store; submissions will not survive a restart")
		submissionStore = store.NewInMemoryStore()
	}

	var queryCache submission.Cache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err.Error())
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		queryCache = cache.NewRedisCache(redisClient.Client, cfg.ListCacheTTL, cfg.StatsCacheTTL, log)
	} else {
		queryCache = cache.NewMemoryCache(cfg.ListCacheTTL, cfg.StatsCacheTTL)
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	service, err := submission.NewService(submissionStore, queryCache, m, log, cfg.DefaultPageSize)
	if err != nil {
		log.Error("wire submission service", "error", err.Error())
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log))
	r.Use(middleware.Logger(log))

	handler.New(service, log).Register(r)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, r)

	log.Info("starting claim-intake server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err.Error())
		os.Exit(1)
	}
}
