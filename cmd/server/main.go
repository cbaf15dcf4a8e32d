// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"civreg/internal/jwt_token"
	"civreg/internal/person/handler"
	"civreg/internal/person/metrics"
	"civreg/internal/person/policy"
	"civreg/internal/person/service"
	"civreg/internal/person/store"
	"civreg/internal/person/store/cache"
	"civreg/internal/person/store/postgres"
	"civreg/internal/platform/config"
	"civreg/internal/platform/idgen"
	"civreg/internal/platform/logger"
	platformredis "civreg/internal/platform/redis"
	"civreg/pkg/platform/feed"
	"civreg/pkg/platform/middleware/auth"
	"civreg/pkg/platform/middleware/requesttime"
	"civreg/pkg/platform/tracing"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	tracing.SetTracer(otel.Tracer("civreg"))

	stores, cleanup, err := buildStores(cfg, log)
	if err != nil {
		log.Error("failed to initialize stores", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	publisher, closeFeed, err := buildFeed(cfg)
	if err != nil {
		log.Error("failed to initialize change feed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeFeed()

	engine := service.New(stores, policy.Default(), idgen.NewUUIDAllocator(),
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithFeed(publisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer)

	router := chi.NewRouter()
	router.Use(requesttime.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtService))
		handler.New(engine, log, cfg.PageSize).Register(r)
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info("starting civreg", slog.String("addr", cfg.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", slog.String("error", err.Error()))
	}
}

// buildStores assembles persistence: postgres when configured, in-memory
// otherwise, with an optional Redis read cache in front of records.
func buildStores(cfg config.Config, log *slog.Logger) (service.Stores, func(), error) {
	cleanup := func() {}

	if cfg.DatabaseURL == "" {
		log.Warn("no database configured, using in-memory stores")
		return service.Stores{
			Records:     store.NewMemoryRecords(),
			Approvals:   store.NewMemoryApprovals(),
			Indexes:     store.NewMemoryIndexes(),
			Catchments:  store.NewMemoryMappings(),
			ApprovalMap: store.NewMemoryMappings(),
		}, cleanup, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return service.Stores{}, cleanup, err
	}
	if err := postgres.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return service.Stores{}, cleanup, err
	}
	pg := postgres.New(db)

	var records store.RecordStore = pg
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		db.Close()
		return service.Stores{}, cleanup, err
	}
	if redisClient != nil {
		records = cache.NewRecords(pg, redisClient.Client, cfg.Redis.TTL, log)
	}

	cleanup = func() {
		if redisClient != nil {
			redisClient.Close()
		}
		db.Close()
	}
	return service.Stores{
		Records:     records,
		Approvals:   pg,
		Indexes:     pg,
		Catchments:  pg.CatchmentMappings(),
		ApprovalMap: pg.ApprovalMappings(),
	}, cleanup, nil
}

func buildFeed(cfg config.Config) (feed.Publisher, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return feed.NewMemory(), func() {}, nil
	}
	kafka, err := feed.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, func() {}, err
	}
	return kafka, kafka.Close, nil
}
