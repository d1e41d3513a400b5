package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"ripple/internal/connections"
	"ripple/internal/duplicates"
	"ripple/internal/graph/store"
	"ripple/internal/identity"
	"ripple/internal/interactions"
	jwttoken "ripple/internal/jwt_token"
	"ripple/internal/paths"
	"ripple/internal/platform/config"
	"ripple/internal/platform/httpserver"
	"ripple/internal/platform/logger"
	"ripple/internal/platform/metrics"
	platformredis "ripple/internal/platform/redis"
	"ripple/internal/propagation"
	"ripple/internal/scoring"
	scoringmetrics "ripple/internal/scoring/metrics"
	"ripple/internal/syncdelta"
	httptransport "ripple/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	graphStore, cleanup, err := buildStore(cfg, log)
	if err != nil {
		log.Error("store init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	scoringOpts := []scoring.Option{scoring.WithMetrics(scoringmetrics.New())}
	if redisClient != nil {
		scoringOpts = append(scoringOpts,
			scoring.WithSpamChecker(scoring.NewRedisSpamChecker(redisClient.Client)),
			scoring.WithCache(scoring.NewCache(redisClient.Client, config.ScoreCacheTTL)),
		)
	}
	scoringSvc := scoring.New(graphStore, log, scoringOpts...)

	propagationOpts := []propagation.Option{}
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err := propagation.NewKafkaPublisher(cfg.KafkaBrokers, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		propagationOpts = append(propagationOpts, propagation.WithPublisher(publisher))
	}

	services := httptransport.Services{
		Identity:     identity.New(graphStore, log),
		Paths:        paths.New(graphStore),
		Scoring:      scoringSvc,
		Duplicates:   duplicates.New(graphStore, log),
		Connections:  connections.New(graphStore, log),
		Propagation:  propagation.New(graphStore, log, propagationOpts...),
		SyncDelta:    syncdelta.New(graphStore, log),
		Interactions: interactions.New(graphStore, scoringSvc, log),
	}

	validator := jwttoken.NewJWTService(cfg.JWTSigningKey, "ripple", "ripple-api")
	router := httptransport.NewRouter(
		httptransport.NewHandler(services, log), validator, metrics.New(), log)
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting ripple", "addr", cfg.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// buildStore selects postgres when configured, the in-memory store otherwise.
func buildStore(cfg config.Server, log *slog.Logger) (store.Store, func(), error) {
	if cfg.PostgresURL == "" {
		log.Info("no POSTGRES_URL set, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, nil, err
	}
	pg := store.NewPostgres(db)
	if err := pg.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info("connected to postgres")
	return pg, func() { db.Close() }, nil
}
