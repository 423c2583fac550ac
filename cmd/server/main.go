// Command server wires the check-in service together: stores (in-memory or
// backed by Postgres/Redis depending on configuration), the upstream clients,
// the audit pipeline and the HTTP router. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"trailmark/internal/auth/resolver"
	"trailmark/internal/auth/store/session"
	checkinservice "trailmark/internal/checkin/service"
	checkinstore "trailmark/internal/checkin/store"
	"trailmark/internal/checkin/validator"
	"trailmark/internal/identity"
	"trailmark/internal/places"
	"trailmark/internal/platform/config"
	"trailmark/internal/platform/httpserver"
	"trailmark/internal/platform/logger"
	"trailmark/internal/platform/metrics"
	platformredis "trailmark/internal/platform/redis"
	httptransport "trailmark/internal/transport/http"
	userservice "trailmark/internal/user/service"
	userstore "trailmark/internal/user/store"
	"trailmark/pkg/platform/audit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	// Session cache: Redis when configured, in-memory otherwise.
	var sessionCache session.Cache
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		sessionCache = session.NewRedis(redisClient.Client)
		defer redisClient.Close()
		log.Info("session cache backed by redis")
	} else {
		sessionCache = session.NewInMemory()
		log.Info("session cache in memory")
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		users    userstore.Store
		checkins checkinstore.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Error("database ping failed", "error", err)
			os.Exit(1)
		}

		userPG := userstore.NewPostgres(db)
		checkinPG := checkinstore.NewPostgres(db)
		if err := userPG.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		if err := checkinPG.EnsureSchema(ctx); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		users, checkins = userPG, checkinPG
		log.Info("stores backed by postgres")
	} else {
		memUsers := userstore.NewInMemory()
		users = memUsers
		checkins = checkinstore.NewInMemory(memUsers)
		log.Info("stores in memory")
	}

	// Audit pipeline: Kafka when brokers are configured, in-memory otherwise.
	var sink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka audit sink setup failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit events published to kafka", "topic", cfg.AuditTopic)
	} else {
		sink = audit.NewMemorySink()
	}
	publisher := audit.NewPublisher(sink, log)

	auditCtx, stopAudit := context.WithCancel(ctx)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		if err := publisher.Run(auditCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit publisher stopped", "error", err)
		}
	}()

	identityClient := identity.NewClient(identity.Config{
		BaseURL: cfg.IdentityProviderURL,
		Timeout: cfg.UpstreamTimeout,
	})
	registryClient := places.NewClient(places.Config{
		BaseURL: cfg.PlaceRegistryURL,
		APIKey:  cfg.PlaceRegistryKey,
		Timeout: cfg.UpstreamTimeout,
	})

	auth := resolver.New(sessionCache, identityClient, users, cfg.ClientTokens, cfg.AuthCacheTTL, log, m)
	rules := validator.New(registryClient, checkins, cfg.CheckinMaxDistance, cfg.CheckinQuarantine, log, m)

	checkinSvc := checkinservice.New(checkins, users, registryClient, rules, publisher, log, m)
	userSvc := userservice.New(users, checkins, registryClient, publisher, log)

	handler := httptransport.NewHandler(checkinSvc, userSvc, httptransport.Rules{
		MaxDistanceMeters: cfg.CheckinMaxDistance,
		QuarantineSeconds: int(cfg.CheckinQuarantine / time.Second),
	}, log)
	router := httptransport.NewRouter(handler, auth, promhttp.Handler(), log)

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("starting trailmark", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	stopAudit()
	<-auditDone
}
