package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shepherd/internal/account"
	"shepherd/internal/audit"
	auditmemory "shepherd/internal/audit/store/memory"
	auditpostgres "shepherd/internal/audit/store/postgres"
	"shepherd/internal/audit/outbox"
	"shepherd/internal/audit/outbox/worker"
	"shepherd/internal/audit/publisher"
	"shepherd/internal/identity"
	identitystore "shepherd/internal/identity/store"
	"shepherd/internal/platform/config"
	"shepherd/internal/platform/database"
	"shepherd/internal/platform/httpserver"
	"shepherd/internal/platform/kafka/producer"
	"shepherd/internal/platform/logger"
	"shepherd/internal/platform/metrics"
	platformredis "shepherd/internal/platform/redis"
	"shepherd/internal/policy"
	"shepherd/internal/routing"
	"shepherd/internal/tenant"
	tenantstore "shepherd/internal/tenant/store"
	httptransport "shepherd/internal/transport/http"
	"shepherd/migrations"
)

// main wires the dependency graph and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing shepherd",
		"addr", cfg.Addr,
		"database", cfg.DatabaseURL != "",
		"redis", cfg.RedisURL != "",
		"kafka", len(cfg.KafkaBrokers) > 0,
	)

	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.DatabaseURL
	pool, err := database.New(dbCfg)
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
	}

	// Stores: postgres when configured, in-memory otherwise (dev mode).
	var identityStore identity.Store
	var tenantStore tenant.Store
	var tenantStatus tenant.StatusProvider
	var auditStore audit.Store
	var outboxStore outbox.Store

	if pool != nil {
		if err := database.Migrate(context.Background(), pool.DB(), migrations.FS); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		identityStore = identitystore.NewPostgres(pool.DB())
		pgTenants := tenantstore.NewPostgres(pool.DB())
		tenantStore = pgTenants
		tenantStatus = pgTenants
		auditStore = auditpostgres.New(pool.DB())
		outboxStore = outbox.NewPostgres(pool.DB())
	} else {
		identityStore = identitystore.NewInMemory()
		memTenants := tenantstore.NewInMemory()
		tenantStore = memTenants
		tenantStatus = memTenants
		auditStore = auditmemory.New()
	}
	identities := identityStore

	var statusInvalidator tenant.Invalidator
	if cache != nil {
		identities = identitystore.NewCached(identityStore, cache.Client, cfg.IdentityCacheTTL, log)
		cachedStatus := tenantstore.NewCachedStatus(tenantStatus, cache.Client, cfg.TenantStatusTTL, log)
		tenantStatus = cachedStatus
		statusInvalidator = cachedStatus
	}

	auditor := publisher.New(auditStore,
		publisher.WithAsyncBuffer(cfg.AuditBuffer),
		publisher.WithLogger(log),
		publisher.WithDropCounter(metrics.AuditEventsDropped),
	)
	defer auditor.Close()

	verifier := identity.NewJWTVerifier(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	resolver := identity.NewResolver(verifier, identities, identity.WithResolverLogger(log))
	accessRouter := routing.New(tenantStatus, log)
	engine := policy.NewEngine(identities, auditor, policy.WithLogger(log))
	accounts := account.NewService(identities, auditor, account.WithLogger(log))
	tenantOpts := []tenant.Option{tenant.WithLogger(log)}
	if statusInvalidator != nil {
		tenantOpts = append(tenantOpts, tenant.WithInvalidator(statusInvalidator))
	}
	tenantSvc := tenant.NewService(tenantStore, auditor, tenantOpts...)

	handler := httptransport.NewHandler(resolver, accessRouter, engine, accounts, tenantSvc, auditor, log)
	router := httptransport.NewRouter(handler, cfg.AdminToken, log)
	srv := httpserver.New(cfg.Addr, router)

	// The outbox relay needs both postgres and kafka; without either, events
	// stay queryable in the audit store but are not streamed.
	var relay *worker.Worker
	if outboxStore != nil && len(cfg.KafkaBrokers) > 0 {
		kafkaProducer, err := producer.New(producer.Config{Brokers: strings.Join(cfg.KafkaBrokers, ",")}, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer kafkaProducer.Close()
		relay = worker.New(outboxStore, kafkaProducer, worker.WithLogger(log))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if relay != nil {
		relay.Start()
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down gracefully")
		if relay != nil {
			relay.Stop()
		}
		return httpserver.Shutdown(srv, 10*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
