// ebusterd is the entitlement API server: it owns the role registry,
// subscription records, custom grants and bans, and serves access
// decisions over HTTP.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/accounts"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/api"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/audit"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/config"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/entitlements"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/grants"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/middleware"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/storage"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/storage/postgres"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/subscriptions"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/usage"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/webhooks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info("starting ebusterd")

	ctx := context.Background()

	db, err := postgres.Connect(cfg.Storage)
	if err != nil {
		logger.WithError(err).Error("failed to connect to postgres")
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run migrations")
		os.Exit(1)
	}

	// Redis is optional: without it the limit gates see zero usage and
	// readiness reports degraded, but decisions keep flowing
	redisClient, err := storage.NewRedisClient(cfg.Storage)
	if err != nil {
		logger.WithError(err).Warn("redis unavailable, usage counters disabled")
		redisClient = nil
	}

	registry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var resolver *entitlements.Resolver
	roleStore := roles.NewStore(db, func() {
		// role edits clear the whole cache; there is no role-to-account index
		if resolver != nil {
			resolver.InvalidateAll()
		}
	})

	seed, err := loadRoleSeed(cfg.Entitlements.RoleSeedFile)
	if err != nil {
		logger.WithError(err).Error("failed to load role seed file")
		os.Exit(1)
	}
	if err := roles.SeedDefaults(ctx, roleStore, seed); err != nil {
		logger.WithError(err).Error("failed to seed roles")
		os.Exit(1)
	}

	accountStore := accounts.NewStore(db)
	invalidate := func(accountID int64) {
		if resolver != nil {
			resolver.Invalidate(accountID)
		}
	}
	subStore := subscriptions.NewStore(db, invalidate)
	subManager := subscriptions.NewManager(subStore)
	grantStore := grants.NewStore(db, invalidate)

	var banNotifier bans.Notifier
	if url := os.Getenv("EBUSTER_BAN_WEBHOOK_URL"); url != "" {
		banNotifier = webhooks.NewNotifier(url, os.Getenv("EBUSTER_BAN_WEBHOOK_SECRET"))
	}
	banStore := bans.NewStore(db, banNotifier, invalidate, logger)

	resolver = entitlements.NewResolver(roleStore, accountStore, entitlements.ResolverConfig{
		CacheTTL:    cfg.Entitlements.CacheTTL,
		CacheSize:   cfg.Entitlements.CacheSize,
		DefaultRole: cfg.Entitlements.DefaultRole,
	}, metrics)
	checker := entitlements.NewChecker(resolver, subManager, metrics, logger)

	var usageCounter *usage.Counter
	if redisClient != nil {
		usageCounter = usage.NewCounter(redisClient, 0)
	}

	server := api.NewServer(api.Deps{
		Roles:         roleStore,
		Accounts:      accountStore,
		Subscriptions: subStore,
		SubManager:    subManager,
		Grants:        grantStore,
		Bans:          banStore,
		Resolver:      resolver,
		Checker:       checker,
		Usage:         usageCounter,
		Audit:         audit.NewDBLogger(db, logger),
		Auth:          identityMiddleware(),
		Health:        observability.NewHealthChecker(db, redisClient),
		Metrics:       metrics,
		Registry:      registry,
		Logger:        logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if metrics != nil {
		group.Go(func() error {
			return reportDBStats(groupCtx, db, metrics)
		})
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
	cancel()
	if err := group.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("ebusterd stopped")
}

// identityMiddleware builds the caller identity source. Identity comes
// from a trusted header set by the gateway, overridable via
// EBUSTER_IDENTITY_HEADER.
func identityMiddleware() mux.MiddlewareFunc {
	header := os.Getenv("EBUSTER_IDENTITY_HEADER")
	trusted := middleware.NewTrustedHeaderAuth(header, false)
	return trusted.Handler
}

// loadRoleSeed reads the optional role seed file
func loadRoleSeed(path string) ([]roles.Role, error) {
	if path == "" {
		return nil, nil
	}
	return roles.LoadSeedFile(path)
}

// reportDBStats mirrors connection pool gauges into metrics
func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) error {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := db.Stats()
			metrics.DBConnectionsActive.Set(float64(stats.InUse))
			metrics.DBConnectionsIdle.Set(float64(stats.Idle))
		}
	}
}
