// ebuster-sweeper runs the background maintenance jobs: the periodic
// temporary-ban expiry sweep, daily subscription expiry, and expired
// grant cleanup.
package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/bans"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/grants"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/subscriptions"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/webhooks"
)

var (
	dbURL           = flag.String("db-url", getEnv("EBUSTER_POSTGRES_URL", getEnv("DATABASE_URL", "postgres://localhost/ebuster?sslmode=disable")), "PostgreSQL connection URL")
	banSchedule     = flag.String("ban-sweep-schedule", getEnv("EBUSTER_BAN_SWEEP_SCHEDULE", "*/5 * * * *"), "Cron schedule for the temporary-ban expiry sweep")
	cleanupSchedule = flag.String("cleanup-schedule", getEnv("EBUSTER_CLEANUP_SCHEDULE", "30 3 * * *"), "Cron schedule for subscription and grant cleanup")
	webhookURL      = flag.String("ban-webhook-url", getEnv("EBUSTER_BAN_WEBHOOK_URL", ""), "Optional webhook endpoint for unban events")
	webhookSecret   = flag.String("ban-webhook-secret", getEnv("EBUSTER_BAN_WEBHOOK_SECRET", ""), "HMAC secret for webhook signatures")
	logLevel        = flag.String("log-level", getEnv("EBUSTER_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	runOnce         = flag.Bool("run-once", false, "Run all jobs once and exit")
)

func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("failed to ping database")
	}

	var notifier bans.Notifier
	if *webhookURL != "" {
		notifier = webhooks.NewNotifier(*webhookURL, *webhookSecret)
	}
	sweep := bans.NewSweep(db, notifier, nil, nil, nil)
	subStore := subscriptions.NewStore(db, nil)
	grantStore := grants.NewStore(db, nil)

	if *runOnce {
		runBanSweep(logger, sweep)
		runCleanup(logger, sweep, subStore, grantStore)
		return
	}

	c := cron.New()

	if _, err := c.AddFunc(*banSchedule, func() {
		runBanSweep(logger, sweep)
	}); err != nil {
		logger.WithError(err).Fatal("failed to schedule ban sweep")
	}

	if _, err := c.AddFunc(*cleanupSchedule, func() {
		runCleanup(logger, sweep, subStore, grantStore)
	}); err != nil {
		logger.WithError(err).Fatal("failed to schedule cleanup")
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"ban_sweep_schedule": *banSchedule,
		"cleanup_schedule":   *cleanupSchedule,
	}).Info("sweeper started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down, waiting for running jobs")
	ctx := c.Stop()
	<-ctx.Done()
	logger.Info("sweeper stopped")
}

func runBanSweep(logger *logrus.Logger, sweep *bans.Sweep) {
	ctx := context.Background()
	lifted, err := sweep.Run(ctx, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Error("ban sweep failed")
		return
	}
	if lifted > 0 {
		logger.WithField("lifted", lifted).Info("ban sweep expired temporary bans")
	}
}

func runCleanup(logger *logrus.Logger, sweep *bans.Sweep, subStore *subscriptions.Store, grantStore *grants.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	expired, err := subStore.ExpireDue(ctx, now)
	if err != nil {
		logger.WithError(err).Error("subscription expiry failed")
	} else if expired > 0 {
		logger.WithField("expired", expired).Info("subscriptions marked expired")
	}

	purged, err := grantStore.PurgeExpired(ctx, now)
	if err != nil {
		logger.WithError(err).Error("grant purge failed")
	} else if purged > 0 {
		logger.WithField("purged", purged).Info("expired grants purged")
	}

	removed, err := sweep.RunCleanup(ctx, now)
	if err != nil {
		logger.WithError(err).Error("ban cleanup failed")
	} else if removed > 0 {
		logger.WithField("removed", removed).Info("old ban rows removed")
	}
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
