package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/channel-ranking-go/internal/config"
	"github.com/kapu/channel-ranking-go/internal/service/analytics"
	"github.com/kapu/channel-ranking-go/internal/service/database"
	"github.com/kapu/channel-ranking-go/internal/service/store"
)

var (
	apply   = flag.Bool("apply", false, "write repairs instead of only reporting them")
	timeout = flag.Duration("timeout", 2*time.Minute, "overall timeout")
)

func main() {
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pg, err := database.NewPostgresService(database.PostgresConfig{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		Database: cfg.Postgres.Database,
		SSLMode:  cfg.Postgres.SSLMode,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to postgres", zap.Error(err))
	}
	defer pg.Close()

	// reads go straight to the database so the scan never sees stale group links
	repo := store.NewPostgresStore(pg, logger, cfg.Analytics.GroupQueryBatchSize)
	groups := analytics.NewGroupAggregator(repo, logger, analytics.Options{
		GroupBatchSize:   cfg.Analytics.GroupQueryBatchSize,
		GroupConcurrency: cfg.Analytics.GroupConcurrency,
	})

	report, err := groups.ReconcileGroups(ctx, !*apply)
	if err != nil {
		logger.Fatal("Reconcile failed", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Fatal("Failed to write report", zap.Error(err))
	}

	if report.DryRun && len(report.Issues) > 0 {
		fmt.Fprintf(os.Stderr, "%d issue(s) found; rerun with -apply to repair\n", len(report.Issues))
	}
}
