package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/your-org/presence/internal/config"
	"github.com/your-org/presence/internal/observability"
	"github.com/your-org/presence/internal/retention"
	"github.com/your-org/presence/internal/storage"
)

// The sweeper is a run-to-completion job, intended for cron or a
// Kubernetes CronJob. It deletes capture images older than the retention
// horizon and exits.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "report what would be deleted without deleting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting retention sweep",
		"retention_days", cfg.Attendance.RetentionDays,
		"dry_run", *dryRun,
	)

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var store retention.ObjectStore = minioStore
	if *dryRun {
		store = dryRunStore{minioStore}
	}

	sweeper := retention.NewSweeper(store, cfg.Attendance.RetentionDays)
	result, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		slog.Error("retention sweep failed", "error", err)
		os.Exit(1)
	}

	slog.Info("retention sweep complete",
		"deleted", result.Deleted,
		"skipped", result.Skipped,
	)
}

// dryRunStore lists for real but logs instead of deleting.
type dryRunStore struct {
	*storage.MinIOStore
}

func (d dryRunStore) DeleteObject(ctx context.Context, key string) error {
	slog.Info("would delete", "key", key)
	return nil
}
