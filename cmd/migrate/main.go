// Package main applies the Postgres store schema and the ClickHouse history
// mirror schema.
package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/portfolio-rebalancer/internal/config"
	"github.com/portfolio-rebalancer/internal/logging"
	"github.com/portfolio-rebalancer/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "up, down or version (down and version are Postgres only)")
		target = flag.String("target", "store", "store (Postgres kv_records) or mirror (ClickHouse history)")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithFields(map[string]interface{}{
		"action": *action,
		"target": *target,
	})
	ctx := logging.WithLogger(context.Background(), logger)

	switch *target {
	case "store":
		err = migrateStore(ctx, &cfg.Database.Postgres, *action)
	case "mirror":
		err = migrateMirror(ctx, &cfg.Database.ClickHouse, *action)
	default:
		err = fmt.Errorf("unknown target %q", *target)
	}
	if err != nil {
		logger.WithError(err).Fatal("Migration failed")
	}
}

func migrateStore(ctx context.Context, cfg *config.PostgresConfig, action string) error {
	logger := logging.FromContext(ctx)
	url := cfg.URL()

	switch action {
	case "up":
		if err := storage.RunMigrations(url); err != nil {
			return err
		}
	case "down":
		if err := storage.RollbackMigrations(url); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown action %q", action)
	}

	version, dirty, err := storage.MigrationVersion(url)
	if err != nil {
		return err
	}
	logger.WithFields(map[string]interface{}{
		"version": version,
		"dirty":   dirty,
	}).Info("Store schema version")
	return nil
}

func migrateMirror(ctx context.Context, cfg *config.ClickHouseConfig, action string) error {
	if action != "up" {
		return fmt.Errorf("mirror schema only supports %q, got %q", "up", action)
	}

	db, err := storage.NewClickHouseDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to close ClickHouse connection")
		}
	}()

	if err := storage.RunClickHouseMigrations(ctx, db); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("Mirror schema is up to date")
	return nil
}
