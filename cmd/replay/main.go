// Package main replays a JSON script of engine calls against the configured
// store, mirroring committed rebalances to ClickHouse when enabled.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/portfolio-rebalancer/internal/config"
	"github.com/portfolio-rebalancer/internal/host"
	"github.com/portfolio-rebalancer/internal/logging"
	"github.com/portfolio-rebalancer/internal/service"
	"github.com/portfolio-rebalancer/internal/storage"
)

func main() {
	var (
		scriptPath = flag.String("script", "", "Path to a JSON array of steps")
		height     = flag.Uint64("height", 0, "Logical height to start from")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger()
	ctx := logging.WithLogger(context.Background(), logger)

	if *scriptPath == "" {
		logger.Fatal("-script is required")
	}
	f, err := os.Open(*scriptPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open script")
	}
	steps, err := host.DecodeScript(f)
	_ = f.Close()
	if err != nil {
		logger.WithError(err).Fatal("Failed to read script")
	}

	if err := replay(ctx, cfg, steps, *height); err != nil {
		logger.WithError(err).Error("Replay stopped")
		os.Exit(1)
	}
}

// replay returns instead of exiting so deferred closes always run
func replay(ctx context.Context, cfg *config.Config, steps []host.Step, height uint64) error {
	logger := logging.FromContext(ctx)

	store, err := storage.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	opts := []service.Option{service.WithLogger(logger)}
	mirror, closeMirror, err := storage.OpenHistoryMirror(ctx, &cfg.Database.ClickHouse)
	if err != nil {
		return fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}
	defer closeMirror()
	if mirror != nil {
		opts = append(opts, service.WithHistoryMirror(mirror))
	}

	engine := service.NewEngine(store, service.ParamsFromConfig(cfg.Engine), opts...)
	runtime := host.NewRuntime(engine, height)

	logger.WithFields(map[string]interface{}{
		"backend": cfg.Store.Backend,
		"steps":   len(steps),
		"mirror":  mirror != nil,
	}).Info("Replaying script")

	results, err := runtime.Run(ctx, steps)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}

	logger.WithField("height", runtime.Height()).Info("Replay finished")
	return nil
}
