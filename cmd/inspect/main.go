// Package main provides a read-only CLI that prints a portfolio, its
// allocations and its rebalance history from the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/portfolio-rebalancer/internal/config"
	"github.com/portfolio-rebalancer/internal/logging"
	"github.com/portfolio-rebalancer/internal/models"
	"github.com/portfolio-rebalancer/internal/service"
	"github.com/portfolio-rebalancer/internal/storage"
	"github.com/portfolio-rebalancer/internal/types"
)

func main() {
	var (
		portfolioID = flag.Uint64("portfolio", 1, "Portfolio id to inspect")
		mirrored    = flag.Bool("mirror", false, "Read history from the ClickHouse mirror instead of the store")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.GetGlobalLogger().WithField("backend", cfg.Store.Backend)

	ctx := logging.WithLogger(context.Background(), logger)

	if err := inspect(ctx, cfg, *portfolioID, *mirrored); err != nil {
		logger.WithError(err).Error("Inspection failed")
		os.Exit(1)
	}
}

// inspect returns instead of exiting so deferred closes always run
func inspect(ctx context.Context, cfg *config.Config, portfolioID uint64, mirrored bool) error {
	logger := logging.FromContext(ctx)

	store, err := storage.OpenStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()

	engine := service.NewEngine(store, service.ParamsFromConfig(cfg.Engine), service.WithLogger(logger))

	if err := printPortfolio(ctx, os.Stdout, engine, portfolioID); err != nil {
		return fmt.Errorf("failed to inspect portfolio: %w", err)
	}

	if mirrored {
		history, closeMirror, err := storage.OpenHistoryMirror(ctx, &cfg.Database.ClickHouse)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		defer closeMirror()
		if history == nil {
			return errors.New("ClickHouse mirroring is disabled")
		}
		records, err := history.ListByPortfolio(ctx, portfolioID)
		if err != nil {
			return fmt.Errorf("failed to read mirrored history: %w", err)
		}
		printHistory(os.Stdout, "Mirrored history", records)
		return nil
	}

	records, err := engine.ListRebalances(ctx, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	printHistory(os.Stdout, "History", records)
	return nil
}

func printPortfolio(ctx context.Context, w io.Writer, engine *service.Engine, portfolioID uint64) error {
	p, err := engine.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return err
	}
	deviation, err := engine.PortfolioDeviation(ctx, portfolioID)
	if err != nil {
		return err
	}
	allocations, err := engine.ListAllocations(ctx, portfolioID)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Portfolio %d %q\n", p.ID, p.Name)
	fmt.Fprintf(w, "  owner:           %s\n", p.Owner.Hex())
	fmt.Fprintf(w, "  active:          %v\n", p.Active)
	fmt.Fprintf(w, "  total value:     %s\n", types.FormatScaled(p.TotalValue, 0))
	fmt.Fprintf(w, "  idle value:      %s\n", types.FormatScaled(p.IdleValue, 0))
	fmt.Fprintf(w, "  shares:          %s\n", types.FormatScaled(p.TotalShares, 0))
	fmt.Fprintf(w, "  performance fee: %s\n", types.FormatBps(p.PerformanceFeeBps))
	fmt.Fprintf(w, "  last rebalance:  %d\n", p.LastRebalance)
	fmt.Fprintf(w, "  max deviation:   %s\n\n", types.FormatBps(deviation))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOKEN\tSYMBOL\tTARGET\tCURRENT\tAMOUNT\tPRICE")
	for _, a := range allocations {
		price := "-"
		if tok, err := engine.GetToken(ctx, a.Token); err == nil {
			price = types.FormatScaled(tok.Price, 6)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			a.Token.Hex(), a.Symbol, types.FormatBps(a.TargetBps), types.FormatBps(a.CurrentBps),
			types.FormatScaled(a.CurrentAmount, 0), price)
	}
	fmt.Fprintln(tw)
	return tw.Flush()
}

func printHistory(w io.Writer, title string, records []*models.RebalanceRecord) {
	fmt.Fprintf(w, "%s (%d)\n", title, len(records))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tHEIGHT\tTRADES\tFEES\tBEFORE\tAFTER\tDEVIATION\tINITIATOR")
	for _, rec := range records {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Height, rec.TokensTraded, types.FormatScaled(rec.TotalFees, 0),
			types.FormatScaled(rec.ValueBefore, 0), types.FormatScaled(rec.ValueAfter, 0),
			types.FormatBps(rec.DeviationBps), rec.Initiator.Hex())
	}
	_ = tw.Flush()
}
