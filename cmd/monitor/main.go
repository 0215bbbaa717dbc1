// Command monitor is the live-monitor screen for hotel staff. It polls the
// API for new requests and rings the terminal bell for each one.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/concierge/internal/poller"
	"github.com/diagnosis/concierge/pkg/config"
	"github.com/diagnosis/concierge/pkg/logger"
)

func main() {
	cfg := config.Load()
	if cfg.Monitor.StaffToken == "" {
		logger.Error("MONITOR_STAFF_TOKEN is required")
		os.Exit(1)
	}

	pcfg := poller.Config{
		Interval:  cfg.Poller.Interval,
		BatchSize: cfg.Poller.BatchSize,
	}
	if cfg.Monitor.CategoryID > 0 {
		id := cfg.Monitor.CategoryID
		pcfg.CategoryID = &id
	}

	p := poller.New(
		poller.NewHTTPFetcher(cfg.Monitor.APIURL, cfg.Monitor.StaffToken),
		poller.NewTerminalAlerter(os.Stdout),
		nil,
		pcfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		logger.Error("Monitor stopped", "error", err)
		os.Exit(1)
	}
}
