package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/diagnosis/concierge/internal/notify"
	"github.com/diagnosis/concierge/internal/platform/mailer"
	"github.com/diagnosis/concierge/pkg/config"
	"github.com/diagnosis/concierge/pkg/events"
	"github.com/diagnosis/concierge/pkg/logger"
)

func main() {
	cfg := config.Load()

	bus, err := events.Open(cfg.Events)
	if err == nil && bus == nil {
		err = errors.New("notify worker needs an event bus; EVENTS_DRIVER is none")
	}
	if err != nil {
		logger.Error("Failed to connect to event bus", "error", err)
		os.Exit(1)
	}
	defer bus.Close()

	worker := notify.NewWorker(bus, notify.NewMailNotifier(mailer.New(cfg.Email)))
	if err := worker.Start(); err != nil {
		logger.Error("Failed to subscribe", "subject", events.NotifySend, "error", err)
		os.Exit(1)
	}
	logger.Info("Notify worker started", "driver", cfg.Events.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("Shutting down notify worker...")
}
