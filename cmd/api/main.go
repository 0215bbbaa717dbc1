package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/concierge/internal/http/handlers/guest"
	"github.com/diagnosis/concierge/internal/http/handlers/jobs"
	"github.com/diagnosis/concierge/internal/http/handlers/staff"
	"github.com/diagnosis/concierge/internal/http/middleware"
	"github.com/diagnosis/concierge/internal/http/middleware/guest_middleware"
	"github.com/diagnosis/concierge/internal/notify"
	"github.com/diagnosis/concierge/internal/repo"
	"github.com/diagnosis/concierge/internal/repo/cache"
	"github.com/diagnosis/concierge/internal/repo/postgres"
	"github.com/diagnosis/concierge/internal/service/ledger"
	"github.com/diagnosis/concierge/internal/service/session"
	"github.com/diagnosis/concierge/internal/service/sweeper"
	"github.com/diagnosis/concierge/pkg/config"
	"github.com/diagnosis/concierge/pkg/database"
	"github.com/diagnosis/concierge/pkg/events"
	"github.com/diagnosis/concierge/pkg/logger"
	mw "github.com/diagnosis/concierge/pkg/middleware"
)

func main() {
	if err := run(); err != nil {
		logger.Error("API service error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := postgres.InitSchema(ctx, pool); err != nil {
		return err
	}

	var dir repo.Directory = postgres.NewDirectoryRepo(pool)
	var idem mw.IdempotencyStore
	if cfg.Redis.URL != "" {
		rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		dir = cache.NewDirectory(dir, rdb, cfg.Redis.DirectoryTTL)
		idem = cache.NewIdempotencyStore(rdb)
	} else {
		logger.Warn("REDIS_URL not set; directory cache and idempotency replay disabled")
	}

	bus, err := events.Open(cfg.Events)
	if err != nil {
		return err
	}
	var pub events.Publisher
	var notifier notify.Notifier = notify.Nop{}
	if bus != nil {
		defer bus.Close()
		pub = bus
		notifier = notify.NewEventNotifier(bus)
	}

	sessionStore := postgres.NewSessionRepo(pool)
	sessions := session.NewManager(dir, sessionStore, nil, session.Policy{
		RegisteredTTL: cfg.Session.RegisteredTTL,
		GuestTTL:      cfg.Session.GuestTTL,
	})
	requests := ledger.New(dir, postgres.NewRequestRepo(pool), notifier, pub, nil)
	sweep := sweeper.New(sessionStore, nil)

	guestHandler := guest.NewHandler(sessions, requests, guest_middleware.Cookies{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	})
	guestHandler.Idempotency = idem
	guestHandler.IdemTTL = cfg.Redis.IdempotencyTTL
	guestHandler.RatePerMin = cfg.RateLimit.GuestPerMinute

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("api"))
	r.Use(mw.Logging)
	r.Use(mw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Idempotent-Replayed", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(mw.Health)
	r.Use(mw.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Mount("/h/{hotelSlug}/r/{roomCode}", guestHandler.Routes())

		r.Route("/staff", func(r chi.Router) {
			r.Use(middleware.RequireStaff(cfg.Auth.StaffJWTSecret, cfg.Auth.StaffJWTAudience))
			r.Mount("/requests", staff.NewRequestsHandler(requests).Routes())
		})

		r.Mount("/jobs", jobs.NewHandler(sweep, cfg.Auth.CronSecret).Routes())
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting API service", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sweep.Run(gctx, cfg.Sweeper.Interval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down API service...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
