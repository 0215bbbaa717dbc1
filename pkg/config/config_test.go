package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Session.RegisteredTTL != 7*24*time.Hour {
		t.Fatalf("registered ttl = %v", cfg.Session.RegisteredTTL)
	}
	if cfg.Session.GuestTTL != 24*time.Hour {
		t.Fatalf("guest ttl = %v", cfg.Session.GuestTTL)
	}
	if cfg.Poller.Interval != 5*time.Second || cfg.Poller.BatchSize != 10 {
		t.Fatalf("poller = %+v", cfg.Poller)
	}
	if cfg.Sweeper.Interval != 24*time.Hour {
		t.Fatalf("sweep interval = %v", cfg.Sweeper.Interval)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("GUEST_SESSION_TTL", "2h")
	t.Setenv("POLL_BATCH", "25")
	t.Setenv("SESSION_COOKIE_SECURE", "false")
	t.Setenv("SWEEP_INTERVAL", "0s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,,")
	t.Setenv("MONITOR_CATEGORY_ID", "3")

	cfg := Load()

	if cfg.Session.GuestTTL != 2*time.Hour {
		t.Errorf("guest ttl = %v", cfg.Session.GuestTTL)
	}
	if cfg.Poller.BatchSize != 25 {
		t.Errorf("batch = %d", cfg.Poller.BatchSize)
	}
	if cfg.Session.CookieSecure {
		t.Error("cookie secure should be false")
	}
	if cfg.Sweeper.Interval != 0 {
		t.Errorf("sweep interval = %v", cfg.Sweeper.Interval)
	}
	if cfg.Monitor.CategoryID != 3 {
		t.Errorf("monitor category = %d", cfg.Monitor.CategoryID)
	}
	if got := cfg.Server.AllowOrigins; len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("origins = %v", got)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	t.Setenv("DB_MAX_CONNS", "many")

	cfg := Load()

	if cfg.Poller.Interval != 5*time.Second {
		t.Errorf("interval = %v", cfg.Poller.Interval)
	}
	if cfg.Database.MaxConns != 10 {
		t.Errorf("max conns = %d", cfg.Database.MaxConns)
	}
}
