// Package tests holds end-to-end scenarios that run the full client stack
// against the fake backend with a real SQL store.
package tests

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/app"
	"github.com/isplink/portal/internal/auth"
	"github.com/isplink/portal/internal/config"
	"github.com/isplink/portal/internal/db"
	"github.com/isplink/portal/internal/fakeapi"
)

// Env is one backend plus a store that outlives app restarts
type Env struct {
	Server *fakeapi.Server
	Clock  *fakeapi.ManualClock
	Config *config.Config
}

// StoreDSNs returns the stores to run against: sqlite always, postgres when
// PORTAL_TEST_DATABASE_URL is set.
func StoreDSNs(t *testing.T) map[string]string {
	t.Helper()
	dsns := map[string]string{
		"sqlite": "sqlite://" + filepath.Join(t.TempDir(), "portal.db"),
	}
	if url := os.Getenv("PORTAL_TEST_DATABASE_URL"); url != "" {
		dsns["postgres"] = url
	}
	return dsns
}

// NewEnv starts a fake backend and a clean store at dsn
func NewEnv(t *testing.T, dsn string) *Env {
	t.Helper()
	clock := fakeapi.NewManualClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	srv := fakeapi.New(t, fakeapi.Options{Clock: clock})

	cfg := config.Default()
	cfg.APIURL = srv.URL
	cfg.StoreDSN = dsn
	cfg.PushToken = "fcm-e2e"
	cfg.LogoutTimeout = 200 * time.Millisecond
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	if err := TruncateKV(context.Background(), dsn); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return &Env{Server: srv, Clock: clock, Config: cfg}
}

// Start builds an app on the shared store, as a fresh process would
func (e *Env) Start(t *testing.T) *app.App {
	t.Helper()
	a, err := app.New(context.Background(), e.Config, app.Options{
		Clock:  e.Clock,
		Tasks:  auth.TaskOptions{MaxTries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
		Logger: zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("start app: %v", err)
	}
	t.Cleanup(func() { _ = a.Dispose() })
	return a
}

// TruncateKV empties the key-value table for a clean test state
func TruncateKV(ctx context.Context, dsn string) error {
	database, err := db.Open(ctx, dsn, zerolog.Nop())
	if err != nil {
		return err
	}
	defer database.Close()
	if _, err := database.ExecContext(ctx, "DELETE FROM kv_entries"); err != nil {
		return fmt.Errorf("truncate kv_entries: %w", err)
	}
	return nil
}
