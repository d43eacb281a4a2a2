// Package app builds the session object graph and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/account"
	"github.com/isplink/portal/internal/auth"
	"github.com/isplink/portal/internal/config"
	"github.com/isplink/portal/internal/db"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/middleware"
	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

// Options overrides collaborators, mostly for tests
type Options struct {
	// KV replaces the store opened from the configured DSN
	KV        repo.KVRepo
	Push      auth.PushProvider
	Clock     auth.Clock
	Transport http.RoundTripper
	Tasks     auth.TaskOptions
	Logger    zerolog.Logger
}

// App holds the wired session components
type App struct {
	Config      *config.Config
	Client      *apihttp.Client
	Tokens      *auth.TokenStore
	Device      *auth.DeviceIdentity
	Snapshot    *auth.Snapshot
	Onboarding  *auth.Onboarding
	Initializer *auth.Initializer
	Auth        *auth.Service
	Account     *account.Service

	tasks    *auth.Tasks
	database *db.DB
	logger   zerolog.Logger
}

// New wires the components. Nothing talks to the backend until Init.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	log := opts.Logger
	a := &App{Config: cfg, logger: log}

	kv := opts.KV
	if kv == nil {
		database, err := db.Open(ctx, cfg.StoreDSN, log)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		a.database = database
		kv = repo.NewKVRepo(database)
	}

	push := opts.Push
	if push == nil {
		push = auth.StaticPushProvider{Value: cfg.PushToken}
	}
	clock := opts.Clock
	if clock == nil {
		clock = auth.SystemClock
	}
	endpoints := auth.Endpoints{Customer: cfg.CustomerPrefix, Staff: cfg.StaffPrefix}

	a.Tokens = auth.NewTokenStore(kv, clock, log)
	a.Device = auth.NewDeviceIdentity(kv, cfg.Platform, push, log)
	a.Snapshot = auth.NewSnapshot(kv, log)
	a.Onboarding = auth.NewOnboarding(kv)
	a.tasks = auth.NewTasks(log, opts.Tasks)

	headers := middleware.HeaderConfig{
		Platform:   cfg.Platform,
		AppVersion: cfg.AppVersion,
		DeviceID:   a.Device.CachedDeviceID,
	}

	// the refresh call goes through a client without the refresh middleware
	bare := apihttp.New(cfg.APIURL, middleware.Chain(opts.Transport, middleware.Headers(nil, headers)), cfg.HTTPTimeout, log)
	refresher := auth.NewRefresher(auth.RefresherConfig{
		Client:          bare,
		Tokens:          a.Tokens,
		Snapshot:        a.Snapshot,
		Endpoints:       endpoints,
		Clock:           clock,
		DefaultTokenTTL: cfg.DefaultTokenTTL,
		Logger:          log,
	})

	a.Client = apihttp.New(cfg.APIURL, middleware.Chain(opts.Transport,
		middleware.Refresh(refresher, a.Tokens, middleware.RefreshOptions{
			OnExpired: a.expire,
			Logger:    log,
		}),
		middleware.Headers(a.Tokens, headers),
	), cfg.HTTPTimeout, log)

	a.Initializer = auth.NewInitializer(auth.InitializerConfig{
		Client:             a.Client,
		KV:                 kv,
		Tokens:             a.Tokens,
		Device:             a.Device,
		Snapshot:           a.Snapshot,
		Onboarding:         a.Onboarding,
		Endpoints:          endpoints,
		LoginStatusTimeout: cfg.LoginStatusTimeout,
		Logger:             log,
	})
	a.Auth = auth.NewService(auth.ServiceConfig{
		Client:          a.Client,
		KV:              kv,
		Tokens:          a.Tokens,
		Device:          a.Device,
		Snapshot:        a.Snapshot,
		Endpoints:       endpoints,
		Tasks:           a.tasks,
		Clock:           clock,
		AppVersion:      cfg.AppVersion,
		DefaultTokenTTL: cfg.DefaultTokenTTL,
		LogoutTimeout:   cfg.LogoutTimeout,
		Logger:          log,
	})
	a.Account = account.NewService(a.Client, a.Auth, a.Snapshot, endpoints, log)

	return a, nil
}

// Init reconciles persisted state with the backend and adopts the result
func (a *App) Init(ctx context.Context) model.Session {
	session := a.Initializer.Init(ctx)
	a.Auth.Restore(session)
	if session.Authenticated() {
		a.tasks.Go("device registration", a.Auth.RegisterDevice)
	}

	a.logger.Info().
		Bool("authenticated", session.Authenticated()).
		Str("role", string(session.Role)).
		Bool("onboarded", session.Onboarded).
		Msg("session initialised")
	return session
}

// CompleteOnboarding persists the onboarding flag
func (a *App) CompleteOnboarding(ctx context.Context) error {
	if err := a.Onboarding.MarkCompleted(ctx); err != nil {
		return fmt.Errorf("failed to save onboarding state: %w", err)
	}
	a.Auth.SetOnboarded(true)
	return nil
}

// WaitBackground blocks until background tasks finished
func (a *App) WaitBackground() {
	a.tasks.Wait()
}

// Dispose stops background work and closes the store
func (a *App) Dispose() error {
	a.tasks.Close()
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

// expire runs after a refresh failed: the tokens are already cleared
func (a *App) expire(ctx context.Context) {
	a.Initializer.Wipe(context.WithoutCancel(ctx))
	a.Auth.Expire()
}
