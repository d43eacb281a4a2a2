package auth

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/fakeapi"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/middleware"
	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	srv         *fakeapi.Server
	clock       *fakeapi.ManualClock
	kv          *repo.MemoryKVRepo
	tokens      *TokenStore
	device      *DeviceIdentity
	snapshot    *Snapshot
	onboarding  *Onboarding
	refresher   *Refresher
	initializer *Initializer
	svc         *Service
	tasks       *Tasks
	client      *apihttp.Client
	expired     atomic.Int32
}

type harnessOptions struct {
	platform           string
	push               PushProvider
	logoutTimeout      time.Duration
	loginStatusTimeout time.Duration
	// baseURL points the clients at another backend than the fake one
	baseURL string
}

func newHarness(t *testing.T, opts ...func(*harnessOptions)) *harness {
	t.Helper()

	o := harnessOptions{
		platform:           "android",
		push:               StaticPushProvider{Value: "push-abc"},
		logoutTimeout:      5 * time.Second,
		loginStatusTimeout: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	h := &harness{clock: fakeapi.NewManualClock(testStart), kv: repo.NewMemoryKVRepo()}
	h.srv = fakeapi.New(t, fakeapi.Options{Clock: h.clock})

	baseURL := h.srv.URL
	if o.baseURL != "" {
		baseURL = o.baseURL
	}

	log := zerolog.Nop()
	endpoints := Endpoints{Customer: "/api/customer", Staff: "/api/staff"}

	h.tokens = NewTokenStore(h.kv, h.clock, log)
	h.device = NewDeviceIdentity(h.kv, o.platform, o.push, log)
	h.snapshot = NewSnapshot(h.kv, log)
	h.onboarding = NewOnboarding(h.kv)
	h.tasks = NewTasks(log, TaskOptions{MaxTries: 2, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond})
	t.Cleanup(h.tasks.Close)

	headers := middleware.HeaderConfig{
		Platform:   o.platform,
		AppVersion: "2.4.0",
		DeviceID:   h.device.CachedDeviceID,
	}
	bare := apihttp.New(baseURL, middleware.Chain(nil, middleware.Headers(nil, headers)), 5*time.Second, log)
	h.refresher = NewRefresher(RefresherConfig{
		Client:          bare,
		Tokens:          h.tokens,
		Snapshot:        h.snapshot,
		Endpoints:       endpoints,
		Clock:           h.clock,
		DefaultTokenTTL: time.Hour,
		Logger:          log,
	})

	h.client = apihttp.New(baseURL, middleware.Chain(nil,
		middleware.Refresh(h.refresher, h.tokens, middleware.RefreshOptions{
			OnExpired: func(ctx context.Context) {
				h.initializer.Wipe(ctx)
				h.svc.Expire()
				h.expired.Add(1)
			},
			Logger: log,
		}),
		middleware.Headers(h.tokens, headers),
	), 5*time.Second, log)

	h.initializer = NewInitializer(InitializerConfig{
		Client:             h.client,
		KV:                 h.kv,
		Tokens:             h.tokens,
		Device:             h.device,
		Snapshot:           h.snapshot,
		Onboarding:         h.onboarding,
		Endpoints:          endpoints,
		LoginStatusTimeout: o.loginStatusTimeout,
		Logger:             log,
	})
	h.svc = NewService(ServiceConfig{
		Client:          h.client,
		KV:              h.kv,
		Tokens:          h.tokens,
		Device:          h.device,
		Snapshot:        h.snapshot,
		Endpoints:       endpoints,
		Tasks:           h.tasks,
		Clock:           h.clock,
		AppVersion:      "2.4.0",
		DefaultTokenTTL: time.Hour,
		LogoutTimeout:   o.logoutTimeout,
		Logger:          log,
	})
	return h
}

// signIn runs the OTP flow for role and waits for background registration
func (h *harness) signIn(t *testing.T, role model.Role, identifier string) model.Session {
	t.Helper()
	ctx := context.Background()
	if err := h.svc.SendOTP(ctx, role, model.FlowSignIn, identifier, nil); err != nil {
		t.Fatalf("send otp: %v", err)
	}
	session, err := h.svc.VerifyOTP(ctx, fakeapi.DevOTP)
	if err != nil {
		t.Fatalf("verify otp: %v", err)
	}
	h.tasks.Wait()
	return session
}

func (h *harness) value(key string) (string, bool) {
	v, err := h.kv.Get(context.Background(), key)
	return v, err == nil
}

// failingKV rejects every write
type failingKV struct {
	repo.KVRepo
	err error
}

func (f failingKV) SetMany(ctx context.Context, values map[string]string) error {
	return f.err
}

func (f failingKV) Delete(ctx context.Context, keys ...string) error {
	return f.err
}
