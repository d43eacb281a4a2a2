package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

// InitializerConfig configures an Initializer
type InitializerConfig struct {
	Client             *apihttp.Client
	KV                 repo.KVRepo
	Tokens             *TokenStore
	Device             *DeviceIdentity
	Snapshot           *Snapshot
	Onboarding         *Onboarding
	Endpoints          Endpoints
	LoginStatusTimeout time.Duration
	Logger             zerolog.Logger
}

// Initializer reconciles persisted state with the backend at startup
type Initializer struct {
	cfg InitializerConfig
}

// NewInitializer creates an Initializer with cfg
func NewInitializer(cfg InitializerConfig) *Initializer {
	if cfg.LoginStatusTimeout <= 0 {
		cfg.LoginStatusTimeout = 10 * time.Second
	}
	return &Initializer{cfg: cfg}
}

// Init returns the session to start with. It never fails: anything the backend
// does not confirm ends in a local wipe and an unauthenticated session.
func (i *Initializer) Init(ctx context.Context) model.Session {
	var session model.Session

	deviceID, err := i.cfg.Device.DeviceID(ctx)
	if err != nil {
		i.cfg.Logger.Warn().Err(err).Msg("device id unavailable")
	}
	session.DeviceID = deviceID
	session.Onboarded = i.cfg.Onboarding.Completed(ctx)

	if !i.cfg.Tokens.IsValid(ctx) {
		if _, ok := i.cfg.Tokens.Token(ctx); ok {
			i.cfg.Logger.Info().Msg("stored token expired, clearing session")
			i.Wipe(ctx)
		}
		return session
	}

	role := i.cfg.Snapshot.Role(ctx)
	var status model.LoginStatusResponse
	err = i.cfg.Client.Do(ctx, apihttp.Request{
		Method:  http.MethodGet,
		Path:    i.cfg.Endpoints.For(role).LoginStatus(),
		Timeout: i.cfg.LoginStatusTimeout,
	}, &status)
	if err != nil {
		i.cfg.Logger.Info().Err(err).Str("role", string(role)).Msg("login status not confirmed, clearing session")
		i.Wipe(ctx)
		return session
	}

	if err := i.cfg.Snapshot.Save(ctx, status.User, role); err != nil {
		i.cfg.Logger.Warn().Err(err).Msg("failed to refresh user snapshot")
	}

	// the wrapped client may have refreshed the token during the call
	token, ok := i.cfg.Tokens.Token(ctx)
	expiresAt, _ := i.cfg.Tokens.ExpiresAt(ctx)
	if !ok {
		return session
	}

	session.AccessToken = token
	session.ExpiresAt = expiresAt
	session.Role = role
	session.User = status.User
	return session
}

// Wipe removes all session scoped local state
func (i *Initializer) Wipe(ctx context.Context) {
	wipe(ctx, i.cfg.KV, i.cfg.Tokens, i.cfg.Logger)
}

// wipe clears the tokens through the token store and the rest of the session scoped keys.
// The push token is left to DeviceIdentity.
func wipe(ctx context.Context, kv repo.KVRepo, tokens *TokenStore, logger zerolog.Logger) {
	tokens.Clear(ctx)
	if err := kv.Delete(ctx, sessionKeys...); err != nil {
		logger.Error().Err(err).Msg("failed to wipe session state")
	}
}
