package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
)

var (
	// ErrNoRefreshToken is returned when a refresh is needed but none is stored
	ErrNoRefreshToken = errors.New("no refresh token stored")
	// ErrPersist is returned when token material could not be written locally
	ErrPersist = errors.New("failed to persist session")
	// ErrRefreshSuperseded is returned when the session was cleared while a refresh was in flight
	ErrRefreshSuperseded = errors.New("session changed during token refresh")
)

// RefresherConfig configures a Refresher
type RefresherConfig struct {
	// Client must not carry the refresh middleware
	Client          *apihttp.Client
	Tokens          *TokenStore
	Snapshot        *Snapshot
	Endpoints       Endpoints
	Clock           Clock
	DefaultTokenTTL time.Duration
	Logger          zerolog.Logger
}

// Refresher exchanges the stored refresh token for a new token pair.
// Concurrent callers share one network call so a rotating refresh token is spent once.
type Refresher struct {
	cfg   RefresherConfig
	group singleflight.Group
}

// NewRefresher creates a Refresher with cfg
func NewRefresher(cfg RefresherConfig) *Refresher {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	return &Refresher{cfg: cfg}
}

// Refresh runs or joins a refresh. The shared call outlives any one caller,
// but each caller stops waiting when its own ctx is done.
func (r *Refresher) Refresh(ctx context.Context) error {
	ch := r.group.DoChan("refresh", func() (any, error) {
		return nil, r.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Shared {
			r.cfg.Logger.Debug().Msg("joined in-flight token refresh")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	refreshToken, ok := r.cfg.Tokens.RefreshToken(ctx)
	if !ok {
		return ErrNoRefreshToken
	}

	role := r.cfg.Snapshot.Role(ctx)
	var resp model.RefreshResponse
	err := r.cfg.Client.Do(ctx, apihttp.Request{
		Method: http.MethodPost,
		Path:   r.cfg.Endpoints.For(role).Refresh(),
		Body:   model.RefreshRequest{RefreshToken: refreshToken},
		Public: true,
	}, &resp)
	if err != nil {
		return fmt.Errorf("refresh token: %w", err)
	}

	pair := model.TokenPair{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resolveExpiresIn(resp.Token, resp.ExpiresIn, r.cfg.Clock.Now(), r.cfg.DefaultTokenTTL),
	}
	if !r.cfg.Tokens.Rotate(ctx, refreshToken, pair) {
		cur, ok := r.cfg.Tokens.RefreshToken(ctx)
		switch {
		case !ok:
			return ErrRefreshSuperseded
		case cur != refreshToken:
			// a newer session is already stored
			return nil
		default:
			return ErrPersist
		}
	}

	r.cfg.Logger.Debug().Str("role", string(role)).Dur("expires_in", pair.ExpiresIn).Msg("access token refreshed")
	return nil
}
