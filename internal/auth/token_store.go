package auth

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

const (
	// ExpiryBuffer is how long before expiry a token stops being attached
	ExpiryBuffer = 5 * time.Minute
	// RefreshWindow is the remaining lifetime below which a proactive refresh runs
	RefreshWindow = 5 * time.Minute
)

// TokenStore persists the access token, its expiry and the refresh token.
// Persistence failures are logged and reported as false, never returned.
type TokenStore struct {
	mu     sync.Mutex
	kv     repo.KVRepo
	clock  Clock
	logger zerolog.Logger
}

// NewTokenStore creates a token store on kv
func NewTokenStore(kv repo.KVRepo, clock Clock, logger zerolog.Logger) *TokenStore {
	if clock == nil {
		clock = SystemClock
	}
	return &TokenStore{kv: kv, clock: clock, logger: logger}
}

// Save stores token expiring expiresIn from now
func (s *TokenStore) Save(ctx context.Context, token string, expiresIn time.Duration) bool {
	return s.SaveTokens(ctx, model.TokenPair{AccessToken: token, ExpiresIn: expiresIn})
}

// SaveTokens stores a token pair in one write. A pair without a refresh token keeps the stored one.
func (s *TokenStore) SaveTokens(ctx context.Context, pair model.TokenPair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, pair)
}

// Rotate stores pair only while prevRefresh is still the stored refresh token.
// It returns false when the session was cleared or rotated by someone else meanwhile.
func (s *TokenStore) Rotate(ctx context.Context, prevRefresh string, pair model.TokenPair) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.read(ctx, KeyRefreshToken); !ok || cur != prevRefresh {
		s.logger.Info().Msg("stored refresh token changed, dropping rotated pair")
		return false
	}
	return s.save(ctx, pair)
}

// save writes pair; callers hold mu
func (s *TokenStore) save(ctx context.Context, pair model.TokenPair) bool {
	if pair.AccessToken == "" {
		s.logger.Warn().Msg("refusing to save empty access token")
		return false
	}

	expiresAt := s.clock.Now().Add(pair.ExpiresIn)
	values := map[string]string{
		KeyAuthToken:   pair.AccessToken,
		KeyTokenExpiry: strconv.FormatInt(expiresAt.UnixMilli(), 10),
	}
	if pair.RefreshToken != "" {
		values[KeyRefreshToken] = pair.RefreshToken
	}

	if err := s.kv.SetMany(ctx, values); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist token")
		return false
	}
	return true
}

// Token returns the stored access token
func (s *TokenStore) Token(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyAuthToken)
}

// RefreshToken returns the stored refresh token
func (s *TokenStore) RefreshToken(ctx context.Context) (string, bool) {
	return s.read(ctx, KeyRefreshToken)
}

// ExpiresAt returns the stored expiry when both token and expiry are present
func (s *TokenStore) ExpiresAt(ctx context.Context) (time.Time, bool) {
	values, err := s.kv.GetMany(ctx, KeyAuthToken, KeyTokenExpiry)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to read token expiry")
		return time.Time{}, false
	}
	if values[KeyAuthToken] == "" {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(values[KeyTokenExpiry], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

// IsValid reports whether a token exists and is more than ExpiryBuffer from expiry
func (s *TokenStore) IsValid(ctx context.Context) bool {
	expiresAt, ok := s.ExpiresAt(ctx)
	if !ok {
		return false
	}
	return s.clock.Now().Before(expiresAt.Add(-ExpiryBuffer))
}

// TimeUntilExpiry returns whole seconds left, 0 when expired or unknown
func (s *TokenStore) TimeUntilExpiry(ctx context.Context) int64 {
	expiresAt, ok := s.ExpiresAt(ctx)
	if !ok {
		return 0
	}
	left := expiresAt.Sub(s.clock.Now())
	if left <= 0 {
		return 0
	}
	return int64(left / time.Second)
}

// NeedsRefresh reports whether the token is alive but inside the refresh window
func (s *TokenStore) NeedsRefresh(ctx context.Context) bool {
	left := s.TimeUntilExpiry(ctx)
	return left > 0 && left < int64(RefreshWindow/time.Second)
}

// Clear removes the token, expiry and refresh token. Safe to call repeatedly.
func (s *TokenStore) Clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, tokenKeys...); err != nil {
		s.logger.Error().Err(err).Msg("failed to clear tokens")
		return false
	}
	return true
}

func (s *TokenStore) read(ctx context.Context, key string) (string, bool) {
	v, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repo.ErrNotFound) {
			s.logger.Error().Err(err).Str("key", key).Msg("failed to read token")
		}
		return "", false
	}
	return v, v != ""
}
