package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isplink/portal/internal/fakeapi"
	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

func newTokenStore(t *testing.T) (*TokenStore, *fakeapi.ManualClock, *repo.MemoryKVRepo) {
	t.Helper()
	clock := fakeapi.NewManualClock(testStart)
	kv := repo.NewMemoryKVRepo()
	return NewTokenStore(kv, clock, zerolog.Nop()), clock, kv
}

func TestTokenStore_SaveAndValidity(t *testing.T) {
	ctx := context.Background()
	store, clock, kv := newTokenStore(t)

	assert.False(t, store.IsValid(ctx))
	assert.Equal(t, int64(0), store.TimeUntilExpiry(ctx))

	require.True(t, store.Save(ctx, "T1", time.Hour))

	token, ok := store.Token(ctx)
	assert.True(t, ok)
	assert.Equal(t, "T1", token)
	assert.True(t, store.IsValid(ctx))
	assert.Equal(t, int64(3600), store.TimeUntilExpiry(ctx))
	assert.False(t, store.NeedsRefresh(ctx))

	expiry, err := kv.Get(ctx, KeyTokenExpiry)
	require.NoError(t, err)
	assert.Equal(t, "1772355600000", expiry, "expiry is stored as epoch milliseconds")

	// 5 minutes before expiry the token stops being valid
	clock.Advance(55*time.Minute + 500*time.Millisecond)
	assert.False(t, store.IsValid(ctx))
	assert.Equal(t, int64(299), store.TimeUntilExpiry(ctx), "seconds are floored")
	assert.True(t, store.NeedsRefresh(ctx))

	clock.Advance(5 * time.Minute)
	assert.Equal(t, int64(0), store.TimeUntilExpiry(ctx))
	assert.False(t, store.NeedsRefresh(ctx))
}

func TestTokenStore_ValidityBoundary(t *testing.T) {
	ctx := context.Background()
	store, clock, _ := newTokenStore(t)
	require.True(t, store.Save(ctx, "T1", 10*time.Minute))

	clock.Advance(5*time.Minute - time.Millisecond)
	assert.True(t, store.IsValid(ctx))
	clock.Advance(time.Millisecond)
	assert.False(t, store.IsValid(ctx), "valid only while now < expiresAt - 5m")
}

func TestTokenStore_MissingExpiryIsInvalid(t *testing.T) {
	ctx := context.Background()
	store, _, kv := newTokenStore(t)
	require.NoError(t, kv.SetMany(ctx, map[string]string{KeyAuthToken: "T1"}))

	assert.False(t, store.IsValid(ctx))
	assert.Equal(t, int64(0), store.TimeUntilExpiry(ctx))
}

func TestTokenStore_SaveTokensKeepsRefreshToken(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTokenStore(t)

	require.True(t, store.SaveTokens(ctx, model.TokenPair{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: time.Hour}))
	require.True(t, store.SaveTokens(ctx, model.TokenPair{AccessToken: "T2", ExpiresIn: time.Hour}))

	refresh, ok := store.RefreshToken(ctx)
	assert.True(t, ok)
	assert.Equal(t, "R1", refresh)
	token, _ := store.Token(ctx)
	assert.Equal(t, "T2", token)
}

func TestTokenStore_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, kv := newTokenStore(t)
	require.True(t, store.SaveTokens(ctx, model.TokenPair{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: time.Hour}))
	require.NoError(t, kv.SetMany(ctx, map[string]string{KeyDeviceID: "dev-1"}))

	assert.True(t, store.Clear(ctx))
	assert.True(t, store.Clear(ctx))

	_, ok := store.Token(ctx)
	assert.False(t, ok)
	_, ok = store.RefreshToken(ctx)
	assert.False(t, ok)
	assert.Equal(t, []string{KeyDeviceID}, kv.Keys())
}

func TestTokenStore_PersistenceFailureReturnsFalse(t *testing.T) {
	ctx := context.Background()
	kv := failingKV{KVRepo: repo.NewMemoryKVRepo(), err: errors.New("disk full")}
	store := NewTokenStore(kv, fakeapi.NewManualClock(testStart), zerolog.Nop())

	assert.False(t, store.Save(ctx, "T1", time.Hour))
	assert.False(t, store.Clear(ctx))
	assert.False(t, store.IsValid(ctx))
	assert.False(t, store.Save(ctx, "", time.Hour))
}

func TestTokenStore_Rotate(t *testing.T) {
	ctx := context.Background()
	store, _, _ := newTokenStore(t)
	require.True(t, store.SaveTokens(ctx, model.TokenPair{AccessToken: "T1", RefreshToken: "R1", ExpiresIn: time.Hour}))

	assert.True(t, store.Rotate(ctx, "R1", model.TokenPair{AccessToken: "T2", RefreshToken: "R2", ExpiresIn: time.Hour}))
	assert.False(t, store.Rotate(ctx, "R1", model.TokenPair{AccessToken: "T3", RefreshToken: "R3", ExpiresIn: time.Hour}), "R1 was already spent")

	token, _ := store.Token(ctx)
	assert.Equal(t, "T2", token)

	store.Clear(ctx)
	assert.False(t, store.Rotate(ctx, "R2", model.TokenPair{AccessToken: "T4", RefreshToken: "R4", ExpiresIn: time.Hour}))
	_, ok := store.Token(ctx)
	assert.False(t, ok, "a cleared session is not brought back")
}
