package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/repo"
)

// ErrNoPushToken is returned by a PushProvider that has no token to offer
var ErrNoPushToken = errors.New("no push token available")

// PushProvider defines the interface to the platform push service
type PushProvider interface {
	RequestPermission(ctx context.Context) (granted bool, err error)
	Token(ctx context.Context) (string, error)
}

// StaticPushProvider hands out a fixed token, or none when empty
type StaticPushProvider struct {
	Value string
}

func (p StaticPushProvider) RequestPermission(ctx context.Context) (bool, error) {
	return p.Value != "", nil
}

func (p StaticPushProvider) Token(ctx context.Context) (string, error) {
	if p.Value == "" {
		return "", ErrNoPushToken
	}
	return p.Value, nil
}

// DeviceIdentity owns the per install device id and the cached push token
type DeviceIdentity struct {
	mu       sync.Mutex
	kv       repo.KVRepo
	platform string
	push     PushProvider
	logger   zerolog.Logger
}

// NewDeviceIdentity creates a device identity. A nil push provider yields no push token.
func NewDeviceIdentity(kv repo.KVRepo, platform string, push PushProvider, logger zerolog.Logger) *DeviceIdentity {
	if push == nil {
		push = StaticPushProvider{}
	}
	return &DeviceIdentity{kv: kv, platform: platform, push: push, logger: logger}
}

// Platform returns the platform tag sent with auth requests
func (d *DeviceIdentity) Platform() string {
	return d.platform
}

// DeviceID returns the persisted device id, generating and persisting a UUIDv7 on first use
func (d *DeviceIdentity) DeviceID(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id, err := d.kv.Get(ctx, KeyDeviceID)
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("failed to read device id: %w", err)
	}

	generated, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate device id: %w", err)
	}
	if err := d.kv.SetMany(ctx, map[string]string{KeyDeviceID: generated.String()}); err != nil {
		return "", fmt.Errorf("failed to persist device id: %w", err)
	}

	d.logger.Info().Str("device_id", generated.String()).Msg("generated device id")
	return generated.String(), nil
}

// CachedDeviceID returns the persisted device id without generating one
func (d *DeviceIdentity) CachedDeviceID(ctx context.Context) string {
	id, _ := d.kv.Get(ctx, KeyDeviceID)
	return id
}

// PushToken returns the cached push token, asking the provider when none is cached.
// Denial or provider failure yields absent.
func (d *DeviceIdentity) PushToken(ctx context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if token, err := d.kv.Get(ctx, KeyPushToken); err == nil && token != "" {
		return token, true
	}

	if d.platform == "ios" {
		granted, err := d.push.RequestPermission(ctx)
		if err != nil || !granted {
			d.logger.Debug().Err(err).Msg("push permission not granted")
			return "", false
		}
	}

	token, err := d.push.Token(ctx)
	if err != nil || token == "" {
		d.logger.Debug().Err(err).Msg("push token unavailable")
		return "", false
	}
	if err := d.kv.SetMany(ctx, map[string]string{KeyPushToken: token}); err != nil {
		d.logger.Warn().Err(err).Msg("failed to cache push token")
	}
	return token, true
}

// CachedPushToken returns the cached push token without asking the provider
func (d *DeviceIdentity) CachedPushToken(ctx context.Context) string {
	token, _ := d.kv.Get(ctx, KeyPushToken)
	return token
}

// DeletePushToken drops the cached push token
func (d *DeviceIdentity) DeletePushToken(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.kv.Delete(ctx, KeyPushToken); err != nil {
		d.logger.Warn().Err(err).Msg("failed to delete push token")
	}
}
