package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/logger"
	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

var (
	// ErrMissingChallenge is returned by VerifyOTP when no OTP was sent
	ErrMissingChallenge = errors.New("no pending OTP challenge, request a new code")
	// ErrInvalidState is returned when an operation does not fit the current flow state
	ErrInvalidState = errors.New("operation not allowed in current auth state")
	// ErrInvalidInput is returned for empty identifiers, codes or unknown flows
	ErrInvalidInput = errors.New("invalid input")
)

// State is the auth flow state
type State int

const (
	StateIdle State = iota
	StateOtpSent
	StateVerifying
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOtpSent:
		return "otp_sent"
	case StateVerifying:
		return "verifying"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ServiceConfig wires the auth flow controller
type ServiceConfig struct {
	Client          *apihttp.Client
	KV              repo.KVRepo
	Tokens          *TokenStore
	Device          *DeviceIdentity
	Snapshot        *Snapshot
	Endpoints       Endpoints
	Tasks           *Tasks
	Clock           Clock
	AppVersion      string
	DefaultTokenTTL time.Duration
	LogoutTimeout   time.Duration
	Logger          zerolog.Logger
}

// Service is the auth flow controller and the only writer of the in-memory session
type Service struct {
	cfg ServiceConfig

	mu        sync.Mutex
	state     State
	challenge *model.PendingChallenge
	session   model.Session
	// epoch changes whenever a flow is abandoned; a verify response from an older epoch is dropped
	epoch uint64
}

// NewService creates an idle controller
func NewService(cfg ServiceConfig) *Service {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.DefaultTokenTTL <= 0 {
		cfg.DefaultTokenTTL = time.Hour
	}
	if cfg.LogoutTimeout <= 0 {
		cfg.LogoutTimeout = 5 * time.Second
	}
	return &Service{cfg: cfg}
}

// SendOTP requests a code for identifier. Calling it again replaces the pending challenge.
func (s *Service) SendOTP(ctx context.Context, role model.Role, flow model.Flow, identifier string, extra map[string]string) error {
	if _, err := model.ParseRole(string(role)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if flow != model.FlowSignIn && flow != model.FlowSignUp {
		return fmt.Errorf("%w: unknown flow %q", ErrInvalidInput, flow)
	}
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return fmt.Errorf("%w: identifier is required", ErrInvalidInput)
	}

	s.mu.Lock()
	if s.state == StateVerifying || s.state == StateAuthenticated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	s.mu.Unlock()

	var resp model.SendOTPResponse
	err := s.cfg.Client.Do(ctx, apihttp.Request{
		Method: http.MethodPost,
		Path:   s.cfg.Endpoints.For(role).SendOTP(flow),
		Body:   model.SendOTPRequest{Identifier: identifier, Extra: extra},
		Public: true,
	}, &resp)
	if err != nil {
		s.cfg.Logger.Info().Err(err).Str("identifier", logger.MaskIdentifier(identifier)).Msg("send otp failed")
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateVerifying || s.state == StateAuthenticated {
		return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}
	s.challenge = &model.PendingChallenge{
		TempToken:  resp.TempToken,
		Role:       role,
		Flow:       flow,
		Identifier: identifier,
	}
	s.state = StateOtpSent

	s.cfg.Logger.Info().
		Str("role", string(role)).
		Str("flow", string(flow)).
		Str("identifier", logger.MaskIdentifier(identifier)).
		Msg("otp sent")
	return nil
}

// VerifyOTP exchanges code for a session. Without a pending challenge it fails before any network call.
// A rejected code keeps the challenge so the user can retry.
func (s *Service) VerifyOTP(ctx context.Context, code string) (model.Session, error) {
	code = strings.TrimSpace(code)

	s.mu.Lock()
	if s.challenge == nil {
		s.mu.Unlock()
		return model.Session{}, ErrMissingChallenge
	}
	if s.state != StateOtpSent {
		state := s.state
		s.mu.Unlock()
		return model.Session{}, fmt.Errorf("%w: %s", ErrInvalidState, state)
	}
	if code == "" {
		s.mu.Unlock()
		return model.Session{}, fmt.Errorf("%w: code is required", ErrInvalidInput)
	}
	ch := *s.challenge
	s.state = StateVerifying
	epoch := s.epoch
	s.mu.Unlock()

	session, err := s.verify(ctx, ch, code, epoch)
	if err != nil {
		s.mu.Lock()
		if s.state == StateVerifying && s.epoch == epoch {
			s.state = StateOtpSent
		}
		s.mu.Unlock()
		return model.Session{}, err
	}

	s.cfg.Logger.Info().
		Str("role", string(ch.Role)).
		Str("identifier", logger.MaskIdentifier(ch.Identifier)).
		Msg("signed in")

	if s.cfg.Tasks != nil {
		s.cfg.Tasks.Go("device registration", s.RegisterDevice)
	}
	return session, nil
}

// verify calls verify-otp and commits the result only if the flow was not abandoned meanwhile
func (s *Service) verify(ctx context.Context, ch model.PendingChallenge, code string, epoch uint64) (model.Session, error) {
	deviceID, err := s.cfg.Device.DeviceID(ctx)
	if err != nil {
		return model.Session{}, err
	}
	pushToken, _ := s.cfg.Device.PushToken(ctx)

	var resp model.VerifyOTPResponse
	err = s.cfg.Client.Do(ctx, apihttp.Request{
		Method: http.MethodPost,
		Path:   s.cfg.Endpoints.For(ch.Role).VerifyOTP(ch.Flow),
		Body: model.VerifyOTPRequest{
			TempToken: ch.TempToken,
			OTP:       code,
			DeviceID:  deviceID,
			FCMToken:  pushToken,
			Platform:  s.cfg.Device.Platform(),
		},
		Public: true,
	}, &resp)
	if err != nil {
		return model.Session{}, err
	}

	// persisting under the lock keeps a concurrent Logout or Cancel strictly before or after the commit
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch || s.state != StateVerifying {
		s.cfg.Logger.Info().Str("state", s.state.String()).Msg("verify response discarded, flow was abandoned")
		return model.Session{}, fmt.Errorf("%w: %s", ErrInvalidState, s.state)
	}

	pair := model.TokenPair{
		AccessToken:  resp.Token,
		RefreshToken: resp.RefreshToken,
		ExpiresIn:    resolveExpiresIn(resp.Token, resp.ExpiresIn, s.cfg.Clock.Now(), s.cfg.DefaultTokenTTL),
	}
	if !s.cfg.Tokens.SaveTokens(ctx, pair) {
		return model.Session{}, ErrPersist
	}
	if err := s.cfg.Snapshot.Save(ctx, resp.User, ch.Role); err != nil {
		s.cfg.Tokens.Clear(ctx)
		s.cfg.Logger.Error().Err(err).Msg("failed to persist user snapshot")
		return model.Session{}, ErrPersist
	}

	expiresAt, _ := s.cfg.Tokens.ExpiresAt(ctx)
	session := model.Session{
		AccessToken: resp.Token,
		ExpiresAt:   expiresAt,
		Role:        ch.Role,
		User:        resp.User,
		DeviceID:    deviceID,
		Onboarded:   s.session.Onboarded,
	}
	s.session = session
	s.challenge = nil
	s.state = StateAuthenticated
	return session, nil
}

// RegisterDevice tells the backend which push token reaches this device.
// It is skipped when there is no push token or the same registration already succeeded.
func (s *Service) RegisterDevice(ctx context.Context) error {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()
	if !session.Authenticated() {
		return ErrInvalidState
	}

	deviceID, err := s.cfg.Device.DeviceID(ctx)
	if err != nil {
		return err
	}
	pushToken, ok := s.cfg.Device.PushToken(ctx)
	if !ok {
		s.cfg.Logger.Debug().Msg("no push token, skipping device registration")
		return nil
	}

	marker := string(session.Role) + ":" + deviceID + ":" + pushToken
	if prev, err := s.cfg.KV.Get(ctx, KeyDeviceRegistration); err == nil && prev == marker {
		return nil
	}

	err = s.cfg.Client.Do(ctx, apihttp.Request{
		Method: http.MethodPost,
		Path:   s.cfg.Endpoints.For(session.Role).DeviceRegister(),
		Body: model.DeviceRegisterRequest{
			DeviceID:   deviceID,
			FCMToken:   pushToken,
			Platform:   s.cfg.Device.Platform(),
			AppVersion: s.cfg.AppVersion,
		},
	}, nil)
	if err != nil {
		return err
	}

	if err := s.cfg.KV.SetMany(ctx, map[string]string{KeyDeviceRegistration: marker}); err != nil {
		s.cfg.Logger.Warn().Err(err).Msg("failed to record device registration")
	}
	return nil
}

// Logout notifies the backend best-effort and always wipes local session state.
// It reports whether the backend acknowledged the logout.
func (s *Service) Logout(ctx context.Context) (notified bool) {
	s.mu.Lock()
	s.epoch++
	role := s.session.Role
	s.mu.Unlock()
	if role == model.RoleNone {
		role = s.cfg.Snapshot.Role(ctx)
	}

	defer func() {
		// the wipe must run even when the caller gave up
		wctx := context.WithoutCancel(ctx)
		wipe(wctx, s.cfg.KV, s.cfg.Tokens, s.cfg.Logger)
		s.cfg.Device.DeletePushToken(wctx)
		s.reset()
		s.cfg.Logger.Info().Bool("notified", notified).Msg("logged out")
	}()

	if _, ok := s.cfg.Tokens.Token(ctx); !ok {
		return false
	}

	err := s.cfg.Client.Do(ctx, apihttp.Request{
		Method: http.MethodPost,
		Path:   s.cfg.Endpoints.For(role).Logout(),
		Body: model.LogoutRequest{
			DeviceID: s.cfg.Device.CachedDeviceID(ctx),
			FCMToken: s.cfg.Device.CachedPushToken(ctx),
		},
		Public:  true,
		Timeout: s.cfg.LogoutTimeout,
	}, nil)
	if err != nil {
		s.cfg.Logger.Info().Err(err).Msg("backend logout failed, clearing locally")
		return false
	}
	return true
}

// Cancel abandons a pending OTP challenge. An authenticated session is left alone.
func (s *Service) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAuthenticated {
		return
	}
	s.epoch++
	s.challenge = nil
	s.state = StateIdle
}

// Expire drops the in-memory session after the backend rejected it
func (s *Service) Expire() {
	s.reset()
	s.cfg.Logger.Info().Msg("session expired")
}

// Restore adopts the session produced by the initializer
func (s *Service) Restore(session model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = session
	s.epoch++
	s.challenge = nil
	if session.Authenticated() {
		s.state = StateAuthenticated
	} else {
		s.state = StateIdle
	}
}

// Current returns a copy of the in-memory session
func (s *Service) Current() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// State returns the flow state
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Challenge returns the pending challenge, if any
func (s *Service) Challenge() (model.PendingChallenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.challenge == nil {
		return model.PendingChallenge{}, false
	}
	return *s.challenge, true
}

// SetOnboarded mirrors the persisted onboarding flag into the session
func (s *Service) SetOnboarded(done bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.Onboarded = done
}

// UpdateUser replaces the user of an authenticated session
func (s *Service) UpdateUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.Authenticated() && user != nil {
		s.session.User = user
	}
}

// reset returns to Idle keeping the device id and onboarding flag
func (s *Service) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = model.Session{
		DeviceID:  s.session.DeviceID,
		Onboarded: s.session.Onboarded,
	}
	s.epoch++
	s.challenge = nil
	s.state = StateIdle
}
