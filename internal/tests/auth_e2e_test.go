package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isplink/portal/internal/auth"
	"github.com/isplink/portal/internal/fakeapi"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
)

const testPhone = "+491234567890"

func signIn(t *testing.T, e *Env, role model.Role, identifier string) model.Session {
	t.Helper()
	a := e.Start(t)
	a.Init(context.Background())
	require.NoError(t, a.Auth.SendOTP(context.Background(), role, model.FlowSignIn, identifier, nil))
	session, err := a.Auth.VerifyOTP(context.Background(), fakeapi.DevOTP)
	require.NoError(t, err)
	a.WaitBackground()
	require.NoError(t, a.Dispose())
	return session
}

// TestSessionLifecycleE2E walks through cold start, sign in, restart, expiry and logout
// with a persistent store between app instances.
func TestSessionLifecycleE2E(t *testing.T) {
	for name, dsn := range StoreDSNs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("A_ColdStart", func(t *testing.T) {
				e := NewEnv(t, dsn)
				a := e.Start(t)

				session := a.Init(ctx)

				assert.False(t, session.Authenticated())
				assert.NotEmpty(t, session.DeviceID)
				assert.Equal(t, 0, e.Server.TotalHits(), "no network without a token")
			})

			t.Run("B_SignInThenRestart", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signedIn := signIn(t, e, model.RoleCustomer, testPhone)

				a := e.Start(t)
				restored := a.Init(ctx)

				require.True(t, restored.Authenticated())
				assert.Equal(t, signedIn.User.ID, restored.User.ID)
				assert.Equal(t, signedIn.DeviceID, restored.DeviceID)
				assert.Equal(t, 1, e.Server.Hits(http.MethodGet, "/api/customer/login-status"))
			})

			t.Run("C_StaffRoleRemembered", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleStaff, "tech-7")

				a := e.Start(t)
				restored := a.Init(ctx)

				assert.Equal(t, model.RoleStaff, restored.Role)
				assert.Equal(t, 1, e.Server.Hits(http.MethodGet, "/api/staff/login-status"))
			})

			t.Run("D_ExpiredWhileClosed", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleCustomer, testPhone)
				before := e.Server.TotalHits()

				e.Clock.Advance(2 * time.Hour)
				a := e.Start(t)
				session := a.Init(ctx)

				assert.False(t, session.Authenticated())
				assert.Equal(t, before, e.Server.TotalHits())
				_, ok := a.Tokens.Token(ctx)
				assert.False(t, ok)
			})

			t.Run("E_RevokedOnServer", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleCustomer, testPhone)
				e.Server.FailLoginStatus(http.StatusNotFound)

				a := e.Start(t)
				session := a.Init(ctx)

				assert.False(t, session.Authenticated())
				_, _, cached := a.Snapshot.Cached(ctx)
				assert.False(t, cached)
			})

			t.Run("F_RefreshAcrossRestart", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleCustomer, testPhone)

				a := e.Start(t)
				require.True(t, a.Init(ctx).Authenticated())
				e.Server.RejectNextAuthenticated(1)

				user, err := a.Account.Get(ctx)
				require.NoError(t, err)
				assert.Equal(t, testPhone, user.Phone)
				assert.Equal(t, 1, e.Server.Hits(http.MethodPost, "/api/customer/refresh-token"))
				require.NoError(t, a.Dispose())

				// the rotated refresh token was persisted
				b := e.Start(t)
				require.True(t, b.Init(ctx).Authenticated())
				e.Server.RejectNextAuthenticated(1)
				_, err = b.Account.Get(ctx)
				assert.NoError(t, err)
			})

			t.Run("G_SlowLogoutStillSignsOut", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleCustomer, testPhone)
				e.Server.DelayLogout(5 * time.Second)

				a := e.Start(t)
				require.True(t, a.Init(ctx).Authenticated())
				require.NoError(t, a.CompleteOnboarding(ctx))

				assert.False(t, a.Auth.Logout(ctx))
				assert.Equal(t, auth.StateIdle, a.Auth.State())
				require.NoError(t, a.Dispose())

				b := e.Start(t)
				session := b.Init(ctx)
				assert.False(t, session.Authenticated())
				assert.True(t, session.Onboarded, "onboarding survives logout")
			})

			t.Run("H_OfflineErrorsAreTyped", func(t *testing.T) {
				e := NewEnv(t, dsn)
				signIn(t, e, model.RoleCustomer, testPhone)

				a := e.Start(t)
				require.True(t, a.Init(ctx).Authenticated())
				e.Server.Close()

				_, err := a.Account.Get(ctx)
				assert.ErrorIs(t, err, apihttp.ErrNetworkUnavailable)
				cached, ok := a.Account.Cached(ctx)
				require.True(t, ok)
				assert.Equal(t, testPhone, cached.Phone)
			})
		})
	}
}
