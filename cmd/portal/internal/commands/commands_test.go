package commands

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isplink/portal/internal/app"
	"github.com/isplink/portal/internal/config"
	"github.com/isplink/portal/internal/fakeapi"
	"github.com/isplink/portal/internal/repo"
)

type cliHarness struct {
	srv  *fakeapi.Server
	kv   *repo.MemoryKVRepo
	cfg  *config.Config
	opts *app.Options
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	clock := fakeapi.NewManualClock(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	srv := fakeapi.New(t, fakeapi.Options{Clock: clock})
	cfg := config.Default()
	cfg.APIURL = srv.URL
	cfg.StoreDSN = "sqlite://unused"
	kv := repo.NewMemoryKVRepo()
	return &cliHarness{
		srv:  srv,
		kv:   kv,
		cfg:  cfg,
		opts: &app.Options{KV: kv, Clock: clock, Logger: zerolog.Nop()},
	}
}

func (h *cliHarness) globals(stdin string) (*Globals, *bytes.Buffer) {
	var out bytes.Buffer
	return &Globals{
		Stdin:   strings.NewReader(stdin),
		Stdout:  &out,
		Config:  h.cfg,
		Options: h.opts,
	}, &out
}

func TestLoginStatusLogout(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()

	g, out := h.globals("000000\n" + fakeapi.DevOTP + "\n")
	require.NoError(t, (&LoginCmd{Identifier: "+4915112345678", Role: "staff"}).Run(ctx, g))
	assert.Contains(t, out.String(), "invalid or expired OTP, try again")
	assert.Contains(t, out.String(), "Signed in as +4915112345678 (staff)")

	g, out = h.globals("")
	require.NoError(t, (&StatusCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "Signed in:  yes")
	assert.Contains(t, out.String(), "Role:       staff")

	g, out = h.globals("")
	require.NoError(t, (&LogoutCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "Signed out\n")

	g, out = h.globals("")
	require.NoError(t, (&StatusCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "Signed in:  no")
}

func TestLogin_TooManyWrongCodes(t *testing.T) {
	h := newCLIHarness(t)
	g, _ := h.globals("111111\n222222\n333333\n")

	err := (&LoginCmd{Identifier: "+4915112345678", Role: "customer"}).Run(context.Background(), g)

	require.Error(t, err)
	assert.Equal(t, "invalid or expired OTP", err.Error())
}

func TestSignupAndProfile(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()

	g, out := h.globals(fakeapi.DevOTP + "\n")
	require.NoError(t, (&SignupCmd{Identifier: "ada@example.net", Name: "Ada", Role: "customer"}).Run(ctx, g))
	assert.Contains(t, out.String(), "Signed in as Ada (customer)")

	g, out = h.globals("")
	require.NoError(t, (&ProfileCmd{Name: "Ada Lovelace"}).Run(ctx, g))
	assert.Contains(t, out.String(), `"name": "Ada Lovelace"`)
	assert.Contains(t, out.String(), `"plan": "fiber-100"`)
}

func TestOnboarding(t *testing.T) {
	h := newCLIHarness(t)
	ctx := context.Background()

	g, _ := h.globals("")
	require.NoError(t, (&OnboardingCmd{}).Run(ctx, g))

	g, out := h.globals("")
	require.NoError(t, (&StatusCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "Onboarded:  true")

	g, _ = h.globals("")
	require.NoError(t, (&OnboardingCmd{Reset: true}).Run(ctx, g))
	g, out = h.globals("")
	require.NoError(t, (&StatusCmd{}).Run(ctx, g))
	assert.Contains(t, out.String(), "Onboarded:  false")
}
