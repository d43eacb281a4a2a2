package config

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAPIURL(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORTAL_API_URL")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "https://portal.example.net/")
	t.Setenv("PORTAL_STORE_DSN", "sqlite:///tmp/portal-test.db")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://portal.example.net", cfg.APIURL)
	assert.Equal(t, "android", cfg.Platform)
	assert.Equal(t, "/api/customer", cfg.CustomerPrefix)
	assert.Equal(t, "/api/staff", cfg.StaffPrefix)
	assert.Equal(t, 5*time.Second, cfg.LogoutTimeout)
	assert.Equal(t, 10*time.Second, cfg.LoginStatusTimeout)
	assert.False(t, cfg.Debug)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "http://localhost:9000")
	t.Setenv("PORTAL_PLATFORM", "IOS")
	t.Setenv("LOGOUT_TIMEOUT", "2s")
	t.Setenv("DEBUG", "true")
	t.Setenv("PORTAL_STORE_DSN", "postgres://u:p@localhost/portal")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ios", cfg.Platform)
	assert.Equal(t, 2*time.Second, cfg.LogoutTimeout)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "postgres://u:p@localhost/portal", cfg.StoreDSN)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PORTAL_API_URL", "http://localhost:9000")
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP_TIMEOUT")
}

func TestValidate_RejectsBadURL(t *testing.T) {
	cfg := Default()
	cfg.APIURL = "ftp://portal"
	require.Error(t, cfg.Validate())

	cfg.APIURL = "not a url"
	require.Error(t, cfg.Validate())
}

func TestValidate_DefaultStoreDSN(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
	cfg := Default()
	cfg.APIURL = "https://portal.example.net"
	require.NoError(t, cfg.Validate())
	assert.True(t, strings.HasPrefix(cfg.StoreDSN, "sqlite://"))
	assert.True(t, strings.HasSuffix(cfg.StoreDSN, "portal.db"))
}
