package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the client configuration
type Config struct {
	APIURL             string
	Platform           string
	AppVersion         string
	StoreDSN           string
	CustomerPrefix     string
	StaffPrefix        string
	HTTPTimeout        time.Duration
	LoginStatusTimeout time.Duration
	LogoutTimeout      time.Duration
	DefaultTokenTTL    time.Duration
	PushToken          string
	Debug              bool
}

// Default returns the configuration used when no environment overrides are set
func Default() *Config {
	return &Config{
		Platform:           "android",
		AppVersion:         "1.0.0",
		CustomerPrefix:     "/api/customer",
		StaffPrefix:        "/api/staff",
		HTTPTimeout:        30 * time.Second,
		LoginStatusTimeout: 10 * time.Second,
		LogoutTimeout:      5 * time.Second,
		DefaultTokenTTL:    time.Hour,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := Default()

	// Load PORTAL_API_URL (required)
	apiURL := strings.TrimSpace(os.Getenv("PORTAL_API_URL"))
	if apiURL == "" {
		return nil, fmt.Errorf("PORTAL_API_URL environment variable is required")
	}
	cfg.APIURL = apiURL

	if v := os.Getenv("PORTAL_PLATFORM"); v != "" {
		cfg.Platform = strings.ToLower(v)
	}
	if v := os.Getenv("PORTAL_APP_VERSION"); v != "" {
		cfg.AppVersion = v
	}
	if v := os.Getenv("PORTAL_CUSTOMER_PREFIX"); v != "" {
		cfg.CustomerPrefix = v
	}
	if v := os.Getenv("PORTAL_STAFF_PREFIX"); v != "" {
		cfg.StaffPrefix = v
	}
	cfg.StoreDSN = os.Getenv("PORTAL_STORE_DSN")
	cfg.PushToken = os.Getenv("PUSH_TOKEN")
	cfg.Debug = os.Getenv("DEBUG") == "true"

	durations := []struct {
		env string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"LOGIN_STATUS_TIMEOUT", &cfg.LoginStatusTimeout},
		{"LOGOUT_TIMEOUT", &cfg.LogoutTimeout},
		{"DEFAULT_TOKEN_TTL", &cfg.DefaultTokenTTL},
	}
	for _, d := range durations {
		v := os.Getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values and fills the default store location
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid API URL %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL must be http or https, got %q", u.Scheme)
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")

	for name, d := range map[string]time.Duration{
		"HTTP_TIMEOUT":         c.HTTPTimeout,
		"LOGIN_STATUS_TIMEOUT": c.LoginStatusTimeout,
		"LOGOUT_TIMEOUT":       c.LogoutTimeout,
		"DEFAULT_TOKEN_TTL":    c.DefaultTokenTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if c.StoreDSN == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve config directory: %w", err)
		}
		c.StoreDSN = "sqlite://" + filepath.Join(dir, "isplink", "portal.db")
	}
	return nil
}
