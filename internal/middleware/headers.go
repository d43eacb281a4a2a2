package middleware

import (
	"context"
	"net/http"
)

const (
	// HeaderPlatform carries the device platform (android or ios)
	HeaderPlatform = "X-Platform"
	// HeaderAppVersion carries the client version
	HeaderAppVersion = "X-App-Version"
	// HeaderDeviceID carries the per install device id
	HeaderDeviceID = "X-Device-Id"
)

// TokenSource provides the bearer token for outgoing requests
type TokenSource interface {
	IsValid(ctx context.Context) bool
	Token(ctx context.Context) (string, bool)
}

// HeaderConfig holds the static client identification headers
type HeaderConfig struct {
	Platform   string
	AppVersion string
	// DeviceID returns the cached device id, or "" when none exists yet
	DeviceID func(ctx context.Context) string
}

// Headers attaches the bearer token when valid plus platform, version and device headers.
// A nil TokenSource never attaches Authorization.
func Headers(tokens TokenSource, cfg HeaderConfig) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			out := req.Clone(ctx)

			if tokens != nil && tokens.IsValid(ctx) {
				if token, ok := tokens.Token(ctx); ok {
					out.Header.Set("Authorization", "Bearer "+token)
				}
			}
			if cfg.Platform != "" {
				out.Header.Set(HeaderPlatform, cfg.Platform)
			}
			if cfg.AppVersion != "" {
				out.Header.Set(HeaderAppVersion, cfg.AppVersion)
			}
			if cfg.DeviceID != nil {
				if id := cfg.DeviceID(ctx); id != "" {
					out.Header.Set(HeaderDeviceID, id)
				}
			}
			if out.Header.Get("Accept") == "" {
				out.Header.Set("Accept", "application/json")
			}

			return next.RoundTrip(out)
		})
	}
}
