package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/rs/zerolog"
)

// Refresher obtains a new access token using the persisted refresh token
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TokenState is the part of the token store the refresh middleware drives
type TokenState interface {
	NeedsRefresh(ctx context.Context) bool
	Clear(ctx context.Context) bool
}

// RefreshOptions configures the refresh middleware
type RefreshOptions struct {
	// OnExpired runs after a failed refresh, once the token store is cleared
	OnExpired func(ctx context.Context)
	Logger    zerolog.Logger
}

// Refresh handles token expiry for a request.
// A token inside the proactive window is refreshed before sending. A 401 on a
// request that has not consumed its refresh triggers one refresh and one replay.
// When the refresh fails the token store is cleared and the original response returned.
func Refresh(refresher Refresher, tokens TokenState, opts RefreshOptions) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			attempt := Attempt(ctx)

			var proactiveErr error
			if attempt < MaxRefreshAttempts && tokens.NeedsRefresh(ctx) {
				attempt++
				req = req.Clone(WithAttempt(ctx, attempt))
				proactiveErr = refresher.Refresh(ctx)
				if proactiveErr != nil {
					opts.Logger.Debug().Err(proactiveErr).Msg("proactive token refresh failed")
				}
			}

			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}

			if attempt >= MaxRefreshAttempts {
				if proactiveErr != nil && ctx.Err() == nil {
					expire(ctx, tokens, opts)
				}
				return resp, nil
			}

			// the original response is returned unchanged if the refresh fails
			original, err := bufferResponse(resp)
			if err != nil {
				return nil, err
			}

			retry := req.Clone(WithAttempt(ctx, attempt+1))
			if err := resetBody(retry); err != nil {
				return original, nil
			}

			if err := refresher.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					// the caller gave up waiting; the refresh itself may still succeed
					return nil, ctx.Err()
				}
				opts.Logger.Info().Err(err).Str("path", req.URL.Path).Msg("token refresh after 401 failed")
				expire(ctx, tokens, opts)
				return original, nil
			}

			opts.Logger.Debug().Str("path", req.URL.Path).Msg("replaying request after token refresh")
			return next.RoundTrip(retry)
		})
	}
}

func expire(ctx context.Context, tokens TokenState, opts RefreshOptions) {
	tokens.Clear(ctx)
	if opts.OnExpired != nil {
		opts.OnExpired(ctx)
	}
}

// resetBody rewinds a cloned request body so it can be sent again
func resetBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

func bufferResponse(resp *http.Response) (*http.Response, error) {
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, nil
}
