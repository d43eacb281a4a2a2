package middleware

import (
	"context"
	"net/http"
)

// Middleware wraps a RoundTripper, the client side counterpart of func(http.Handler) http.Handler
type Middleware func(http.RoundTripper) http.RoundTripper

// RoundTripperFunc adapts a function to http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Chain builds a transport from base. The first middleware is the outermost.
func Chain(base http.RoundTripper, mws ...Middleware) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	rt := base
	for i := len(mws) - 1; i >= 0; i-- {
		rt = mws[i](rt)
	}
	return rt
}

type attemptKey struct{}

// MaxRefreshAttempts is the number of token refreshes a single request may trigger
const MaxRefreshAttempts = 1

// WithAttempt records how many refreshes the request in ctx has already consumed
func WithAttempt(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, attemptKey{}, n)
}

// Attempt returns the refresh attempts consumed by the request in ctx
func Attempt(ctx context.Context) int {
	n, _ := ctx.Value(attemptKey{}).(int)
	return n
}

// SkipRefresh marks ctx so a 401 is returned as-is without a refresh
func SkipRefresh(ctx context.Context) context.Context {
	return WithAttempt(ctx, MaxRefreshAttempts)
}
