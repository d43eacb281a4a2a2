package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// resolveExpiresIn picks the token lifetime: the explicit seconds, else the JWT exp claim, else fallback
func resolveExpiresIn(token string, seconds int64, now time.Time, fallback time.Duration) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if exp, ok := tokenExpiry(token); ok {
		left := exp.Sub(now)
		if left < 0 {
			return 0
		}
		return left
	}
	return fallback
}

// tokenExpiry reads exp without verifying the signature; the client never holds the key
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
