package fakeapi

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey contextKey = "user"

// authenticate validates the bearer token and that it was issued for role
func (s *Server) authenticate(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			if s.rejectNext > 0 {
				s.rejectNext--
				s.mu.Unlock()
				respondWithError(w, http.StatusUnauthorized, "token revoked")
				return
			}
			s.mu.Unlock()

			user, ok := s.bearerUser(r, role)
			if !ok {
				respondWithError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerUser resolves the user behind a valid Authorization header
func (s *Server) bearerUser(r *http.Request, role string) (*userRecord, bool) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return nil, false
	}

	claims, err := s.verifyAccessToken(parts[1])
	if err != nil || claims.Role != role {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[claims.Subject]
	return user, ok
}

func userFromContext(ctx context.Context) *userRecord {
	user, _ := ctx.Value(userContextKey).(*userRecord)
	return user
}
