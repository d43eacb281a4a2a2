package fakeapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/isplink/portal/internal/model"
)

const refreshTokenTTL = 30 * 24 * time.Hour

type userResponse struct {
	ID    string `json:"id"`
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	Plan  string `json:"plan,omitempty"`
}

func toUserResponse(u *userRecord) userResponse {
	return userResponse{
		ID:    u.ID,
		Phone: u.Identifier,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
		Plan:  u.Plan,
	}
}

type tokenResponse struct {
	Token        string        `json:"token"`
	ExpiresIn    int64         `json:"expiresIn,omitempty"`
	RefreshToken string        `json:"refreshToken"`
	User         *userResponse `json:"user,omitempty"`
}

// userFor returns the user for role and identifier, creating it on first use. Caller holds s.mu.
func (s *Server) userFor(role, identifier string) *userRecord {
	key := role + ":" + identifier
	if u, ok := s.users[key]; ok {
		return u
	}
	u := &userRecord{
		ID:         uuid.NewString(),
		Role:       role,
		Identifier: identifier,
		Plan:       "fiber-100",
	}
	s.users[key] = u
	s.usersByID[u.ID] = u
	return u
}

// issueTokens signs an access token and stores a new refresh session. Caller holds s.mu.
func (s *Server) issueTokens(u *userRecord) (access, refresh string, ttl time.Duration, err error) {
	ttl = s.accessTTL
	access, err = s.signAccessToken(u.ID, u.Role, ttl)
	if err != nil {
		return "", "", 0, err
	}
	refresh, hash, err := generateRefreshToken()
	if err != nil {
		return "", "", 0, err
	}
	s.refresh[hash] = &refreshSession{
		UserID:    u.ID,
		Role:      u.Role,
		ExpiresAt: s.clock.Now().Add(refreshTokenTTL),
	}
	return access, refresh, ttl, nil
}

func (s *Server) tokenResponse(access, refresh string, ttl time.Duration, u *userRecord) tokenResponse {
	resp := tokenResponse{Token: access, RefreshToken: refresh}
	if !s.omitExpiresIn {
		resp.ExpiresIn = int64(ttl / time.Second)
	}
	if u != nil {
		ur := toUserResponse(u)
		resp.User = &ur
	}
	return resp
}

func (s *Server) handleSendOTP(role, flow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SendOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Identifier = strings.TrimSpace(req.Identifier)
		if req.Identifier == "" {
			respondWithError(w, http.StatusBadRequest, "identifier is required")
			return
		}

		if !s.limiter.Allow(role + ":" + req.Identifier) {
			respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		s.mu.Lock()
		if flow == string(model.FlowSignUp) {
			if _, exists := s.users[role+":"+req.Identifier]; exists {
				s.mu.Unlock()
				respondWithError(w, http.StatusConflict, "account already exists")
				return
			}
		}
		tempToken := uuid.NewString()
		s.challenges[tempToken] = &challenge{
			Role:       role,
			Flow:       flow,
			Identifier: req.Identifier,
			Name:       req.Extra["name"],
			ExpiresAt:  s.clock.Now().Add(otpExpiry),
		}
		s.mu.Unlock()

		respondJSON(w, http.StatusOK, model.SendOTPResponse{TempToken: tempToken, Message: "otp_sent"})
	}
}

func (s *Server) handleVerifyOTP(role, flow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.VerifyOTPRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.OTP = strings.TrimSpace(req.OTP)
		if req.TempToken == "" || req.OTP == "" {
			respondWithError(w, http.StatusBadRequest, "tempToken and otp are required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		ch, ok := s.challenges[req.TempToken]
		if !ok || ch.Role != role || ch.Flow != flow || !s.clock.Now().Before(ch.ExpiresAt) {
			respondWithError(w, http.StatusUnauthorized, "invalid or expired OTP")
			return
		}
		if req.OTP != s.otp {
			ch.Attempts++
			if ch.Attempts >= maxAttempts {
				delete(s.challenges, req.TempToken)
			}
			respondWithError(w, http.StatusUnauthorized, "invalid or expired OTP")
			return
		}
		delete(s.challenges, req.TempToken)

		user := s.userFor(role, ch.Identifier)
		if ch.Name != "" {
			user.Name = ch.Name
		}
		access, refresh, ttl, err := s.issueTokens(user)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to issue tokens")
			return
		}
		if req.DeviceID != "" {
			s.devices[req.DeviceID] = model.DeviceRegisterRequest{
				DeviceID: req.DeviceID,
				FCMToken: req.FCMToken,
				Platform: req.Platform,
			}
		}

		respondJSON(w, http.StatusOK, s.tokenResponse(access, refresh, ttl, user))
	}
}

func (s *Server) handleRefresh(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.RefreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.RefreshToken = strings.TrimSpace(req.RefreshToken)
		if req.RefreshToken == "" {
			respondWithError(w, http.StatusBadRequest, "refreshToken is required")
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if s.refreshCode != 0 {
			respondWithError(w, s.refreshCode, "refresh unavailable")
			return
		}

		rs, ok := s.refresh[hashRefreshToken(req.RefreshToken)]
		if !ok || rs.Role != role || !s.clock.Now().Before(rs.ExpiresAt) {
			respondWithError(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		if rs.Revoked {
			// a rotated token was presented again: revoke the whole family
			for _, other := range s.refresh {
				if other.UserID == rs.UserID {
					other.Revoked = true
				}
			}
			respondWithError(w, http.StatusUnauthorized, "refresh_token_reuse_detected")
			return
		}
		rs.Revoked = true

		user := s.usersByID[rs.UserID]
		access, refresh, ttl, err := s.issueTokens(user)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to issue tokens")
			return
		}

		respondJSON(w, http.StatusOK, s.tokenResponse(access, refresh, ttl, nil))
	}
}

func (s *Server) handleLogout(role string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.LogoutRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		s.mu.Lock()
		delay, code := s.logoutDelay, s.logoutCode
		s.logouts = append(s.logouts, req)
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if code != 0 {
			respondWithError(w, code, "logout failed")
			return
		}

		if user, ok := s.bearerUser(r, role); ok {
			s.mu.Lock()
			for _, rs := range s.refresh {
				if rs.UserID == user.ID {
					rs.Revoked = true
				}
			}
			delete(s.devices, req.DeviceID)
			s.mu.Unlock()
		}

		respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
	}
}

func (s *Server) handleLoginStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	code := s.loginStatusCode
	s.mu.Unlock()
	if code != 0 {
		respondWithError(w, code, http.StatusText(code))
		return
	}

	user := userFromContext(r.Context())
	loggedIn := true
	respondJSON(w, http.StatusOK, struct {
		LoggedIn bool         `json:"isLoggedIn"`
		User     userResponse `json:"user"`
	}{loggedIn, toUserResponse(user)})
}

func (s *Server) handleDeviceRegister(w http.ResponseWriter, r *http.Request) {
	var req model.DeviceRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DeviceID == "" {
		respondWithError(w, http.StatusBadRequest, "deviceId is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deviceRegisterCode != 0 {
		respondWithError(w, s.deviceRegisterCode, "device registration failed")
		return
	}
	s.devices[req.DeviceID] = req

	respondJSON(w, http.StatusOK, map[string]string{"message": "device registered"})
}

type profileResponse struct {
	User userResponse `json:"user"`
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	s.mu.Lock()
	resp := profileResponse{User: toUserResponse(user)}
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, resp)
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email != nil && *req.Email != "" && !strings.Contains(*req.Email, "@") {
		respondWithError(w, http.StatusUnprocessableEntity, "email is invalid")
		return
	}

	user := userFromContext(r.Context())
	s.mu.Lock()
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	resp := profileResponse{User: toUserResponse(user)}
	s.mu.Unlock()

	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, map[string]string{"error": message})
}
