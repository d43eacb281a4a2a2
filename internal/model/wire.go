package model

import (
	"errors"
	"strings"
)

// SendOTPRequest is the body for POST {role}/{flow}/send-otp
type SendOTPRequest struct {
	Identifier string            `json:"identifier"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// SendOTPResponse is the body returned by send-otp
type SendOTPResponse struct {
	TempToken string `json:"tempToken"`
	Message   string `json:"message,omitempty"`
}

// Validate checks the response carries a challenge
func (r SendOTPResponse) Validate() error {
	if strings.TrimSpace(r.TempToken) == "" {
		return errors.New("send-otp response missing tempToken")
	}
	return nil
}

// VerifyOTPRequest is the body for POST {role}/{flow}/verify-otp
type VerifyOTPRequest struct {
	TempToken string `json:"tempToken"`
	OTP       string `json:"otp"`
	DeviceID  string `json:"deviceId"`
	FCMToken  string `json:"fcmToken,omitempty"`
	Platform  string `json:"platform"`
}

// VerifyOTPResponse is the body returned by verify-otp
type VerifyOTPResponse struct {
	Token        string `json:"token"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	User         *User  `json:"user"`
}

// Validate checks the response carries a token and a user
func (r VerifyOTPResponse) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("verify-otp response missing token")
	}
	if r.User == nil || r.User.ID == "" {
		return errors.New("verify-otp response missing user")
	}
	if r.ExpiresIn < 0 {
		return errors.New("verify-otp response has negative expiresIn")
	}
	return nil
}

// RefreshRequest is the body for POST {role}/refresh-token
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RefreshResponse is the body returned by refresh-token
type RefreshResponse struct {
	Token        string `json:"token"`
	ExpiresIn    int64  `json:"expiresIn,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Validate checks the response carries a token
func (r RefreshResponse) Validate() error {
	if strings.TrimSpace(r.Token) == "" {
		return errors.New("refresh-token response missing token")
	}
	if r.ExpiresIn < 0 {
		return errors.New("refresh-token response has negative expiresIn")
	}
	return nil
}

// LoginStatusResponse is the body returned by GET {role}/login-status
type LoginStatusResponse struct {
	LoggedIn *bool `json:"isLoggedIn,omitempty"`
	User     *User `json:"user"`
}

// Validate checks the backend still considers the session logged in
func (r LoginStatusResponse) Validate() error {
	if r.LoggedIn != nil && !*r.LoggedIn {
		return errors.New("login-status reports logged out")
	}
	if r.User == nil || r.User.ID == "" {
		return errors.New("login-status response missing user")
	}
	return nil
}

// LogoutRequest is the body for POST {role}/logout
type LogoutRequest struct {
	DeviceID string `json:"deviceId,omitempty"`
	FCMToken string `json:"fcmToken,omitempty"`
}

// DeviceRegisterRequest is the body for the device registration endpoint
type DeviceRegisterRequest struct {
	DeviceID   string `json:"deviceId"`
	FCMToken   string `json:"fcmToken"`
	Platform   string `json:"platform"`
	AppVersion string `json:"appVersion,omitempty"`
}

// ProfileResponse is the body returned by GET and PUT {role}/profile
type ProfileResponse struct {
	User *User `json:"user"`
}

// Validate checks the response carries a user
func (r ProfileResponse) Validate() error {
	if r.User == nil || r.User.ID == "" {
		return errors.New("profile response missing user")
	}
	return nil
}

// ErrorResponse is the JSON error body. Backends use either field.
type ErrorResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Text returns whichever message the backend populated
func (e ErrorResponse) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}
