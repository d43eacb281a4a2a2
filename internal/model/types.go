package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies which backend endpoint family a session belongs to
type Role string

const (
	RoleNone     Role = ""
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// ParseRole validates a persisted or user supplied role marker
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer, RoleStaff:
		return Role(s), nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

// Flow is the OTP entry point used to start authentication
type Flow string

const (
	FlowSignIn Flow = "signin"
	FlowSignUp Flow = "signup"
)

// User is the profile object returned by the backend. Raw keeps the full server payload.
type User struct {
	ID    string          `json:"id"`
	Name  string          `json:"name,omitempty"`
	Phone string          `json:"phone,omitempty"`
	Email string          `json:"email,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw payload next to the well known fields
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*u = User(p)
	u.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON writes the raw payload back when present so unknown fields survive a round trip
func (u User) MarshalJSON() ([]byte, error) {
	if len(u.Raw) > 0 {
		return u.Raw, nil
	}
	type plain User
	return json.Marshal(plain(u))
}

// Session is the reconciled authentication state of the app.
// Role, User and a valid AccessToken are either all present or all absent.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Role        Role
	User        *User
	DeviceID    string
	Onboarded   bool
}

// Authenticated reports whether the session carries a signed in user
func (s Session) Authenticated() bool {
	return s.Role != RoleNone && s.User != nil && s.AccessToken != ""
}

// DeviceIdentity is the per install identity sent with auth requests
type DeviceIdentity struct {
	DeviceID  string
	PushToken string
}

// PendingChallenge binds a send-otp call to its verify-otp call. Never persisted.
type PendingChallenge struct {
	TempToken  string
	Role       Role
	Flow       Flow
	Identifier string
}

// TokenPair is the token material issued by verify-otp and refresh-token
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}
