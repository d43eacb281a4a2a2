// Package fakeapi is an in-process portal backend for tests. It speaks the same
// customer and staff endpoint families as the real backend, issues HS256 access
// tokens, rotates refresh tokens and lets tests inject failures.
package fakeapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/isplink/portal/internal/model"
)

const (
	// DevOTP is the code every challenge accepts unless Options.OTP is set
	DevOTP = "123456"

	otpExpiry            = 5 * time.Minute
	maxAttempts          = 5
	requestWindow        = 10 * time.Minute
	maxRequestsPerWindow = 3
)

// Options configures a fake backend
type Options struct {
	Clock          Clock
	CustomerPrefix string
	StaffPrefix    string
	AccessTTL      time.Duration
	OTP            string
}

type userRecord struct {
	ID         string
	Role       string
	Identifier string
	Name       string
	Email      string
	Plan       string
}

type challenge struct {
	Role       string
	Flow       string
	Identifier string
	Name       string
	ExpiresAt  time.Time
	Attempts   int
}

type refreshSession struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
	Revoked   bool
}

// Server is a running fake backend
type Server struct {
	*httptest.Server

	clock    Clock
	secret   []byte
	prefixes map[string]string
	otp      string
	limiter  *rateLimiter

	mu            sync.Mutex
	accessTTL     time.Duration
	omitExpiresIn bool
	users         map[string]*userRecord
	usersByID     map[string]*userRecord
	challenges    map[string]*challenge
	refresh       map[string]*refreshSession
	devices       map[string]model.DeviceRegisterRequest
	logouts       []model.LogoutRequest
	hits          map[string]int
	headers       map[string]http.Header

	loginStatusCode    int
	logoutDelay        time.Duration
	logoutCode         int
	refreshCode        int
	deviceRegisterCode int
	rejectNext         int
}

// New starts a fake backend that is closed when the test ends
func New(tb testing.TB, opts Options) *Server {
	tb.Helper()

	if opts.Clock == nil {
		opts.Clock = NewManualClock(time.Now())
	}
	if opts.CustomerPrefix == "" {
		opts.CustomerPrefix = "/api/customer"
	}
	if opts.StaffPrefix == "" {
		opts.StaffPrefix = "/api/staff"
	}
	if opts.AccessTTL == 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.OTP == "" {
		opts.OTP = DevOTP
	}

	s := &Server{
		clock:  opts.Clock,
		secret: []byte("fakeapi-jwt-secret-at-least-32-characters"),
		prefixes: map[string]string{
			string(model.RoleCustomer): opts.CustomerPrefix,
			string(model.RoleStaff):    opts.StaffPrefix,
		},
		otp:        opts.OTP,
		limiter:    newRateLimiter(opts.Clock, requestWindow, maxRequestsPerWindow),
		accessTTL:  opts.AccessTTL,
		users:      make(map[string]*userRecord),
		usersByID:  make(map[string]*userRecord),
		challenges: make(map[string]*challenge),
		refresh:    make(map[string]*refreshSession),
		devices:    make(map[string]model.DeviceRegisterRequest),
		hits:       make(map[string]int),
		headers:    make(map[string]http.Header),
	}

	s.Server = httptest.NewServer(s.router())
	tb.Cleanup(s.Server.Close)
	return s
}

// SetAccessTTL changes the lifetime of tokens issued from now on
func (s *Server) SetAccessTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTTL = d
}

// OmitExpiresIn drops expiresIn from token responses so clients must read the JWT exp claim
func (s *Server) OmitExpiresIn(omit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.omitExpiresIn = omit
}

// FailLoginStatus makes login-status answer with code; 0 restores normal behaviour
func (s *Server) FailLoginStatus(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loginStatusCode = code
}

// DelayLogout makes logout wait d (or until the client gives up) before answering
func (s *Server) DelayLogout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutDelay = d
}

// FailLogout makes logout answer with code
func (s *Server) FailLogout(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCode = code
}

// FailRefresh makes refresh-token answer with code
func (s *Server) FailRefresh(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCode = code
}

// FailDeviceRegister makes device registration answer with code
func (s *Server) FailDeviceRegister(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceRegisterCode = code
}

// RejectNextAuthenticated makes the next n authenticated requests fail with 401
func (s *Server) RejectNextAuthenticated(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectNext = n
}

// Hits returns how many times method path was requested
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// TotalHits returns the number of requests served
func (s *Server) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// LastHeaders returns the headers of the latest method path request
func (s *Server) LastHeaders(method, path string) http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[method+" "+path].Clone()
}

// Device returns the registration recorded for deviceID
func (s *Server) Device(deviceID string) (model.DeviceRegisterRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	return d, ok
}

// Logouts returns the logout bodies received so far
func (s *Server) Logouts() []model.LogoutRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LogoutRequest(nil), s.logouts...)
}

// Prefix returns the endpoint family prefix for role
func (s *Server) Prefix(role model.Role) string {
	return s.prefixes[string(role)]
}

// IssueSession creates a user and a token pair directly, as if OTP verification had happened
func (s *Server) IssueSession(role model.Role, identifier string) (access, refresh, userID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.userFor(string(role), identifier)
	access, refresh, _, err = s.issueTokens(user)
	return access, refresh, user.ID, err
}

// RevokeAll revokes every refresh token issued so far
func (s *Server) RevokeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rs := range s.refresh {
		rs.Revoked = true
	}
}
