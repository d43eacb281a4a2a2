package fakeapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/isplink/portal/internal/model"
)

func (s *Server) router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.record)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	for _, role := range []model.Role{model.RoleCustomer, model.RoleStaff} {
		role := string(role)
		r.Route(s.prefixes[role], func(r chi.Router) {
			for _, flow := range []string{string(model.FlowSignIn), string(model.FlowSignUp)} {
				r.Post("/"+flow+"/send-otp", s.handleSendOTP(role, flow))
				r.Post("/"+flow+"/verify-otp", s.handleVerifyOTP(role, flow))
			}
			r.Post("/refresh-token", s.handleRefresh(role))
			r.Post("/logout", s.handleLogout(role))

			// Protected routes (require valid JWT for this role)
			r.Group(func(r chi.Router) {
				r.Use(s.authenticate(role))
				r.Get("/login-status", s.handleLoginStatus)
				if role == string(model.RoleStaff) {
					r.Post("/register-device", s.handleDeviceRegister)
				} else {
					r.Post("/device/register", s.handleDeviceRegister)
				}
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
			})
		})
	}

	return r
}

// record counts hits and keeps the latest headers per route
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		s.hits[key]++
		s.headers[key] = r.Header.Clone()
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}
