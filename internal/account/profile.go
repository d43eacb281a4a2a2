// Package account reads and edits the signed in user's profile.
package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/auth"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
)

// ErrNotSignedIn is returned when there is no authenticated session
var ErrNotSignedIn = errors.New("not signed in")

// Session is the part of the auth controller the profile service needs
type Session interface {
	Current() model.Session
	UpdateUser(user *model.User)
}

// Update holds the editable profile fields; nil leaves a field unchanged
type Update struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Service calls the profile endpoints of the signed in role
type Service struct {
	client    *apihttp.Client
	session   Session
	snapshot  *auth.Snapshot
	endpoints auth.Endpoints
	logger    zerolog.Logger
}

// NewService creates a profile service for the current session
func NewService(client *apihttp.Client, session Session, snapshot *auth.Snapshot, endpoints auth.Endpoints, logger zerolog.Logger) *Service {
	return &Service{
		client:    client,
		session:   session,
		snapshot:  snapshot,
		endpoints: endpoints,
		logger:    logger,
	}
}

// Get fetches the profile and refreshes the cached user
func (s *Service) Get(ctx context.Context) (*model.User, error) {
	return s.call(ctx, http.MethodGet, nil)
}

// Update saves the given fields and refreshes the cached user
func (s *Service) Update(ctx context.Context, u Update) (*model.User, error) {
	return s.call(ctx, http.MethodPut, u)
}

// Cached returns the last known user without a network call
func (s *Service) Cached(ctx context.Context) (*model.User, bool) {
	user, _, ok := s.snapshot.Cached(ctx)
	return user, ok
}

func (s *Service) call(ctx context.Context, method string, body any) (*model.User, error) {
	current := s.session.Current()
	if !current.Authenticated() {
		return nil, ErrNotSignedIn
	}

	var resp model.ProfileResponse
	err := s.client.Do(ctx, apihttp.Request{
		Method: method,
		Path:   s.endpoints.For(current.Role).Profile(),
		Body:   body,
	}, &resp)
	if err != nil {
		return nil, err
	}

	if err := s.snapshot.SaveUser(ctx, resp.User); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache profile")
	}
	s.session.UpdateUser(resp.User)
	return resp.User, nil
}
