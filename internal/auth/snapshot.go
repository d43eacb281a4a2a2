package auth

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/model"
	"github.com/isplink/portal/internal/repo"
)

// Snapshot is the persisted copy of the signed in user and role, readable offline
type Snapshot struct {
	kv     repo.KVRepo
	logger zerolog.Logger
}

// NewSnapshot creates a snapshot store on kv
func NewSnapshot(kv repo.KVRepo, logger zerolog.Logger) *Snapshot {
	return &Snapshot{kv: kv, logger: logger}
}

// Save persists user and role together
func (s *Snapshot) Save(ctx context.Context, user *model.User, role model.Role) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.kv.SetMany(ctx, map[string]string{
		KeyUserData: string(data),
		KeyUserType: string(role),
	}); err != nil {
		return fmt.Errorf("failed to persist user snapshot: %w", err)
	}
	return nil
}

// SaveUser replaces the cached user and keeps the role
func (s *Snapshot) SaveUser(ctx context.Context, user *model.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	if err := s.kv.SetMany(ctx, map[string]string{KeyUserData: string(data)}); err != nil {
		return fmt.Errorf("failed to persist user snapshot: %w", err)
	}
	return nil
}

// Cached returns the persisted user and role
func (s *Snapshot) Cached(ctx context.Context) (*model.User, model.Role, bool) {
	values, err := s.kv.GetMany(ctx, KeyUserData, KeyUserType)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read user snapshot")
		return nil, model.RoleNone, false
	}
	raw, ok := values[KeyUserData]
	if !ok {
		return nil, model.RoleNone, false
	}
	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn().Err(err).Msg("discarding unreadable user snapshot")
		return nil, model.RoleNone, false
	}
	role, err := model.ParseRole(values[KeyUserType])
	if err != nil {
		role = model.RoleCustomer
	}
	return &user, role, true
}

// Role returns the persisted role marker, customer when absent or unknown
func (s *Snapshot) Role(ctx context.Context) model.Role {
	v, err := s.kv.Get(ctx, KeyUserType)
	if err != nil {
		return model.RoleCustomer
	}
	role, err := model.ParseRole(v)
	if err != nil {
		s.logger.Warn().Str("role", v).Msg("unknown persisted role, using customer")
		return model.RoleCustomer
	}
	return role
}

// SetRole persists the role marker on its own
func (s *Snapshot) SetRole(ctx context.Context, role model.Role) error {
	return s.kv.SetMany(ctx, map[string]string{KeyUserType: string(role)})
}
