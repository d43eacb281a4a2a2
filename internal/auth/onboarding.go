package auth

import (
	"context"
	"strconv"

	"github.com/isplink/portal/internal/repo"
)

// Onboarding tracks whether the first run walkthrough was completed. It survives logout.
type Onboarding struct {
	kv repo.KVRepo
}

// NewOnboarding creates an Onboarding backed by kv
func NewOnboarding(kv repo.KVRepo) *Onboarding {
	return &Onboarding{kv: kv}
}

// Completed returns false when unset or unreadable
func (o *Onboarding) Completed(ctx context.Context) bool {
	v, err := o.kv.Get(ctx, KeyOnboarding)
	if err != nil {
		return false
	}
	done, _ := strconv.ParseBool(v)
	return done
}

// MarkCompleted records that the walkthrough was finished
func (o *Onboarding) MarkCompleted(ctx context.Context) error {
	return o.kv.SetMany(ctx, map[string]string{KeyOnboarding: "true"})
}

// Reset clears the flag so the walkthrough shows again
func (o *Onboarding) Reset(ctx context.Context) error {
	return o.kv.Delete(ctx, KeyOnboarding)
}
