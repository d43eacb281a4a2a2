package commands

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/isplink/portal/internal/account"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
)

// ProfileCmd shows or updates the signed in user
type ProfileCmd struct {
	Name  string `help:"New full name"`
	Email string `help:"New email address"`
}

func (p *ProfileCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Dispose()

	var update account.Update
	if p.Name != "" {
		update.Name = &p.Name
	}
	if p.Email != "" {
		update.Email = &p.Email
	}

	var user *model.User
	if update.Name != nil || update.Email != nil {
		user, err = a.Account.Update(ctx, update)
	} else {
		user, err = a.Account.Get(ctx)
	}
	if err != nil {
		if errors.Is(err, apihttp.ErrNetworkUnavailable) {
			if cached, ok := a.Account.Cached(ctx); ok {
				globals.printf("(offline, showing cached profile)\n")
				user, err = cached, nil
			}
		}
		if err != nil {
			return errors.New(apihttp.Message(err))
		}
	}

	out, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	globals.printf("%s\n", out)
	return nil
}
