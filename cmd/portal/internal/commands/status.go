package commands

import (
	"context"
	"time"
)

// StatusCmd prints the restored session
type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Dispose()

	session := a.Auth.Current()
	globals.printf("Device:     %s\n", session.DeviceID)
	globals.printf("Onboarded:  %t\n", session.Onboarded)
	if !session.Authenticated() {
		globals.printf("Signed in:  no\n")
		return nil
	}

	left := time.Duration(a.Tokens.TimeUntilExpiry(ctx)) * time.Second
	globals.printf("Signed in:  yes\n")
	globals.printf("Role:       %s\n", session.Role)
	globals.printf("User:       %s\n", displayName(session.User))
	globals.printf("Expires in: %s\n", left)
	return nil
}
