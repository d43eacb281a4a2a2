package commands

import "context"

// LogoutCmd ends the session on the backend and locally
type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Dispose()

	if a.Auth.Logout(ctx) {
		globals.printf("Signed out\n")
	} else {
		globals.printf("Signed out on this device\n")
	}
	return nil
}
