package main

import (
	"context"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/isplink/portal/cmd/portal/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Login      commands.LoginCmd      `cmd:"" help:"Sign in with a one-time code"`
		Signup     commands.SignupCmd     `cmd:"" help:"Create an account with a one-time code"`
		Status     commands.StatusCmd     `cmd:"" help:"Show the current session"`
		Logout     commands.LogoutCmd     `cmd:"" help:"Sign out and clear local session data"`
		Profile    commands.ProfileCmd    `cmd:"" help:"Show or edit the profile"`
		Onboarding commands.OnboardingCmd `cmd:"" help:"Mark onboarding as done or reset it"`
		Debug      bool                   `help:"Enable debug mode." env:"DEBUG"`
		Version    kong.VersionFlag
	}
)

func main() {
	// Load .env from CWD (env vars override)
	_ = godotenv.Load(".env")

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("portal"),
		kong.Description("ISP portal session client"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
	})
	cmd.FatalIfErrorf(err)
}
