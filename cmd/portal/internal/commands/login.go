package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/isplink/portal/internal/app"
	apihttp "github.com/isplink/portal/internal/http"
	"github.com/isplink/portal/internal/model"
)

const maxCodeAttempts = 3

// LoginCmd signs in with a one time code
type LoginCmd struct {
	Identifier string `arg:"" help:"Phone number or email"`
	Role       string `help:"Account type" default:"customer" enum:"customer,staff"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	return authenticate(ctx, globals, model.Role(l.Role), model.FlowSignIn, l.Identifier, nil)
}

// SignupCmd creates an account with a one time code
type SignupCmd struct {
	Identifier string `arg:"" help:"Phone number or email"`
	Name       string `help:"Full name" required:""`
	Role       string `help:"Account type" default:"customer" enum:"customer,staff"`
}

func (s *SignupCmd) Run(ctx context.Context, globals *Globals) error {
	return authenticate(ctx, globals, model.Role(s.Role), model.FlowSignUp, s.Identifier, map[string]string{"name": s.Name})
}

func authenticate(ctx context.Context, globals *Globals, role model.Role, flow model.Flow, identifier string, extra map[string]string) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Dispose()

	if current := a.Auth.Current(); current.Authenticated() {
		return fmt.Errorf("already signed in as %s, run logout first", current.Role)
	}

	if err := a.Auth.SendOTP(ctx, role, flow, identifier, extra); err != nil {
		return errors.New(apihttp.Message(err))
	}

	session, err := verifyFromInput(ctx, a, globals)
	if err != nil {
		return err
	}

	a.WaitBackground()
	globals.printf("Signed in as %s (%s)\n", displayName(session.User), session.Role)
	return nil
}

func verifyFromInput(ctx context.Context, a *app.App, globals *Globals) (model.Session, error) {
	reader := bufio.NewReader(globals.Stdin)
	for attempt := 1; ; attempt++ {
		globals.printf("Enter the code we sent you: ")
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			a.Auth.Cancel()
			return model.Session{}, fmt.Errorf("failed to read code: %w", err)
		}

		session, err := a.Auth.VerifyOTP(ctx, strings.TrimSpace(line))
		if err == nil {
			return session, nil
		}
		if apihttp.KindOf(err) != apihttp.KindValidation || attempt == maxCodeAttempts {
			a.Auth.Cancel()
			return model.Session{}, errors.New(apihttp.Message(err))
		}
		globals.printf("%s, try again\n", apihttp.Message(err))
	}
}

func displayName(u *model.User) string {
	switch {
	case u == nil:
		return "unknown user"
	case u.Name != "":
		return u.Name
	case u.Phone != "":
		return u.Phone
	case u.Email != "":
		return u.Email
	default:
		return u.ID
	}
}
