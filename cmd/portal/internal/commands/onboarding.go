package commands

import "context"

// OnboardingCmd marks the walkthrough done or shows it again
type OnboardingCmd struct {
	Reset bool `help:"Show onboarding again on next start"`
}

func (o *OnboardingCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := globals.open(ctx)
	if err != nil {
		return err
	}
	defer a.Dispose()

	if o.Reset {
		if err := a.Onboarding.Reset(ctx); err != nil {
			return err
		}
		globals.printf("Onboarding reset\n")
		return nil
	}
	if err := a.CompleteOnboarding(ctx); err != nil {
		return err
	}
	globals.printf("Onboarding completed\n")
	return nil
}
