package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/isplink/portal/internal/app"
	"github.com/isplink/portal/internal/config"
	"github.com/isplink/portal/internal/logger"
)

// Globals are the flags and dependencies shared by every command
type Globals struct {
	Debug   bool
	Version string
	Stdin   io.Reader
	Stdout  io.Writer

	// Config and Options replace the environment, used by tests
	Config  *config.Config
	Options *app.Options
}

// open builds and initialises the app for one command
func (g *Globals) open(ctx context.Context) (*app.App, error) {
	cfg := g.Config
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var opts app.Options
	if g.Options != nil {
		opts = *g.Options
	} else {
		opts.Logger = logger.Setup(g.Debug || cfg.Debug)
	}

	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return nil, err
	}
	a.Init(ctx)
	return a, nil
}

func (g *Globals) printf(format string, args ...any) {
	fmt.Fprintf(g.Stdout, format, args...)
}
