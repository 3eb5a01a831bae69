package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/vpn"
)

// Options tweak the program.
type Options struct {
	// AutoQuit leaves as soon as the run ends.
	AutoQuit bool
	// AltScreen draws on the terminal's alternate screen.
	AltScreen bool
}

// Run shows a run of profiles until it finishes and the user leaves.
func Run(ctx context.Context, runner Runner, profiles []bridge.Profile, filter vpn.ProfileFilter, opts Options) (autoconnect.Result, error) {
	m := NewModel(ctx, runner, profiles, filter)
	m.autoQuit = opts.AutoQuit
	defer m.cancel()

	var progOpts []tea.ProgramOption
	if opts.AltScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	progOpts = append(progOpts, tea.WithContext(ctx))

	final, err := tea.NewProgram(m, progOpts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return autoconnect.Result{Cancelled: true}, ctx.Err()
	}
	if err != nil {
		return autoconnect.Result{}, fmt.Errorf("TUI error: %w", err)
	}

	fm, ok := final.(model)
	if !ok || fm.result == nil {
		return autoconnect.Result{Cancelled: true}, nil
	}
	return *fm.result, fm.err
}
