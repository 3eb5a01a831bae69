// Package tui renders an auto-connect run in the terminal.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/events"
	"github.com/yllada/ssht-client/vpn"
)

// maxVisibleEntries caps the log lines drawn under the progress bar.
const maxVisibleEntries = 12

// Runner is the part of the engine the view drives.
type Runner interface {
	RunFiltered(ctx context.Context, profiles []bridge.Profile, filter vpn.ProfileFilter) (autoconnect.Result, error)
	Progress() *events.Topic[autoconnect.Progress]
	Log() *autoconnect.Log
}

// Messages

type progressMsg autoconnect.Progress

type doneMsg struct {
	result autoconnect.Result
	err    error
}

// model is the auto-connect Bubble Tea model.
type model struct {
	runner   Runner
	profiles []bridge.Profile
	filter   vpn.ProfileFilter

	ctx     context.Context
	cancel  context.CancelFunc
	updates chan autoconnect.Progress

	spinner  spinner.Model
	bar      progress.Model
	width    int
	started  time.Time
	autoQuit bool

	total    int
	index    int
	current  string
	entries  []autoconnect.Entry
	done     bool
	quitting bool
	result   *autoconnect.Result
	err      error
}

// NewModel builds the view for one run. The run starts on Init.
func NewModel(ctx context.Context, runner Runner, profiles []bridge.Profile, filter vpn.ProfileFilter) model {
	ctx, cancel := context.WithCancel(ctx)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = activeStyle

	return model{
		runner:   runner,
		profiles: profiles,
		filter:   filter,
		ctx:      ctx,
		cancel:   cancel,
		updates:  make(chan autoconnect.Progress, 64),
		spinner:  s,
		bar:      progress.New(progress.WithGradient("#6205D5", "#0EA5E9")),
		started:  time.Now(),
	}
}

// Commands

func (m model) startRun() tea.Cmd {
	return func() tea.Msg {
		res, err := m.runner.RunFiltered(m.ctx, m.profiles, m.filter)
		return doneMsg{result: res, err: err}
	}
}

// waitForProgress delivers the next progress event, or nothing once ctx
// ends so the command does not outlive the run.
func waitForProgress(ctx context.Context, ch <-chan autoconnect.Progress) tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-ch:
			return progressMsg(p)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m model) Init() tea.Cmd {
	updates := m.updates
	token := m.runner.Progress().Subscribe(func(p autoconnect.Progress) {
		select {
		case updates <- p:
		default:
			// the view catches up from the log on the next message
		}
	})
	go func() {
		<-m.ctx.Done()
		m.runner.Progress().Unsubscribe(token)
	}()

	return tea.Batch(
		m.spinner.Tick,
		m.startRun(),
		waitForProgress(m.ctx, m.updates),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(10, min(msg.Width-4, 60))
		return m, nil

	case progressMsg:
		m.apply(autoconnect.Progress(msg))
		return m, waitForProgress(m.ctx, m.updates)

	case doneMsg:
		m.done = true
		m.err = msg.err
		m.result = &msg.result
		m.entries = m.runner.Log().Entries()
		m.cancel()
		if m.autoQuit || m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		m.bar = bar.(progress.Model)
		return m, cmd
	}
	return m, nil
}

func (m *model) apply(p autoconnect.Progress) {
	m.total = p.Total
	m.index = p.Index
	switch p.Phase {
	case autoconnect.PhaseTrialStarted:
		m.current = p.Profile.Name
	case autoconnect.PhaseTrialFinished:
		m.index = p.Index + 1
	case autoconnect.PhaseRunFinished:
		m.current = ""
	}
	m.entries = m.runner.Log().Entries()
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc", "ctrl+c":
		if m.done {
			return m, tea.Quit
		}
		// cancel and wait for the engine to report the cancelled run
		m.quitting = true
		m.cancel()
		return m, nil
	case "enter":
		if m.done {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	return renderView(m)
}

// fraction is the share of candidates already tried.
func (m model) fraction() float64 {
	if m.total == 0 {
		if m.done {
			return 1
		}
		return 0
	}
	return float64(m.index) / float64(m.total)
}
