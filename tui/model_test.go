package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/events"
	"github.com/yllada/ssht-client/vpn"
)

type fakeRunner struct {
	topic  events.Topic[autoconnect.Progress]
	log    *autoconnect.Log
	result autoconnect.Result
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{log: autoconnect.NewLog(0)}
}

func (f *fakeRunner) RunFiltered(ctx context.Context, profiles []bridge.Profile, filter vpn.ProfileFilter) (autoconnect.Result, error) {
	return f.result, nil
}

func (f *fakeRunner) Progress() *events.Topic[autoconnect.Progress] { return &f.topic }

func (f *fakeRunner) Log() *autoconnect.Log { return f.log }

var testProfiles = []bridge.Profile{{ID: 1, Name: "SSH Direct"}, {ID: 2, Name: "VLESS WS"}}

func TestModelInit(t *testing.T) {
	r := newFakeRunner()
	m := NewModel(context.Background(), r, testProfiles, vpn.ProfileFilter{})
	defer m.cancel()

	assert.NotNil(t, m.Init())
	assert.Equal(t, 1, r.topic.Len())

	m.cancel()
	assert.Eventually(t, func() bool { return r.topic.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestModelProgress(t *testing.T) {
	r := newFakeRunner()
	r.log.Add(autoconnect.Entry{Source: "SSH Direct", Status: autoconnect.StatusConnecting, Message: "Starting connection..."})
	m := NewModel(context.Background(), r, testProfiles, vpn.ProfileFilter{})
	defer m.cancel()

	next, cmd := m.Update(progressMsg{Phase: autoconnect.PhaseTrialStarted, Index: 0, Total: 2, Profile: testProfiles[0]})
	m = next.(model)
	assert.NotNil(t, cmd)
	assert.Equal(t, "SSH Direct", m.current)
	assert.Len(t, m.entries, 1)
	assert.Zero(t, m.fraction())
	assert.Contains(t, m.View(), "Testing 1/2")

	trial := autoconnect.TrialResult{ProfileID: 1, Outcome: autoconnect.OutcomeFailure, Reason: autoconnect.ReasonTimeout}
	next, _ = m.Update(progressMsg{Phase: autoconnect.PhaseTrialFinished, Index: 0, Total: 2, Profile: testProfiles[0], Trial: &trial})
	m = next.(model)
	assert.Equal(t, 0.5, m.fraction())
}

func TestModelDone(t *testing.T) {
	r := newFakeRunner()
	winner := testProfiles[1]
	m := NewModel(context.Background(), r, testProfiles, vpn.ProfileFilter{})

	next, cmd := m.Update(doneMsg{result: autoconnect.Result{Winner: &winner, Trials: make([]autoconnect.TrialResult, 2)}})
	m = next.(model)
	assert.Nil(t, cmd)
	assert.True(t, m.done)
	assert.Error(t, m.ctx.Err())
	assert.Contains(t, m.View(), "Connected with VLESS WS")
	assert.Contains(t, m.View(), "enter/q: exit")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestWaitForProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan autoconnect.Progress, 1)

	ch <- autoconnect.Progress{Phase: autoconnect.PhaseTrialStarted, Total: 2}
	msg := waitForProgress(ctx, ch)()
	assert.Equal(t, progressMsg{Phase: autoconnect.PhaseTrialStarted, Total: 2}, msg)

	got := make(chan tea.Msg, 1)
	go func() { got <- waitForProgress(ctx, ch)() }()
	cancel()

	select {
	case msg := <-got:
		assert.Nil(t, msg)
	case <-time.After(time.Second):
		t.Fatal("waitForProgress still blocked after the run ended")
	}
}

func TestModelAutoQuit(t *testing.T) {
	m := NewModel(context.Background(), newFakeRunner(), nil, vpn.ProfileFilter{})
	m.autoQuit = true

	_, cmd := m.Update(doneMsg{result: autoconnect.Result{}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestModelCancelKey(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	}
	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			m := NewModel(context.Background(), newFakeRunner(), testProfiles, vpn.ProfileFilter{})

			next, cmd := m.Update(key)
			m = next.(model)
			assert.Nil(t, cmd)
			assert.True(t, m.quitting)
			assert.ErrorIs(t, m.ctx.Err(), context.Canceled)
			assert.Contains(t, m.View(), "Cancelling")

			// the cancelled run still reports before the program quits
			_, cmd = m.Update(doneMsg{result: autoconnect.Result{Cancelled: true}})
			require.NotNil(t, cmd)
			assert.IsType(t, tea.QuitMsg{}, cmd())
		})
	}
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name   string
		result autoconnect.Result
		want   string
	}{
		{"cancelled", autoconnect.Result{Cancelled: true}, "Test cancelled"},
		{"exhausted", autoconnect.Result{Trials: make([]autoconnect.TrialResult, 3)}, "No profile worked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := model{done: true, result: &tt.result}
			assert.Contains(t, renderResult(m), tt.want)
		})
	}
}

func TestRenderEntriesLimit(t *testing.T) {
	var entries []autoconnect.Entry
	for i := range 20 {
		entries = append(entries, autoconnect.Entry{ID: i, Source: "P", Status: autoconnect.StatusFailed, Message: "msg"})
	}
	out := renderEntries(entries, 5)
	assert.Equal(t, 5, strings.Count(out, "\n"))

	assert.Contains(t, renderEntries(nil, 5), "Waiting")
}
