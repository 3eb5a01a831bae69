package autoconnect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/vpn"
)

// behavior scripts how the fake host treats one profile.
type behavior struct {
	connects  bool
	reachable bool
	startErr  error
}

type fakeHost struct {
	mu        sync.Mutex
	behaviors map[int]behavior
	active    int
	up        bool
	calls     []string
	reads     int
	starts    int
	onStart   func(n int)
}

func newFakeHost(behaviors map[int]behavior) *fakeHost {
	return &fakeHost{behaviors: behaviors}
}

func (h *fakeHost) SetActiveProfile(_ context.Context, id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active = id
	h.calls = append(h.calls, fmt.Sprintf("select:%d", id))
	return nil
}

func (h *fakeHost) StartTunnel(context.Context) error {
	h.mu.Lock()
	h.starts++
	n := h.starts
	h.calls = append(h.calls, fmt.Sprintf("start:%d", h.active))
	b := h.behaviors[h.active]
	if b.startErr == nil {
		h.up = true
	}
	hook := h.onStart
	h.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return b.startErr
}

func (h *fakeHost) StopTunnel(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.up = false
	h.calls = append(h.calls, fmt.Sprintf("stop:%d", h.active))
	return nil
}

func (h *fakeHost) TunnelState(context.Context) bridge.TunnelState {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reads++
	if h.up && h.behaviors[h.active].connects {
		return bridge.StateConnected
	}
	return bridge.StateConnecting
}

func (h *fakeHost) Probe(context.Context) (time.Duration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.behaviors[h.active].reachable {
		return time.Millisecond, nil
	}
	return 0, common.ErrConnectionFailed
}

func (h *fakeHost) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func profiles(n int) []bridge.Profile {
	out := make([]bridge.Profile, n)
	for i := range out {
		out[i] = bridge.Profile{ID: i + 1, Name: fmt.Sprintf("P%d", i+1), Mode: "SSH_DIRECT"}
	}
	return out
}

func fastSettings() Settings {
	return Settings{
		ConnectTimeout: 20 * time.Millisecond,
		ProbeTimeout:   20 * time.Millisecond,
		PollInterval:   time.Millisecond,
	}
}

func newEngine(h *fakeHost, s Settings) *Engine {
	return New(h, h, s, nil)
}

// startedIDs lists the profile ids passed to start, in order.
func startedIDs(calls []string) []string {
	var ids []string
	for _, c := range calls {
		if strings.HasPrefix(c, "start:") {
			ids = append(ids, strings.TrimPrefix(c, "start:"))
		}
	}
	return ids
}

// assertStopBeforeNextStart checks that every start except an optional
// final winner is followed by a stop before the next start.
func assertStopBeforeNextStart(t assert.TestingT, calls []string, winner bool) {
	open := false
	for i, c := range calls {
		switch {
		case strings.HasPrefix(c, "start:"):
			assert.False(t, open, "start without stop before it at call %d: %v", i, calls)
			open = true
		case strings.HasPrefix(c, "stop:"):
			open = false
		}
	}
	if winner {
		assert.True(t, open, "winning tunnel must stay up: %v", calls)
	}
}

func TestScenarioOnlySecondWorks(t *testing.T) {
	h := newFakeHost(map[int]behavior{
		1: {connects: false},
		2: {connects: true, reachable: true},
		3: {connects: true, reachable: true},
	})

	result, err := newEngine(h, fastSettings()).Run(context.Background(), profiles(3))
	require.NoError(t, err)

	require.NotNil(t, result.Winner)
	assert.Equal(t, "P2", result.Winner.Name)
	assert.False(t, result.Cancelled)
	require.Len(t, result.Trials, 2)
	assert.Equal(t, OutcomeFailure, result.Trials[0].Outcome)
	assert.Equal(t, ReasonTimeout, result.Trials[0].Reason)
	assert.Equal(t, OutcomeSuccess, result.Trials[1].Outcome)

	assert.Equal(t, []string{"select:1", "start:1", "stop:1", "select:2", "start:2"}, h.Calls())
}

func TestEmptyCandidateList(t *testing.T) {
	h := newFakeHost(nil)
	e := newEngine(h, fastSettings())

	result, err := e.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.False(t, result.Succeeded())
	assert.Empty(t, result.Trials)
	assert.Empty(t, h.Calls())

	entries := e.Log().Entries()
	require.NotEmpty(t, entries)
	assert.True(t, entries[0].System())
	assert.Equal(t, "Starting test with 0 profiles", entries[0].Message)
	for _, entry := range entries {
		assert.True(t, entry.System(), "only system messages expected, got %+v", entry)
	}
}

func TestZeroConnectTimeout(t *testing.T) {
	h := newFakeHost(map[int]behavior{
		1: {connects: true, reachable: true},
		2: {connects: true, reachable: true},
	})
	s := fastSettings()
	s.ConnectTimeout = 0

	result, err := newEngine(h, s).Run(context.Background(), profiles(2))
	require.NoError(t, err)

	assert.Nil(t, result.Winner)
	require.Len(t, result.Trials, 2)
	for _, tr := range result.Trials {
		assert.Equal(t, ReasonTimeout, tr.Reason)
	}
	assert.Zero(t, h.reads, "state must never be observed")
	assertStopBeforeNextStart(t, h.Calls(), false)
}

func TestNoInternetStopsTunnel(t *testing.T) {
	h := newFakeHost(map[int]behavior{1: {connects: true, reachable: false}})

	result, err := newEngine(h, fastSettings()).Run(context.Background(), profiles(1))
	require.NoError(t, err)

	require.Len(t, result.Trials, 1)
	assert.Equal(t, ReasonNoInternet, result.Trials[0].Reason)
	assert.Equal(t, []string{"select:1", "start:1", "stop:1"}, h.Calls())
}

func TestStartErrorIsRecordedAndRunContinues(t *testing.T) {
	h := newFakeHost(map[int]behavior{
		1: {startErr: errors.New("bridge offline")},
		2: {connects: true, reachable: true},
	})

	result, err := newEngine(h, fastSettings()).Run(context.Background(), profiles(2))
	require.NoError(t, err)

	require.Len(t, result.Trials, 2)
	assert.Equal(t, "bridge offline", result.Trials[0].Reason)
	require.NotNil(t, result.Winner)
	assert.Equal(t, 2, result.Winner.ID)
	assert.Equal(t, []string{"select:1", "start:1", "stop:1", "select:2", "start:2"}, h.Calls())
}

func TestCancelDuringTrial(t *testing.T) {
	h := newFakeHost(map[int]behavior{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.onStart = func(n int) {
		if n == 2 {
			cancel()
		}
	}

	result, err := newEngine(h, fastSettings()).Run(ctx, profiles(4))
	require.NoError(t, err)

	assert.True(t, result.Cancelled)
	assert.Nil(t, result.Winner)
	require.Len(t, result.Trials, 2)
	assert.Equal(t, ReasonCancelled, result.Trials[1].Reason)

	// no stop for the cancelled trial and no further starts
	assert.Equal(t, []string{"select:1", "start:1", "stop:1", "select:2", "start:2"}, h.Calls())
}

func TestCancelBeforeRun(t *testing.T) {
	h := newFakeHost(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newEngine(h, fastSettings()).Run(ctx, profiles(3))
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Empty(t, result.Trials)
	assert.Empty(t, h.Calls())
}

func TestEngineCancel(t *testing.T) {
	h := newFakeHost(map[int]behavior{})
	s := fastSettings()
	s.ConnectTimeout = 5 * time.Second
	e := newEngine(h, s)

	h.onStart = func(int) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			e.Cancel()
		}()
	}

	result, err := e.Run(context.Background(), profiles(3))
	require.NoError(t, err)
	assert.True(t, result.Cancelled)
	assert.Len(t, startedIDs(h.Calls()), 1)
	assert.False(t, e.Running())
}

func TestRunInProgress(t *testing.T) {
	h := newFakeHost(map[int]behavior{})
	e := newEngine(h, fastSettings())

	release := make(chan struct{})
	entered := make(chan struct{})
	h.onStart = func(n int) {
		if n == 1 {
			close(entered)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.Run(context.Background(), profiles(1))
	}()

	<-entered
	_, err := e.Run(context.Background(), profiles(1))
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.True(t, e.Running())

	close(release)
	<-done
	assert.False(t, e.Running())
}

func TestRunFilteredMessageAndOrder(t *testing.T) {
	h := newFakeHost(map[int]behavior{})
	e := newEngine(h, fastSettings())

	all := []bridge.Profile{
		{ID: 1, Name: "A", Mode: "SSH_DIRECT", CategoryID: 1},
		{ID: 2, Name: "B", Mode: "V2RAY_VLESS", CategoryID: 1},
		{ID: 3, Name: "C", Mode: "SSH_PROXY", CategoryID: 2},
	}
	filter := vpn.ProfileFilter{Categories: []int{1, 2}, Type: common.ConfigTypeSSH}

	result, err := e.RunFiltered(context.Background(), all, filter)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "3"}, startedIDs(h.Calls()))
	assert.Len(t, result.Trials, 2)

	entries := e.Log().Entries()
	assert.Equal(t, "Starting test with 2 filtered profiles (2 category(s), type: SSH)", entries[0].Message)
	last := entries[len(entries)-1]
	assert.True(t, last.System())
	assert.Equal(t, StatusFailed, last.Status)
}

func TestLogEntriesPerTrial(t *testing.T) {
	h := newFakeHost(map[int]behavior{
		1: {connects: true},
		2: {connects: true, reachable: true},
	})
	e := newEngine(h, fastSettings())

	_, err := e.Run(context.Background(), profiles(2))
	require.NoError(t, err)

	entries := e.Log().Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, "P1", entries[1].Source)
	assert.Equal(t, StatusFailed, entries[1].Status)
	assert.Equal(t, "No internet access", entries[1].Message)
	assert.Equal(t, StatusSuccess, entries[2].Status)
	assert.Equal(t, "Test finished successfully: P2", entries[3].Message)
}

func TestProgressEvents(t *testing.T) {
	h := newFakeHost(map[int]behavior{2: {connects: true, reachable: true}})
	e := newEngine(h, fastSettings())

	var phases []Phase
	var final *Result
	e.Progress().Subscribe(func(p Progress) {
		phases = append(phases, p.Phase)
		if p.Phase == PhaseRunFinished {
			final = p.Result
		}
	})

	_, err := e.Run(context.Background(), profiles(3))
	require.NoError(t, err)

	assert.Equal(t, []Phase{
		PhaseRunStarted,
		PhaseTrialStarted, PhaseTrialFinished,
		PhaseTrialStarted, PhaseTrialFinished,
		PhaseRunFinished,
	}, phases)
	require.NotNil(t, final)
	assert.Equal(t, 2, final.Winner.ID)
}

func TestLogCapacity(t *testing.T) {
	l := NewLog(3)
	for i := 0; i < 5; i++ {
		l.System(StatusTesting, fmt.Sprint(i))
	}

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "2", entries[0].Message)
	assert.Equal(t, 5, entries[2].ID)
	assert.False(t, l.Update(1, StatusFailed, "gone", 0))
	assert.True(t, l.Update(5, StatusFailed, "updated", time.Second))
	assert.Equal(t, "updated", l.Entries()[2].Message)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 10*time.Second, s.ConnectTimeout)
	assert.Equal(t, 4*time.Second, s.ProbeTimeout)
	assert.Equal(t, 500*time.Millisecond, s.PollInterval)
}

// Property: with no reachable candidate every profile is tried once, in
// order, each trial is torn down, and the run fails.
func TestPropertyAllFail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 6).Draw(t, "n")
		connects := rapid.SliceOfN(rapid.Bool(), n, n).Draw(t, "connects")

		behaviors := map[int]behavior{}
		for i, c := range connects {
			behaviors[i+1] = behavior{connects: c}
		}
		h := newFakeHost(behaviors)
		s := fastSettings()
		s.ConnectTimeout = 3 * time.Millisecond

		result, err := newEngine(h, s).Run(context.Background(), profiles(n))
		require.NoError(t, err)

		assert.Nil(t, result.Winner)
		assert.False(t, result.Cancelled)
		require.Len(t, result.Trials, n)

		want := make([]string, n)
		for i := range want {
			want[i] = fmt.Sprint(i + 1)
			assert.Equal(t, i+1, result.Trials[i].ProfileID)
		}
		if n == 0 {
			want = nil
		}
		assert.Equal(t, want, startedIDs(h.Calls()))
		assertStopBeforeNextStart(t, h.Calls(), false)
	})
}

// Property: when index k is the first reachable candidate the run makes
// exactly k+1 trials, returns candidate k and never starts k+1.
func TestPropertyFirstReachableWins(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		k := rapid.IntRange(0, n-1).Draw(t, "k")

		behaviors := map[int]behavior{}
		for i := 0; i < n; i++ {
			switch {
			case i == k:
				behaviors[i+1] = behavior{connects: true, reachable: true}
			case i < k:
				behaviors[i+1] = behavior{connects: rapid.Bool().Draw(t, fmt.Sprintf("connects%d", i))}
			default:
				behaviors[i+1] = behavior{connects: true, reachable: rapid.Bool().Draw(t, fmt.Sprintf("reachable%d", i))}
			}
		}
		h := newFakeHost(behaviors)
		s := fastSettings()
		s.ConnectTimeout = 3 * time.Millisecond

		result, err := newEngine(h, s).Run(context.Background(), profiles(n))
		require.NoError(t, err)

		require.NotNil(t, result.Winner)
		assert.Equal(t, k+1, result.Winner.ID)
		assert.Len(t, result.Trials, k+1)
		assert.Len(t, startedIDs(h.Calls()), k+1)
		assertStopBeforeNextStart(t, h.Calls(), true)
	})
}

// Property: once cancellation is requested no further start is issued.
func TestPropertyCancellationStopsProgress(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		cancelAt := rapid.IntRange(1, n).Draw(t, "cancelAt")

		h := newFakeHost(map[int]behavior{})
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.onStart = func(i int) {
			if i == cancelAt {
				cancel()
			}
		}
		s := fastSettings()
		s.ConnectTimeout = 3 * time.Millisecond

		result, err := newEngine(h, s).Run(ctx, profiles(n))
		require.NoError(t, err)

		assert.True(t, result.Cancelled)
		assert.Nil(t, result.Winner)
		calls := h.Calls()
		assert.Len(t, startedIDs(calls), cancelAt)
		assert.Equal(t, fmt.Sprintf("start:%d", cancelAt), calls[len(calls)-1])
	})
}
