package autoconnect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/events"
	"github.com/yllada/ssht-client/vpn"
)

// ErrRunInProgress is returned when Run is called while another run is active.
var ErrRunInProgress = errors.New("auto-connect already running")

// Trial failure reasons.
const (
	ReasonTimeout    = "timeout"
	ReasonNoInternet = "no internet access"
	ReasonCancelled  = "cancelled"
)

// Host is the part of the bridge the engine drives. *bridge.Adapter implements it.
type Host interface {
	SetActiveProfile(ctx context.Context, id int) error
	StartTunnel(ctx context.Context) error
	StopTunnel(ctx context.Context) error
	TunnelState(ctx context.Context) bridge.TunnelState
}

// Prober checks reachability through the tunnel. *vpn.Prober implements it.
type Prober interface {
	Probe(ctx context.Context) (time.Duration, error)
}

// Settings are the timings of a run.
type Settings struct {
	// ConnectTimeout bounds the wait for CONNECTED per candidate.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// ProbeTimeout bounds the reachability probe.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
	// PollInterval is how often the tunnel state is read.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DefaultSettings returns the stock timings.
func DefaultSettings() Settings {
	return Settings{
		ConnectTimeout: common.ConnectionTimeout,
		ProbeTimeout:   common.ProbeTimeout,
		PollInterval:   common.PollInterval,
	}
}

// Outcome is the result of one trial.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// TrialResult records one candidate attempt.
type TrialResult struct {
	ProfileID   int           `json:"profile_id"`
	ProfileName string        `json:"profile_name"`
	Outcome     Outcome       `json:"outcome"`
	Reason      string        `json:"reason,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Result is what a run returns.
type Result struct {
	// Winner is the profile left connected, or nil.
	Winner    *bridge.Profile `json:"winner,omitempty"`
	Trials    []TrialResult   `json:"trials"`
	Cancelled bool            `json:"cancelled"`
	Duration  time.Duration   `json:"duration"`
}

// Succeeded reports whether a candidate won.
func (r Result) Succeeded() bool {
	return r.Winner != nil
}

// Phase identifies a Progress event.
type Phase int

const (
	PhaseRunStarted Phase = iota
	PhaseTrialStarted
	PhaseTrialFinished
	PhaseRunFinished
)

// Progress is published while a run advances.
type Progress struct {
	Phase   Phase
	Index   int
	Total   int
	Profile bridge.Profile
	Trial   *TrialResult
	Result  *Result
}

// run is the transient state of one Run call.
type run struct {
	candidates []bridge.Profile
	current    int
	cancelled  bool
	winner     *bridge.Profile
	trials     []TrialResult
}

// Engine runs sequential connection trials.
type Engine struct {
	host     Host
	prober   Prober
	settings Settings
	logger   *zap.SugaredLogger
	log      *Log
	progress events.Topic[Progress]

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

// New creates an engine. A nil prober probes common.ProbeURL with
// settings.ProbeTimeout.
func New(host Host, prober Prober, settings Settings, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = common.PollInterval
	}
	if prober == nil {
		prober = vpn.NewProber("", settings.ProbeTimeout)
	}
	return &Engine{
		host:     host,
		prober:   prober,
		settings: settings,
		logger:   logger.Named("autoconnect"),
		log:      NewLog(DefaultLogCapacity),
	}
}

// Log returns the engine's run log.
func (e *Engine) Log() *Log {
	return e.log
}

// Progress returns the topic progress events are published on.
func (e *Engine) Progress() *events.Topic[Progress] {
	return &e.progress
}

// Settings returns the engine timings.
func (e *Engine) Settings() Settings {
	return e.settings
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Cancel cancels the active run, if any.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
	}
}

// RunFiltered applies filter to profiles and runs the remaining candidates.
func (e *Engine) RunFiltered(ctx context.Context, profiles []bridge.Profile, filter vpn.ProfileFilter) (Result, error) {
	candidates := filter.Apply(profiles)
	return e.run(ctx, candidates, startMessage(len(candidates), filter))
}

// Run tries candidates in order.
func (e *Engine) Run(ctx context.Context, candidates []bridge.Profile) (Result, error) {
	return e.run(ctx, candidates, startMessage(len(candidates), vpn.ProfileFilter{}))
}

func startMessage(n int, f vpn.ProfileFilter) string {
	var parts []string
	if len(f.Categories) > 0 {
		parts = append(parts, fmt.Sprintf("%d category(s)", len(f.Categories)))
	}
	if f.Type != "" && f.Type != common.ConfigTypeAll {
		parts = append(parts, "type: "+strings.ToUpper(f.Type))
	}
	if len(parts) > 0 {
		return fmt.Sprintf("Starting test with %d filtered profiles (%s)", n, strings.Join(parts, ", "))
	}
	return fmt.Sprintf("Starting test with %d profiles", n)
}

func (e *Engine) run(ctx context.Context, candidates []bridge.Profile, message string) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return Result{}, ErrRunInProgress
	}
	e.running = true
	e.cancel = cancel
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.cancel = nil
		e.mu.Unlock()
	}()

	started := time.Now()
	r := &run{candidates: candidates}

	e.log.Clear()
	e.log.System(StatusTesting, message)
	e.logger.Infow("auto-connect started", "candidates", len(candidates))
	e.progress.Publish(Progress{Phase: PhaseRunStarted, Total: len(candidates)})

	for i, p := range r.candidates {
		if ctx.Err() != nil {
			r.cancelled = true
			break
		}
		r.current = i

		e.progress.Publish(Progress{Phase: PhaseTrialStarted, Index: i, Total: len(candidates), Profile: p})
		entry := e.log.Add(Entry{Source: p.Name, Status: StatusConnecting, Message: "Starting connection..."})

		trial, cancelled := e.trial(ctx, p)
		e.finishEntry(entry, trial)
		r.trials = append(r.trials, trial)
		e.progress.Publish(Progress{Phase: PhaseTrialFinished, Index: i, Total: len(candidates), Profile: p, Trial: &trial})

		if cancelled {
			r.cancelled = true
			break
		}
		if trial.Outcome == OutcomeSuccess {
			winner := p
			r.winner = &winner
			break
		}
	}

	result := Result{
		Winner:    r.winner,
		Trials:    r.trials,
		Cancelled: r.cancelled,
		Duration:  time.Since(started),
	}

	switch {
	case result.Winner != nil:
		e.log.System(StatusSuccess, "Test finished successfully: "+result.Winner.Name)
		e.logger.Infow("auto-connect succeeded", "profile", result.Winner.Name, "trials", len(result.Trials))
	case result.Cancelled:
		e.log.System(StatusCancelled, "Test cancelled by user")
		e.logger.Infow("auto-connect cancelled", "trials", len(result.Trials))
	default:
		e.log.System(StatusFailed, "Test finished - no profile worked")
		e.logger.Infow("auto-connect found no working profile", "trials", len(result.Trials))
	}
	e.progress.Publish(Progress{Phase: PhaseRunFinished, Index: r.current, Total: len(candidates), Result: &result})

	return result, nil
}

// trial runs one candidate. The tunnel is stopped on every path except
// success and cancellation.
func (e *Engine) trial(ctx context.Context, p bridge.Profile) (TrialResult, bool) {
	started := time.Now()
	result := TrialResult{ProfileID: p.ID, ProfileName: p.Name, Outcome: OutcomeFailure}
	done := func(reason string) TrialResult {
		result.Reason = reason
		result.Duration = time.Since(started)
		return result
	}

	if err := e.host.SetActiveProfile(ctx, p.ID); err != nil {
		if ctx.Err() != nil {
			return done(ReasonCancelled), true
		}
		e.stop(ctx, p)
		return done(err.Error()), false
	}
	if ctx.Err() != nil {
		return done(ReasonCancelled), true
	}

	if err := e.host.StartTunnel(ctx); err != nil {
		if ctx.Err() != nil {
			return done(ReasonCancelled), true
		}
		e.logger.Debugw("start tunnel failed", "profile", p.Name, "error", err)
		e.stop(ctx, p)
		return done(err.Error()), false
	}

	err := vpn.WaitForState(ctx, e.host, bridge.StateConnected, e.settings.PollInterval, e.settings.ConnectTimeout)
	if ctx.Err() != nil {
		return done(ReasonCancelled), true
	}
	if err != nil {
		reason := err.Error()
		if errors.Is(err, common.ErrTimeout) {
			reason = ReasonTimeout
		}
		e.stop(ctx, p)
		return done(reason), false
	}

	_, err = e.prober.Probe(ctx)
	if ctx.Err() != nil {
		return done(ReasonCancelled), true
	}
	if err != nil {
		e.logger.Debugw("reachability probe failed", "profile", p.Name, "error", err)
		e.stop(ctx, p)
		return done(ReasonNoInternet), false
	}

	result.Outcome = OutcomeSuccess
	return done(""), false
}

func (e *Engine) stop(ctx context.Context, p bridge.Profile) {
	if err := e.host.StopTunnel(ctx); err != nil {
		e.logger.Warnw("stop tunnel failed", "profile", p.Name, "error", err)
	}
}

func (e *Engine) finishEntry(entry Entry, trial TrialResult) {
	status, message := StatusFailed, trial.Reason
	switch {
	case trial.Outcome == OutcomeSuccess:
		status, message = StatusSuccess, "Connection successful"
	case trial.Reason == ReasonTimeout:
		status, message = StatusTimeout, "VPN connection failed"
	case trial.Reason == ReasonNoInternet:
		message = "No internet access"
	case trial.Reason == ReasonCancelled:
		status, message = StatusCancelled, "Cancelled by user"
	}
	e.log.Update(entry.ID, status, message, trial.Duration)
}
