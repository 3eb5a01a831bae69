// Package ui provides the tray indicator and desktop notifications.
// This file contains the system tray indicator functionality.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"fyne.io/systray"
	"go.uber.org/zap"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/events"
	"github.com/yllada/ssht-client/vpn"
)

// TrayOptions configures a TrayIndicator.
type TrayOptions struct {
	// Filter narrows the auto-connect candidates.
	Filter vpn.ProfileFilter
	// Notifier receives connection notifications. Nil disables them.
	Notifier *Notifier
	Logger   *zap.SugaredLogger
}

// TrayIndicator manages the system tray icon and menu.
// It drives the tunnel through a vpn.Manager and runs auto-connect
// through an autoconnect.Engine.
type TrayIndicator struct {
	manager  *vpn.Manager
	engine   *autoconnect.Engine
	notifier *Notifier
	filter   vpn.ProfileFilter
	logger   *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	subs   *events.Group

	statusItem     *systray.MenuItem
	profileItem    *systray.MenuItem
	uptimeItem     *systray.MenuItem
	connectItem    *systray.MenuItem
	disconnectItem *systray.MenuItem
	autoItem       *systray.MenuItem
	cancelItem     *systray.MenuItem
	profilesMenu   *systray.MenuItem

	mu         sync.Mutex
	last       bridge.TunnelState
	uptimeStop chan struct{}
}

// NewTrayIndicator creates a new system tray indicator.
func NewTrayIndicator(manager *vpn.Manager, engine *autoconnect.Engine, opts TrayOptions) *TrayIndicator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TrayIndicator{
		manager:  manager,
		engine:   engine,
		notifier: opts.Notifier,
		filter:   opts.Filter,
		logger:   logger.Named("tray"),
		subs:     &events.Group{},
		last:     bridge.StateDisconnected,
	}
}

// Run shows the tray and blocks until Quit is chosen or ctx is done.
// It must be called from the main goroutine.
func (t *TrayIndicator) Run(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	go func() {
		<-t.ctx.Done()
		systray.Quit()
	}()

	systray.Run(t.onReady, t.onExit)
	return ctx.Err()
}

func (t *TrayIndicator) onReady() {
	systray.SetIcon(iconDisconnected)
	systray.SetTitle(common.AppName)
	systray.SetTooltip(common.AppName + " - Disconnected")

	t.statusItem = systray.AddMenuItem("○  Not Connected", "Tunnel status")
	t.statusItem.Disable()
	t.profileItem = systray.AddMenuItem("    Profile: ---", "Selected profile")
	t.profileItem.Disable()
	t.uptimeItem = systray.AddMenuItem("    Uptime: 00:00:00", "Connection duration")
	t.uptimeItem.Disable()
	t.uptimeItem.Hide()

	systray.AddSeparator()

	t.connectItem = systray.AddMenuItem("Connect", "Start the tunnel with the selected profile")
	t.disconnectItem = systray.AddMenuItem("Disconnect", "Stop the tunnel")
	t.disconnectItem.Hide()
	t.autoItem = systray.AddMenuItem("Auto-connect", "Try every profile until one reaches the internet")
	t.cancelItem = systray.AddMenuItem("Cancel auto-connect", "Stop the running test")
	t.cancelItem.Hide()

	systray.AddSeparator()

	t.profilesMenu = systray.AddMenuItem("Profiles", "Select a profile")
	t.buildProfiles()

	systray.AddSeparator()
	quitItem := systray.AddMenuItem("Quit", "Close "+common.AppName)

	ev := t.manager.Adapter().Events()
	events.Add(t.subs, &ev.VPNState, func(bridge.TunnelState) { t.refresh() })
	events.Add(t.subs, &ev.VPNStopped, func(struct{}) { t.refresh() })
	events.Add(t.subs, &ev.ConfigSelected, func(bridge.Profile) { t.refresh() })
	events.Add(t.subs, t.engine.Progress(), t.onProgress)

	go func() {
		for {
			select {
			case <-t.connectItem.ClickedCh:
				go t.connect()
			case <-t.disconnectItem.ClickedCh:
				go t.disconnect()
			case <-t.autoItem.ClickedCh:
				go t.autoConnect()
			case <-t.cancelItem.ClickedCh:
				t.engine.Cancel()
			case <-quitItem.ClickedCh:
				t.logger.Info("Quit selected from tray menu")
				t.cancel()
				return
			case <-t.ctx.Done():
				return
			}
		}
	}()

	go t.pollState()
	t.refresh()
}

func (t *TrayIndicator) onExit() {
	t.subs.Close()
	t.stopUptimeCounter()
	if t.engine.Running() {
		t.engine.Cancel()
	}
	common.LogInfo("Tray indicator cleanup completed")
}

// pollState catches state changes on hosts that do not push events.
func (t *TrayIndicator) pollState() {
	ticker := time.NewTicker(common.StatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.refresh()
		case <-t.ctx.Done():
			return
		}
	}
}

func (t *TrayIndicator) buildProfiles() {
	profiles := t.manager.ProfileManager().List(t.ctx)
	if len(profiles) == 0 {
		empty := t.profilesMenu.AddSubMenuItem("No profiles", "The host returned no profiles")
		empty.Disable()
		return
	}

	for _, p := range profiles {
		item := t.profilesMenu.AddSubMenuItem(p.Name, fmt.Sprintf("%s (%s)", p.CategoryName, p.Mode))
		go func(p bridge.Profile, item *systray.MenuItem) {
			for {
				select {
				case <-item.ClickedCh:
					t.selectProfile(p)
				case <-t.ctx.Done():
					return
				}
			}
		}(p, item)
	}
}

func (t *TrayIndicator) selectProfile(p bridge.Profile) {
	if _, err := t.manager.SelectProfile(t.ctx, strconv.Itoa(p.ID)); err != nil {
		t.logger.Warnw("Select profile failed", "profile", p.Name, "error", err)
		t.notifier.NotifyError(p.Name, err.Error())
		return
	}
	t.refresh()
}

func (t *TrayIndicator) connect() {
	if err := t.manager.Connect(t.ctx); err != nil {
		t.logger.Warnw("Connect failed", "error", err)
		t.notifier.NotifyError("", err.Error())
	}
	t.refresh()
}

func (t *TrayIndicator) disconnect() {
	if err := t.manager.Disconnect(t.ctx); err != nil && !errors.Is(err, vpn.ErrNotConnected) {
		t.logger.Warnw("Disconnect failed", "error", err)
		t.notifier.NotifyError("", err.Error())
	}
	t.refresh()
}

func (t *TrayIndicator) autoConnect() {
	profiles := t.manager.ProfileManager().List(t.ctx)
	res, err := t.engine.RunFiltered(t.ctx, profiles, t.filter)
	if errors.Is(err, autoconnect.ErrRunInProgress) {
		return
	}
	if err != nil {
		t.logger.Warnw("Auto-connect failed", "error", err)
		t.notifier.NotifyError("", err.Error())
		return
	}
	t.notifier.NotifyAutoConnect(res)
	t.refresh()
}

func (t *TrayIndicator) onProgress(p autoconnect.Progress) {
	switch p.Phase {
	case autoconnect.PhaseRunStarted:
		t.autoItem.Disable()
		t.cancelItem.Show()
	case autoconnect.PhaseTrialStarted:
		t.statusItem.SetTitle(fmt.Sprintf("⟳  Testing %d/%d: %s", p.Index+1, p.Total, p.Profile.Name))
	case autoconnect.PhaseRunFinished:
		t.autoItem.Enable()
		t.cancelItem.Hide()
	}
}

// refresh re-reads the tunnel and redraws the menu.
func (t *TrayIndicator) refresh() {
	if t.ctx.Err() != nil {
		return
	}
	status := t.manager.Status(t.ctx)

	t.mu.Lock()
	old := t.last
	t.last = status.State
	t.mu.Unlock()

	name := ""
	if status.Profile != nil {
		name = status.Profile.Name
	}
	if !t.engine.Running() {
		t.notifier.NotifyTransition(old, status.State, name)
	}

	v := viewFor(status)
	systray.SetIcon(v.Icon)
	systray.SetTooltip(v.Tooltip)
	t.statusItem.SetTitle(v.Status)
	t.profileItem.SetTitle(v.Profile)
	if v.ShowDisconnect {
		t.connectItem.Hide()
		t.disconnectItem.Show()
	} else {
		t.connectItem.Show()
		t.disconnectItem.Hide()
	}

	if status.Connected {
		t.uptimeItem.Show()
		t.startUptimeCounter()
	} else {
		t.uptimeItem.Hide()
		t.stopUptimeCounter()
	}
}

func (t *TrayIndicator) startUptimeCounter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.uptimeStop != nil {
		return
	}
	stop := make(chan struct{})
	t.uptimeStop = stop

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				uptime := t.manager.Connection().GetUptime()
				t.uptimeItem.SetTitle("    Uptime: " + formatUptime(uptime))
			case <-stop:
				return
			}
		}
	}()
}

func (t *TrayIndicator) stopUptimeCounter() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.uptimeStop != nil {
		close(t.uptimeStop)
		t.uptimeStop = nil
	}
}

// trayView is what the tray shows for a tunnel status.
type trayView struct {
	Icon           []byte
	Tooltip        string
	Status         string
	Profile        string
	ShowDisconnect bool
}

func viewFor(s vpn.Status) trayView {
	v := trayView{
		Icon:           IconForState(s.State),
		Profile:        "    Profile: ---",
		ShowDisconnect: s.State.Active(),
	}
	name := ""
	if s.Profile != nil {
		name = s.Profile.Name
		v.Profile = "    Profile: " + name
	}

	switch {
	case s.Connected:
		v.Status = "●  Connected: " + name
		v.Tooltip = fmt.Sprintf("%s - Connected to %s", common.AppName, name)
	case s.Connecting:
		v.Status = "⟳  " + s.State.Label()
		v.Tooltip = fmt.Sprintf("%s - %s", common.AppName, s.State.Label())
	case s.State == bridge.StateAuthFailed || s.State == bridge.StateNoNetwork:
		v.Status = "✕  " + s.State.Label()
		v.Tooltip = fmt.Sprintf("%s - %s", common.AppName, s.State.Label())
	default:
		v.Status = "○  Not Connected"
		v.Tooltip = common.AppName + " - Disconnected"
	}
	return v
}

func formatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
