// Package vpn provides VPN connection management functionality.
// This file contains the Manager type which drives the host tunnel.
package vpn

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/events"
)

// Common errors - re-exported from common package for convenience.
var (
	ErrAlreadyConnected = common.ErrAlreadyConnected
	ErrNotConnected     = common.ErrNotConnected
	ErrConnectionFailed = common.ErrConnectionFailed
)

// ConnectionStatus is a coarse view of the tunnel state.
type ConnectionStatus int

const (
	// StatusDisconnected indicates no active connection.
	StatusDisconnected ConnectionStatus = iota
	// StatusConnecting indicates a connection is being established.
	StatusConnecting
	// StatusConnected indicates an active, established connection.
	StatusConnected
	// StatusDisconnecting indicates the connection is being terminated.
	StatusDisconnecting
	// StatusError indicates the connection failed or encountered an error.
	StatusError
)

// String returns a human-readable representation of the connection status.
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "Disconnected"
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnecting:
		return "Disconnecting..."
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// StatusFromState maps a host tunnel state to a ConnectionStatus.
func StatusFromState(s bridge.TunnelState) ConnectionStatus {
	switch s {
	case bridge.StateConnecting, bridge.StateAuth:
		return StatusConnecting
	case bridge.StateConnected:
		return StatusConnected
	case bridge.StateStopping:
		return StatusDisconnecting
	case bridge.StateNoNetwork, bridge.StateAuthFailed:
		return StatusError
	default:
		return StatusDisconnected
	}
}

// Connection is a snapshot of the host tunnel.
type Connection struct {
	// Profile is the profile the tunnel was started with, if known.
	Profile *bridge.Profile
	// State is the last state reported by the host.
	State bridge.TunnelState
	// Status is the coarse status derived from State.
	Status ConnectionStatus
	// StartTime is when the tunnel reached CONNECTED.
	StartTime time.Time
	// LastError is set when the tunnel failed.
	LastError string
}

// GetUptime returns how long the tunnel has been connected.
func (c Connection) GetUptime() time.Duration {
	if c.Status != StatusConnected || c.StartTime.IsZero() {
		return 0
	}
	return time.Since(c.StartTime)
}

// GetStatus returns the coarse connection status.
func (c Connection) GetStatus() ConnectionStatus {
	return c.Status
}

// Status is what the UI shows for the tunnel.
type Status struct {
	State      bridge.TunnelState `json:"state"`
	Label      string             `json:"label"`
	Connected  bool               `json:"connected"`
	Connecting bool               `json:"connecting"`
	Error      string             `json:"error,omitempty"`
	Profile    *bridge.Profile    `json:"profile,omitempty"`
	Uptime     time.Duration      `json:"uptime"`
}

// Manager drives the host tunnel for the active profile.
type Manager struct {
	adapter        *bridge.Adapter
	profileManager *ProfileManager
	subs           *events.Group

	mu   sync.RWMutex
	conn Connection
}

// NewManager creates a manager and starts tracking host tunnel events.
func NewManager(adapter *bridge.Adapter) *Manager {
	m := &Manager{
		adapter:        adapter,
		profileManager: NewProfileManager(adapter),
		subs:           &events.Group{},
		conn:           Connection{State: bridge.StateDisconnected},
	}

	ev := adapter.Events()
	events.Add(m.subs, &ev.VPNState, m.setState)
	events.Add(m.subs, &ev.VPNStarted, func(struct{}) { m.setState(bridge.StateConnected) })
	events.Add(m.subs, &ev.VPNStopped, func(struct{}) { m.setState(bridge.StateDisconnected) })
	events.Add(m.subs, &ev.ConfigSelected, func(p bridge.Profile) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !m.conn.State.Active() {
			m.conn.Profile = &p
		}
	})
	return m
}

// Adapter returns the underlying bridge adapter.
func (m *Manager) Adapter() *bridge.Adapter {
	return m.adapter
}

// ProfileManager returns the associated profile manager.
func (m *Manager) ProfileManager() *ProfileManager {
	return m.profileManager
}

// Close stops tracking host events.
func (m *Manager) Close() {
	m.subs.Close()
}

func (m *Manager) setState(s bridge.TunnelState) {
	if s == bridge.StateUnknown {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn.State == s {
		return
	}
	old := m.conn.State
	m.conn.State = s
	m.conn.Status = StatusFromState(s)

	switch s {
	case bridge.StateConnected:
		m.conn.StartTime = time.Now()
		m.conn.LastError = ""
	case bridge.StateAuthFailed, bridge.StateNoNetwork:
		m.conn.LastError = s.Label()
		m.conn.StartTime = time.Time{}
	case bridge.StateDisconnected:
		m.conn.StartTime = time.Time{}
	}
	common.LogDebug("Tunnel state: %s -> %s", old, s)
}

// SelectProfile marks the profile with the given id or name as active.
func (m *Manager) SelectProfile(ctx context.Context, nameOrID string) (bridge.Profile, error) {
	p, err := m.profileManager.Get(ctx, nameOrID)
	if err != nil {
		return bridge.Profile{}, err
	}
	if err := m.adapter.SetActiveProfile(ctx, p.ID); err != nil {
		return bridge.Profile{}, fmt.Errorf("failed to select profile %s: %w", p.Name, err)
	}

	m.mu.Lock()
	if !m.conn.State.Active() {
		m.conn.Profile = &p
	}
	m.mu.Unlock()

	common.LogInfo("Selected profile %s (%d)", p.Name, p.ID)
	return p, nil
}

// State re-reads the tunnel state from the host.
func (m *Manager) State(ctx context.Context) bridge.TunnelState {
	s := m.adapter.TunnelState(ctx)
	m.setState(s)

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn.State
}

// TunnelState implements StateReader.
func (m *Manager) TunnelState(ctx context.Context) bridge.TunnelState {
	return m.State(ctx)
}

// Connection returns a copy of the tracked connection.
func (m *Manager) Connection() Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

// Status returns a fresh snapshot for display.
func (m *Manager) Status(ctx context.Context) Status {
	state := m.State(ctx)
	conn := m.Connection()
	return Status{
		State:      state,
		Label:      state.Label(),
		Connected:  state == bridge.StateConnected,
		Connecting: state.Busy(),
		Error:      conn.LastError,
		Profile:    conn.Profile,
		Uptime:     conn.GetUptime(),
	}
}

// Connect starts the tunnel for the active profile.
func (m *Manager) Connect(ctx context.Context) error {
	profile := m.adapter.ActiveProfile(ctx)
	if profile == nil {
		return common.ErrNoActiveProfile
	}
	if s := m.State(ctx); s.Active() {
		return ErrAlreadyConnected
	}

	m.mu.Lock()
	m.conn.Profile = profile
	m.conn.LastError = ""
	m.mu.Unlock()

	common.LogInfo("Starting tunnel with profile %s", profile.Name)
	if err := m.adapter.StartTunnel(ctx); err != nil {
		m.mu.Lock()
		m.conn.Status = StatusError
		m.conn.LastError = err.Error()
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// ConnectAndWait starts the tunnel and waits until it is CONNECTED.
func (m *Manager) ConnectAndWait(ctx context.Context, interval, timeout time.Duration) error {
	if err := m.Connect(ctx); err != nil {
		return err
	}
	return WaitForState(ctx, m, bridge.StateConnected, interval, timeout)
}

// Disconnect stops the tunnel. It returns ErrNotConnected when the host
// reports the tunnel is already down.
func (m *Manager) Disconnect(ctx context.Context) error {
	if m.State(ctx) == bridge.StateDisconnected {
		return ErrNotConnected
	}

	common.LogInfo("Stopping tunnel")
	if err := m.adapter.StopTunnel(ctx); err != nil {
		return fmt.Errorf("failed to stop tunnel: %w", err)
	}
	m.setState(bridge.StateDisconnected)
	return nil
}
