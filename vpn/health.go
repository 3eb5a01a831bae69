// Package vpn provides VPN connection management functionality.
// This file contains the HealthChecker for monitoring connection health
// and implementing auto-reconnect functionality.
package vpn

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
)

// HealthState represents the current health state of a connection.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

// String returns a human-readable representation of the health state.
func (h HealthState) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthDegraded:
		return "Degraded"
	case HealthUnhealthy:
		return "Unhealthy"
	default:
		return "Unknown"
	}
}

// HealthConfig holds configuration for the health checker.
type HealthConfig struct {
	// CheckInterval is how often to check connection health.
	CheckInterval time.Duration
	// FailureThreshold is how many consecutive failures before marking unhealthy.
	FailureThreshold int
	// AutoReconnect enables automatic reconnection on failure.
	AutoReconnect bool
	// ReconnectDelay is the delay before attempting to reconnect.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts is the maximum number of reconnection attempts (0 = unlimited).
	MaxReconnectAttempts int
	// ProbeURL is requested on every check.
	ProbeURL string
	// ProbeTimeout bounds each check.
	ProbeTimeout time.Duration
}

// DefaultHealthConfig returns sensible defaults for health checking.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CheckInterval:        30 * time.Second,
		FailureThreshold:     3,
		AutoReconnect:        true,
		ReconnectDelay:       5 * time.Second,
		MaxReconnectAttempts: 5,
		ProbeURL:             common.ProbeURL,
		ProbeTimeout:         common.ProbeTimeout,
	}
}

// HealthChecker monitors the health of the tunnel.
type HealthChecker struct {
	mu                sync.RWMutex
	config            HealthConfig
	manager           *Manager
	prober            *Prober
	running           bool
	stopChan          chan struct{}
	connectionHealth  map[int]*ConnectionHealth
	onHealthChange    func(profileID int, oldState, newState HealthState)
	onReconnecting    func(profileID int, attempt int)
	onReconnectFailed func(profileID int, err error)
}

// ConnectionHealth tracks the health of the tunnel for one profile.
type ConnectionHealth struct {
	ProfileID         int
	State             HealthState
	LastCheck         time.Time
	LastSuccess       time.Time
	ConsecutiveFails  int
	ReconnectAttempts int
	Latency           time.Duration
}

// NewHealthChecker creates a new health checker for the given manager.
func NewHealthChecker(manager *Manager, config HealthConfig) *HealthChecker {
	return &HealthChecker{
		config:           config,
		manager:          manager,
		prober:           NewProber(config.ProbeURL, config.ProbeTimeout),
		stopChan:         make(chan struct{}),
		connectionHealth: make(map[int]*ConnectionHealth),
	}
}

// SetOnHealthChange sets a callback for health state changes.
func (hc *HealthChecker) SetOnHealthChange(callback func(profileID int, oldState, newState HealthState)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onHealthChange = callback
}

// SetOnReconnecting sets a callback for reconnection attempts.
func (hc *HealthChecker) SetOnReconnecting(callback func(profileID int, attempt int)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onReconnecting = callback
}

// SetOnReconnectFailed sets a callback for failed reconnection.
func (hc *HealthChecker) SetOnReconnectFailed(callback func(profileID int, err error)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.onReconnectFailed = callback
}

// Start begins the health checking loop.
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	hc.stopChan = make(chan struct{})
	hc.mu.Unlock()

	common.LogInfo("Health checker started (interval: %v)", hc.config.CheckInterval)

	go hc.runLoop()
}

// Stop stops the health checking loop.
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = false
	close(hc.stopChan)
	hc.mu.Unlock()

	common.LogInfo("Health checker stopped")
}

// IsRunning returns whether the health checker is currently running.
func (hc *HealthChecker) IsRunning() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.running
}

// GetHealth returns the current health state for a profile.
func (hc *HealthChecker) GetHealth(profileID int) (*ConnectionHealth, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	health, exists := hc.connectionHealth[profileID]
	if !exists {
		return nil, false
	}
	healthCopy := *health
	return &healthCopy, true
}

func (hc *HealthChecker) runLoop() {
	hc.mu.RLock()
	interval := hc.config.CheckInterval
	stop := hc.stopChan
	hc.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			hc.checkTunnel()
		}
	}
}

// checkTunnel probes once if the tunnel is connected.
func (hc *HealthChecker) checkTunnel() {
	ctx := context.Background()
	if hc.manager.State(ctx) != bridge.StateConnected {
		return
	}
	hc.checkConnection(ctx, hc.manager.Connection())
}

// checkConnection performs a health check on the current connection.
func (hc *HealthChecker) checkConnection(ctx context.Context, conn Connection) {
	profileID, name := 0, "tunnel"
	if conn.Profile != nil {
		profileID, name = conn.Profile.ID, conn.Profile.Name
	}

	hc.mu.Lock()
	health, exists := hc.connectionHealth[profileID]
	if !exists {
		health = &ConnectionHealth{
			ProfileID: profileID,
			State:     HealthUnknown,
		}
		hc.connectionHealth[profileID] = health
	}
	prober := hc.prober
	hc.mu.Unlock()

	latency, err := prober.Probe(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	health.LastCheck = time.Now()
	oldState := health.State

	if err != nil {
		health.ConsecutiveFails++
		health.Latency = 0
		common.LogWarn("Health check failed for %s (attempt %d/%d): %v",
			name, health.ConsecutiveFails, hc.config.FailureThreshold, err)

		if health.ConsecutiveFails >= hc.config.FailureThreshold {
			health.State = HealthUnhealthy
		} else {
			health.State = HealthDegraded
		}
	} else {
		health.ConsecutiveFails = 0
		health.LastSuccess = time.Now()
		health.Latency = latency
		health.State = HealthHealthy
		health.ReconnectAttempts = 0
	}

	if oldState != health.State {
		common.LogInfo("Health state changed for %s: %s -> %s",
			name, oldState.String(), health.State.String())

		if hc.onHealthChange != nil {
			go hc.onHealthChange(profileID, oldState, health.State)
		}

		if health.State == HealthUnhealthy && hc.config.AutoReconnect {
			go hc.attemptReconnect(profileID, name, health)
		}
	}
}

// attemptReconnect restarts the tunnel after repeated failed checks.
func (hc *HealthChecker) attemptReconnect(profileID int, name string, health *ConnectionHealth) {
	hc.mu.Lock()
	cfg := hc.config
	if cfg.MaxReconnectAttempts > 0 && health.ReconnectAttempts >= cfg.MaxReconnectAttempts {
		onFailed := hc.onReconnectFailed
		hc.mu.Unlock()
		common.LogError("Max reconnect attempts reached for %s", name)
		if onFailed != nil {
			onFailed(profileID, common.ErrConnectionFailed)
		}
		return
	}
	health.ReconnectAttempts++
	attempt := health.ReconnectAttempts
	onReconnecting := hc.onReconnecting
	hc.mu.Unlock()

	common.LogInfo("Attempting reconnect for %s (attempt %d)", name, attempt)

	if onReconnecting != nil {
		onReconnecting(profileID, attempt)
	}

	time.Sleep(cfg.ReconnectDelay)

	ctx := context.Background()

	// the user may have disconnected in the meantime
	if hc.manager.State(ctx) == bridge.StateDisconnected {
		common.LogInfo("Connection was disconnected, skipping reconnect for %s", name)
		return
	}

	if err := hc.manager.Disconnect(ctx); err != nil {
		common.LogError("Failed to disconnect before reconnect: %v", err)
	}

	time.Sleep(1 * time.Second)

	if err := hc.manager.Connect(ctx); err != nil {
		common.LogError("Reconnect failed for %s: %v", name, err)

		hc.mu.Lock()
		retry := cfg.MaxReconnectAttempts == 0 || health.ReconnectAttempts < cfg.MaxReconnectAttempts
		onFailed := hc.onReconnectFailed
		hc.mu.Unlock()

		if retry {
			go hc.attemptReconnect(profileID, name, health)
		} else if onFailed != nil {
			onFailed(profileID, err)
		}
	} else {
		common.LogInfo("Reconnect successful for %s", name)
	}
}
