package bridge

import "strings"

// TunnelState is the tunnel state reported by the host.
type TunnelState string

const (
	StateUnknown      TunnelState = ""
	StateDisconnected TunnelState = "DISCONNECTED"
	StateConnecting   TunnelState = "CONNECTING"
	StateConnected    TunnelState = "CONNECTED"
	StateStopping     TunnelState = "STOPPING"
	StateNoNetwork    TunnelState = "NO_NETWORK"
	StateAuth         TunnelState = "AUTH"
	StateAuthFailed   TunnelState = "AUTH_FAILED"
)

var knownStates = []TunnelState{
	StateDisconnected,
	StateConnecting,
	StateConnected,
	StateStopping,
	StateNoNetwork,
	StateAuth,
	StateAuthFailed,
}

// ParseTunnelState validates a host string. Unrecognised values map to StateUnknown.
func ParseTunnelState(s string) TunnelState {
	for _, st := range knownStates {
		if string(st) == s {
			return st
		}
	}
	return StateUnknown
}

// Label returns a human-readable description of the state.
func (s TunnelState) Label() string {
	switch s {
	case StateConnecting:
		return "Connecting..."
	case StateConnected:
		return "Connected"
	case StateStopping:
		return "Stopping..."
	case StateNoNetwork:
		return "No network"
	case StateAuth:
		return "Authenticating..."
	case StateAuthFailed:
		return "Authentication failed"
	default:
		return "Disconnected"
	}
}

// Busy reports whether the tunnel is on its way up.
func (s TunnelState) Busy() bool {
	return s == StateConnecting || s == StateAuth
}

// Active reports whether a stop command makes sense in this state.
func (s TunnelState) Active() bool {
	switch s {
	case StateConnecting, StateConnected, StateNoNetwork, StateAuth:
		return true
	}
	return false
}

// HotspotState is the tethering service state.
type HotspotState string

const (
	HotspotUnknown HotspotState = ""
	HotspotRunning HotspotState = "RUNNING"
	HotspotStopped HotspotState = "STOPPED"
)

// ParseHotspotState normalises the host status; anything but RUNNING is STOPPED.
func ParseHotspotState(s string) HotspotState {
	if s == "" {
		return HotspotUnknown
	}
	if strings.EqualFold(s, string(HotspotRunning)) {
		return HotspotRunning
	}
	return HotspotStopped
}

// Airplane mode values returned by the host.
const (
	AirplaneActive   = "ACTIVE"
	AirplaneInactive = "INACTIVE"
)
