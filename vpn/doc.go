// Package vpn drives the host's VPN tunnel.
//
// The tunnel itself lives in the host. This package wraps the bridge
// adapter with the controller-side pieces:
//
//   - Manager: connects and disconnects the active profile and tracks
//     tunnel state from host events
//   - ProfileManager: a cached, filterable view of the host's profiles
//   - WaitForState: a cancellable polling wait on the tunnel state
//   - Prober: a single bounded reachability request
//   - HealthChecker: periodic probing with optional auto-reconnect
//
// # Connection Flow
//
// A typical connection flow:
//
//  1. User selects a profile (Manager.SelectProfile)
//  2. Manager.Connect asks the host to start the tunnel
//  3. The host publishes state changes; Manager records them
//  4. Callers wait for CONNECTED with WaitForState or read Manager.Status
//
// # Thread Safety
//
// All types in this package are safe for concurrent use.
package vpn
