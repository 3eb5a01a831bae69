// Package autoconnect tries connection profiles one at a time until one
// yields a tunnel with working internet access.
//
// A run selects each candidate, starts the tunnel, waits for CONNECTED and
// sends one reachability probe. The first candidate that passes the probe
// wins and its tunnel is left up. Every other trial stops the tunnel
// before the next candidate starts. Cancelling the run's context ends it
// at the next wait boundary without further commands to the host.
package autoconnect
