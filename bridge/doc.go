// Package bridge talks to the native VPN host.
//
// The host exposes a set of optional capabilities (credentials, profiles,
// tunnel control, airplane mode, traffic counters, hotspot, ...). Each one
// is a small interface in this package. A host value implements whichever
// subset it supports; New inspects it once and fills every gap with a stub
// that returns a documented default, so callers never have to check for a
// missing capability themselves.
//
// # Hosts
//
//   - any in-process Go value implementing the capability interfaces
//   - RemoteHost: the HTTP bridge endpoint exposed by the native app
//   - SimHost: an in-memory host used for development and tests
//
// NewHandler serves an Adapter over the same HTTP surface RemoteHost
// consumes, so a SimHost can stand in for the native app.
//
// # Events
//
// Hosts push tunnel, configuration and network events through Events, a
// set of typed multi-subscriber topics. Subscribers keep the token returned
// by Subscribe and release it with Unsubscribe.
package bridge
