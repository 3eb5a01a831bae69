// Package common provides shared constants, types, utilities, and interfaces
// used throughout the SSH T client.
//
// This package serves as the foundation for cross-cutting concerns:
//
//   - Constants: timeouts, endpoints, file names and storage namespaces
//   - Errors: sentinel errors for consistent error handling across packages
//   - Interfaces: small abstractions shared by the UI layers
//   - Logger: zap-backed logging with a rotating file sink
//   - Utils: config/data directory helpers and string helpers
//
// # Usage
//
//	import "github.com/yllada/ssht-client/common"
//
//	common.LogInfo("Trying profile %s", profile.Name)
//
//	if errors.Is(err, common.ErrTimeout) {
//	    // the tunnel never reached CONNECTED
//	}
package common
