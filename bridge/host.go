package bridge

import "context"

// Capability names a group of host functions.
type Capability string

const (
	CapCredentials Capability = "credentials"
	CapProfiles    Capability = "profiles"
	CapTunnel      Capability = "tunnel"
	CapAirplane    Capability = "airplane"
	CapTraffic     Capability = "traffic"
	CapNetwork     Capability = "network"
	CapChrome      Capability = "chrome"
	CapHotspot     Capability = "hotspot"
	CapConfig      Capability = "config"
	CapMaintenance Capability = "maintenance"
	CapEvents      Capability = "events"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapCredentials,
	CapProfiles,
	CapTunnel,
	CapAirplane,
	CapTraffic,
	CapNetwork,
	CapChrome,
	CapHotspot,
	CapConfig,
	CapMaintenance,
	CapEvents,
}

// CredentialField selects one of the stored credentials.
type CredentialField string

const (
	FieldUsername CredentialField = "username"
	FieldPassword CredentialField = "password"
	FieldUUID     CredentialField = "uuid"
)

// Valid reports whether f names a known credential.
func (f CredentialField) Valid() bool {
	return f == FieldUsername || f == FieldPassword || f == FieldUUID
}

// CredentialStore reads and writes the credentials the host connects with.
type CredentialStore interface {
	Credential(ctx context.Context, field CredentialField) (string, error)
	SetCredential(ctx context.Context, field CredentialField, value string) error
}

// ProfileSource publishes connection profiles and the active selection.
type ProfileSource interface {
	// ProfilesJSON returns the category list as JSON.
	ProfilesJSON(ctx context.Context) (string, error)
	// ActiveProfileJSON returns the selected profile as JSON, or "" if none.
	ActiveProfileJSON(ctx context.Context) (string, error)
	SetActiveProfile(ctx context.Context, id int) error
}

// TunnelController starts and stops the VPN tunnel.
type TunnelController interface {
	StartTunnel(ctx context.Context) error
	StopTunnel(ctx context.Context) error
	TunnelState(ctx context.Context) (string, error)
}

// AirplaneController reads and toggles airplane mode.
type AirplaneController interface {
	AirplaneState(ctx context.Context) (string, error)
	SetAirplane(ctx context.Context, enable bool) error
}

// TrafficCounter exposes cumulative byte counters.
type TrafficCounter interface {
	DownloadBytes(ctx context.Context) (int64, error)
	UploadBytes(ctx context.Context) (int64, error)
}

// NetworkInfo exposes device addressing.
type NetworkInfo interface {
	LocalIP(ctx context.Context) (string, error)
}

// DeviceChrome exposes system bar dimensions.
type DeviceChrome interface {
	StatusBarHeight(ctx context.Context) (int, error)
	NavigationBarHeight(ctx context.Context) (int, error)
}

// HotspotController drives the tethering service.
type HotspotController interface {
	HotspotStatus(ctx context.Context) (string, error)
	StartHotspot(ctx context.Context) error
	StopHotspot(ctx context.Context) error
}

// AppConfig exposes host-side application configuration.
type AppConfig interface {
	ConfigLabel(ctx context.Context, label string) (string, error)
	ConfigVersion(ctx context.Context) (string, error)
}

// Maintenance groups one-shot host actions.
type Maintenance interface {
	CleanApp(ctx context.Context) (bool, error)
	StartCheckUser(ctx context.Context) error
}

// EventSource is implemented by hosts that push events.
type EventSource interface {
	Events() *Events
}

// CapabilityReporter is implemented by hosts whose method set is wider than
// what they actually support (RemoteHost). New only wires the listed capabilities.
type CapabilityReporter interface {
	Capabilities() []Capability
}
