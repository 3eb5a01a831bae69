package bridge

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Adapter gives safe access to a host. Capabilities the host lacks are
// replaced with default-returning stubs when the adapter is built.
//
// Getters never fail: a missing capability or a host error yields the
// zero value for the call ("" / 0 / false / StateUnknown). Commands return
// the host's error, and are no-ops returning nil when the capability is absent.
type Adapter struct {
	logger *zap.SugaredLogger
	caps   map[Capability]bool

	credentials CredentialStore
	profiles    ProfileSource
	tunnel      TunnelController
	airplane    AirplaneController
	traffic     TrafficCounter
	network     NetworkInfo
	chrome      DeviceChrome
	hotspot     HotspotController
	config      AppConfig
	maintenance Maintenance
	events      *Events
}

// New inspects host and returns an adapter over the capabilities it provides.
func New(host any, logger *zap.SugaredLogger) *Adapter {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	declared := map[Capability]bool{}
	reporter, reports := host.(CapabilityReporter)
	if reports {
		for _, c := range reporter.Capabilities() {
			declared[c] = true
		}
	}
	allowed := func(c Capability) bool {
		return !reports || declared[c]
	}

	a := &Adapter{
		logger:      logger.Named("bridge"),
		caps:        make(map[Capability]bool),
		credentials: noCredentials{},
		profiles:    noProfiles{},
		tunnel:      noTunnel{},
		airplane:    noAirplane{},
		traffic:     noTraffic{},
		network:     noNetwork{},
		chrome:      noChrome{},
		hotspot:     noHotspot{},
		config:      noConfig{},
		maintenance: noMaintenance{},
		events:      NewEvents(),
	}

	if v, ok := host.(CredentialStore); ok && allowed(CapCredentials) {
		a.credentials, a.caps[CapCredentials] = v, true
	}
	if v, ok := host.(ProfileSource); ok && allowed(CapProfiles) {
		a.profiles, a.caps[CapProfiles] = v, true
	}
	if v, ok := host.(TunnelController); ok && allowed(CapTunnel) {
		a.tunnel, a.caps[CapTunnel] = v, true
	}
	if v, ok := host.(AirplaneController); ok && allowed(CapAirplane) {
		a.airplane, a.caps[CapAirplane] = v, true
	}
	if v, ok := host.(TrafficCounter); ok && allowed(CapTraffic) {
		a.traffic, a.caps[CapTraffic] = v, true
	}
	if v, ok := host.(NetworkInfo); ok && allowed(CapNetwork) {
		a.network, a.caps[CapNetwork] = v, true
	}
	if v, ok := host.(DeviceChrome); ok && allowed(CapChrome) {
		a.chrome, a.caps[CapChrome] = v, true
	}
	if v, ok := host.(HotspotController); ok && allowed(CapHotspot) {
		a.hotspot, a.caps[CapHotspot] = v, true
	}
	if v, ok := host.(AppConfig); ok && allowed(CapConfig) {
		a.config, a.caps[CapConfig] = v, true
	}
	if v, ok := host.(Maintenance); ok && allowed(CapMaintenance) {
		a.maintenance, a.caps[CapMaintenance] = v, true
	}
	if v, ok := host.(EventSource); ok && allowed(CapEvents) {
		if ev := v.Events(); ev != nil {
			a.events, a.caps[CapEvents] = ev, true
		}
	}

	a.logger.Debugw("host adapter ready", "capabilities", a.Capabilities())
	return a
}

// Has reports whether the host provides capability c.
func (a *Adapter) Has(c Capability) bool {
	return a.caps[c]
}

// Capabilities lists the capabilities the host provides.
func (a *Adapter) Capabilities() []Capability {
	caps := make([]Capability, 0, len(a.caps))
	for _, c := range AllCapabilities {
		if a.caps[c] {
			caps = append(caps, c)
		}
	}
	return caps
}

// Events returns the host event topics. Hosts without push events get a
// private set that only local publishers use.
func (a *Adapter) Events() *Events {
	return a.events
}

func (a *Adapter) fallback(call string, err error) {
	a.logger.Debugw("host call failed, using default", "call", call, "error", err)
}

// Credential returns a stored credential or "".
func (a *Adapter) Credential(ctx context.Context, field CredentialField) string {
	v, err := a.credentials.Credential(ctx, field)
	if err != nil {
		a.fallback("credential."+string(field), err)
		return ""
	}
	return v
}

// SetCredential stores a credential on the host.
func (a *Adapter) SetCredential(ctx context.Context, field CredentialField, value string) error {
	return a.credentials.SetCredential(ctx, field, value)
}

// Categories returns the host's sorted category list, or nil.
func (a *Adapter) Categories(ctx context.Context) []Category {
	raw, err := a.profiles.ProfilesJSON(ctx)
	if err != nil {
		a.fallback("profiles", err)
		return nil
	}
	if raw == "" {
		return nil
	}
	categories, err := ParseCategories(raw)
	if err != nil {
		a.fallback("profiles.parse", err)
		return nil
	}
	return categories
}

// Profiles returns every profile in display order.
func (a *Adapter) Profiles(ctx context.Context) []Profile {
	return Flatten(a.Categories(ctx))
}

// ActiveProfile returns the selected profile, or nil.
func (a *Adapter) ActiveProfile(ctx context.Context) *Profile {
	raw, err := a.profiles.ActiveProfileJSON(ctx)
	if err != nil {
		a.fallback("profiles.active", err)
		return nil
	}
	if raw == "" || raw == "null" {
		return nil
	}
	p, err := ParseProfile(raw)
	if err != nil {
		a.fallback("profiles.active.parse", err)
		return nil
	}
	return p
}

// SetActiveProfile selects the profile the next tunnel start uses.
func (a *Adapter) SetActiveProfile(ctx context.Context, id int) error {
	return a.profiles.SetActiveProfile(ctx, id)
}

// ShouldShowInput reports whether the user must type the given credential
// for the active profile. V2Ray profiles only ever ask for a UUID.
func (a *Adapter) ShouldShowInput(ctx context.Context, field CredentialField) bool {
	p := a.ActiveProfile(ctx)
	if p == nil {
		return true
	}

	auth := p.Auth
	if auth == nil {
		auth = &ProfileAuth{}
	}

	if p.IsV2Ray() {
		if field == FieldUUID {
			return auth.V2RayUUID == ""
		}
		return false
	}

	switch field {
	case FieldUsername:
		return auth.Username == ""
	case FieldPassword:
		return auth.Password == ""
	case FieldUUID:
		return false
	default:
		return true
	}
}

// StartTunnel asks the host to bring the tunnel up.
func (a *Adapter) StartTunnel(ctx context.Context) error {
	return a.tunnel.StartTunnel(ctx)
}

// StopTunnel asks the host to bring the tunnel down.
func (a *Adapter) StopTunnel(ctx context.Context) error {
	return a.tunnel.StopTunnel(ctx)
}

// TunnelState returns the current state, or StateUnknown.
func (a *Adapter) TunnelState(ctx context.Context) TunnelState {
	s, err := a.tunnel.TunnelState(ctx)
	if err != nil {
		a.fallback("tunnel.state", err)
		return StateUnknown
	}
	return ParseTunnelState(s)
}

// AirplaneActive reports whether airplane mode is on.
func (a *Adapter) AirplaneActive(ctx context.Context) bool {
	s, err := a.airplane.AirplaneState(ctx)
	if err != nil {
		a.fallback("airplane.state", err)
		return false
	}
	return s == AirplaneActive
}

// ToggleAirplane switches airplane mode and returns the state read back
// afterwards. If the host rejects the command the previous state (!enable)
// is returned.
func (a *Adapter) ToggleAirplane(ctx context.Context, enable bool) bool {
	if err := a.airplane.SetAirplane(ctx, enable); err != nil {
		a.fallback("airplane.set", err)
		return !enable
	}
	return a.AirplaneActive(ctx)
}

// DownloadBytes returns the cumulative received byte count.
func (a *Adapter) DownloadBytes(ctx context.Context) int64 {
	n, err := a.traffic.DownloadBytes(ctx)
	if err != nil {
		a.fallback("traffic.download", err)
		return 0
	}
	return n
}

// UploadBytes returns the cumulative sent byte count.
func (a *Adapter) UploadBytes(ctx context.Context) int64 {
	n, err := a.traffic.UploadBytes(ctx)
	if err != nil {
		a.fallback("traffic.upload", err)
		return 0
	}
	return n
}

// LocalIP returns the device's current address, or "".
func (a *Adapter) LocalIP(ctx context.Context) string {
	ip, err := a.network.LocalIP(ctx)
	if err != nil {
		a.fallback("network.local_ip", err)
		return ""
	}
	return strings.TrimSpace(ip)
}

// StatusBarHeight returns the status bar height in pixels.
func (a *Adapter) StatusBarHeight(ctx context.Context) int {
	n, err := a.chrome.StatusBarHeight(ctx)
	if err != nil {
		a.fallback("chrome.status_bar", err)
		return 0
	}
	return n
}

// NavigationBarHeight returns the navigation bar height in pixels.
func (a *Adapter) NavigationBarHeight(ctx context.Context) int {
	n, err := a.chrome.NavigationBarHeight(ctx)
	if err != nil {
		a.fallback("chrome.navigation_bar", err)
		return 0
	}
	return n
}

// HotspotStatus returns RUNNING, STOPPED, or HotspotUnknown.
func (a *Adapter) HotspotStatus(ctx context.Context) HotspotState {
	s, err := a.hotspot.HotspotStatus(ctx)
	if err != nil {
		a.fallback("hotspot.status", err)
		return HotspotUnknown
	}
	return ParseHotspotState(s)
}

// StartHotspot starts tethering.
func (a *Adapter) StartHotspot(ctx context.Context) error {
	return a.hotspot.StartHotspot(ctx)
}

// StopHotspot stops tethering.
func (a *Adapter) StopHotspot(ctx context.Context) error {
	return a.hotspot.StopHotspot(ctx)
}

// ConfigLabel returns a host configuration string, or "".
func (a *Adapter) ConfigLabel(ctx context.Context, label string) string {
	v, err := a.config.ConfigLabel(ctx, label)
	if err != nil {
		a.fallback("config.label", err)
		return ""
	}
	return v
}

// ConfigVersion returns the local configuration version, or "".
func (a *Adapter) ConfigVersion(ctx context.Context) string {
	v, err := a.config.ConfigVersion(ctx)
	if err != nil {
		a.fallback("config.version", err)
		return ""
	}
	return v
}

// CleanApp wipes host data and reports whether it succeeded.
func (a *Adapter) CleanApp(ctx context.Context) bool {
	ok, err := a.maintenance.CleanApp(ctx)
	if err != nil {
		a.fallback("maintenance.clean", err)
		return false
	}
	return ok
}

// StartCheckUser asks the host to refresh the account summary; the result
// arrives as a CheckUserModel event.
func (a *Adapter) StartCheckUser(ctx context.Context) error {
	return a.maintenance.StartCheckUser(ctx)
}
