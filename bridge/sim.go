package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yllada/ssht-client/common"
)

// SimConfig describes a simulated host.
type SimConfig struct {
	// ConnectDelay is how long a tunnel stays CONNECTING.
	ConnectDelay time.Duration `yaml:"connect_delay"`
	// Failing lists profile ids whose tunnel ends in AUTH_FAILED.
	Failing []int `yaml:"failing"`
	// LocalIPs is cycled through every time airplane mode is switched off.
	LocalIPs []string `yaml:"local_ips"`
	// DownloadRate and UploadRate are bytes per second while connected.
	DownloadRate int64             `yaml:"download_rate"`
	UploadRate   int64             `yaml:"upload_rate"`
	Labels       map[string]string `yaml:"labels"`
	Categories   []Category        `yaml:"categories"`
}

// DefaultSimConfig returns a small two-category setup.
func DefaultSimConfig() *SimConfig {
	return &SimConfig{
		ConnectDelay: 1500 * time.Millisecond,
		LocalIPs:     []string{"10.12.0.7", "100.72.4.19", "192.168.43.10"},
		DownloadRate: 512 * 1024,
		UploadRate:   64 * 1024,
		Labels:       map[string]string{"APP_NAME": common.AppName},
		Categories: []Category{
			{ID: 1, Name: "SSH", Sorter: 1, Color: "#6205D5", Items: []Profile{
				{ID: 11, Name: "SSH Direct", Mode: "SSH_DIRECT", Sorter: 1},
				{ID: 12, Name: "SSH Proxy", Mode: "SSH_PROXY", Sorter: 2},
			}},
			{ID: 2, Name: "V2Ray", Sorter: 2, Color: "#0EA5E9", Items: []Profile{
				{ID: 21, Name: "VLESS WS", Mode: "V2RAY_VLESS", Sorter: 1},
			}},
		},
	}
}

// LoadSimConfig reads a YAML simulation file.
func LoadSimConfig(path string) (*SimConfig, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening simulation file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	cfg := DefaultSimConfig()
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("error parsing simulation file: %w", err)
	}
	return cfg, nil
}

// SimHost is an in-memory host. It implements every capability.
type SimHost struct {
	mu     sync.Mutex
	cfg    SimConfig
	events *Events

	credentials map[CredentialField]string
	active      int
	state       TunnelState
	generation  int
	connectedAt time.Time
	downloaded  int64
	uploaded    int64
	airplane    bool
	ipIndex     int
	hotspot     bool

	starts int
	stops  int
}

// NewSimHost creates a simulated host from cfg.
func NewSimHost(cfg *SimConfig) *SimHost {
	if cfg == nil {
		cfg = DefaultSimConfig()
	}
	return &SimHost{
		cfg:         *cfg,
		events:      NewEvents(),
		credentials: make(map[CredentialField]string),
		state:       StateDisconnected,
	}
}

// Events implements EventSource.
func (h *SimHost) Events() *Events {
	return h.events
}

// Credential implements CredentialStore.
func (h *SimHost) Credential(_ context.Context, field CredentialField) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.credentials[field], nil
}

// SetCredential implements CredentialStore.
func (h *SimHost) SetCredential(_ context.Context, field CredentialField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("unknown credential %q", field)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.credentials[field] = value
	return nil
}

// ProfilesJSON implements ProfileSource.
func (h *SimHost) ProfilesJSON(context.Context) (string, error) {
	data, err := json.Marshal(h.cfg.Categories)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (h *SimHost) profile(id int) (Profile, bool) {
	for _, p := range Flatten(h.cfg.Categories) {
		if p.ID == id {
			return p, true
		}
	}
	return Profile{}, false
}

// ActiveProfileJSON implements ProfileSource.
func (h *SimHost) ActiveProfileJSON(context.Context) (string, error) {
	h.mu.Lock()
	active := h.active
	h.mu.Unlock()

	p, ok := h.profile(active)
	if !ok {
		return "", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetActiveProfile implements ProfileSource.
func (h *SimHost) SetActiveProfile(_ context.Context, id int) error {
	p, ok := h.profile(id)
	if !ok {
		return fmt.Errorf("%w: %d", common.ErrProfileNotFound, id)
	}
	h.mu.Lock()
	h.active = id
	h.mu.Unlock()

	h.events.ConfigSelected.Publish(p)
	return nil
}

// StartTunnel implements TunnelController.
func (h *SimHost) StartTunnel(context.Context) error {
	h.mu.Lock()
	if _, ok := h.profile(h.active); !ok {
		h.mu.Unlock()
		return common.ErrNoActiveProfile
	}
	h.starts++
	h.generation++
	gen := h.generation
	failing := false
	for _, id := range h.cfg.Failing {
		if id == h.active {
			failing = true
		}
	}
	h.state = StateConnecting
	h.mu.Unlock()

	h.events.VPNState.Publish(StateConnecting)

	time.AfterFunc(h.cfg.ConnectDelay, func() {
		h.mu.Lock()
		if h.generation != gen || h.state != StateConnecting {
			h.mu.Unlock()
			return
		}
		next := StateConnected
		if failing {
			next = StateAuthFailed
		} else {
			h.connectedAt = time.Now()
		}
		h.state = next
		h.mu.Unlock()

		h.events.VPNState.Publish(next)
		if next == StateConnected {
			h.events.VPNStarted.Publish(struct{}{})
		}
	})
	return nil
}

// StopTunnel implements TunnelController.
func (h *SimHost) StopTunnel(context.Context) error {
	h.mu.Lock()
	h.stops++
	h.generation++
	if h.state == StateConnected {
		d, u := h.countersLocked()
		h.downloaded, h.uploaded = d, u
	}
	h.state = StateDisconnected
	h.mu.Unlock()

	h.events.VPNState.Publish(StateStopping)
	h.events.VPNState.Publish(StateDisconnected)
	h.events.VPNStopped.Publish(struct{}{})
	return nil
}

// TunnelState implements TunnelController.
func (h *SimHost) TunnelState(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.state), nil
}

// Calls returns how many start and stop commands the host received.
func (h *SimHost) Calls() (starts, stops int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, h.stops
}

// AirplaneState implements AirplaneController.
func (h *SimHost) AirplaneState(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.airplane {
		return AirplaneActive, nil
	}
	return AirplaneInactive, nil
}

// SetAirplane implements AirplaneController. Leaving airplane mode moves
// the device to the next configured local IP.
func (h *SimHost) SetAirplane(_ context.Context, enable bool) error {
	h.mu.Lock()
	changed := h.airplane != enable
	h.airplane = enable
	if changed && !enable {
		h.ipIndex++
	}
	ip := h.localIPLocked()
	h.mu.Unlock()

	if changed {
		h.events.AirplaneMode.Publish(enable)
		if !enable {
			h.events.LocalIP.Publish(ip)
		}
	}
	return nil
}

func (h *SimHost) localIPLocked() string {
	if h.airplane {
		return ""
	}
	if len(h.cfg.LocalIPs) == 0 {
		return "10.0.0.2"
	}
	return h.cfg.LocalIPs[h.ipIndex%len(h.cfg.LocalIPs)]
}

// LocalIP implements NetworkInfo.
func (h *SimHost) LocalIP(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.localIPLocked(), nil
}

func (h *SimHost) countersLocked() (int64, int64) {
	if h.state != StateConnected {
		return h.downloaded, h.uploaded
	}
	secs := time.Since(h.connectedAt).Seconds()
	return h.downloaded + int64(secs*float64(h.cfg.DownloadRate)),
		h.uploaded + int64(secs*float64(h.cfg.UploadRate))
}

// DownloadBytes implements TrafficCounter.
func (h *SimHost) DownloadBytes(context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	d, _ := h.countersLocked()
	return d, nil
}

// UploadBytes implements TrafficCounter.
func (h *SimHost) UploadBytes(context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, u := h.countersLocked()
	return u, nil
}

// StatusBarHeight implements DeviceChrome.
func (h *SimHost) StatusBarHeight(context.Context) (int, error) { return 24, nil }

// NavigationBarHeight implements DeviceChrome.
func (h *SimHost) NavigationBarHeight(context.Context) (int, error) { return 48, nil }

// HotspotStatus implements HotspotController.
func (h *SimHost) HotspotStatus(context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.hotspot {
		return string(HotspotRunning), nil
	}
	return string(HotspotStopped), nil
}

// StartHotspot implements HotspotController.
func (h *SimHost) StartHotspot(context.Context) error {
	h.setHotspot(true)
	return nil
}

// StopHotspot implements HotspotController.
func (h *SimHost) StopHotspot(context.Context) error {
	h.setHotspot(false)
	return nil
}

func (h *SimHost) setHotspot(on bool) {
	h.mu.Lock()
	h.hotspot = on
	h.mu.Unlock()

	state := HotspotStopped
	if on {
		state = HotspotRunning
	}
	h.events.HotspotState.Publish(state)
}

// ConfigLabel implements AppConfig.
func (h *SimHost) ConfigLabel(_ context.Context, label string) (string, error) {
	return h.cfg.Labels[label], nil
}

// ConfigVersion implements AppConfig.
func (h *SimHost) ConfigVersion(context.Context) (string, error) {
	return "sim-1", nil
}

// CleanApp implements Maintenance.
func (h *SimHost) CleanApp(context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.credentials = make(map[CredentialField]string)
	h.active = 0
	return true, nil
}

// StartCheckUser implements Maintenance.
func (h *SimHost) StartCheckUser(context.Context) error {
	h.mu.Lock()
	username := h.credentials[FieldUsername]
	h.mu.Unlock()

	h.events.CheckUserModel.Publish(CheckUserModel{
		Username:         username,
		ExpirationDate:   time.Now().AddDate(0, 0, 30).Format("02/01/2006"),
		ExpirationDays:   "30",
		LimitConnections: "1",
		CountConnections: "1",
	})
	return nil
}
