package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/yllada/ssht-client/events"
)

// Host event names, as sent over the wire.
const (
	EventVPNState       = "DtVpnStateEvent"
	EventVPNStarted     = "DtVpnStartedSuccessEvent"
	EventVPNStopped     = "DtVpnStoppedSuccessEvent"
	EventConfigSelected = "DtConfigSelectedEvent"
	EventCheckUserModel = "DtCheckUserModelEvent"
	EventNetworkStats   = "DtNetworkStatsEvent"
	EventLocalIP        = "DtLocalIPEvent"
	EventAirplaneMode   = "DtAirplaneModeEvent"
	EventHotspotState   = "DtHotspotStateEvent"
)

// CheckUserModel is the account summary pushed after a check-user request.
type CheckUserModel struct {
	Username         string `json:"username"`
	ExpirationDate   string `json:"expiration_date"`
	ExpirationDays   string `json:"expiration_days"`
	LimitConnections string `json:"limit_connections"`
	CountConnections string `json:"count_connections"`
}

// NetworkStats is a throughput sample.
type NetworkStats struct {
	DownloadBytes int64   `json:"downloadBytes"`
	UploadBytes   int64   `json:"uploadBytes"`
	DownloadRate  float64 `json:"downloadRate"`
	UploadRate    float64 `json:"uploadRate"`
}

// Envelope is the wire form of an event.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Events is the set of host event topics.
type Events struct {
	VPNState       events.Topic[TunnelState]
	VPNStarted     events.Topic[struct{}]
	VPNStopped     events.Topic[struct{}]
	ConfigSelected events.Topic[Profile]
	CheckUserModel events.Topic[CheckUserModel]
	NetworkStats   events.Topic[NetworkStats]
	LocalIP        events.Topic[string]
	AirplaneMode   events.Topic[bool]
	HotspotState   events.Topic[HotspotState]
}

// NewEvents returns an empty topic set.
func NewEvents() *Events {
	return &Events{}
}

// Dispatch decodes a wire event and publishes it on the matching topic.
func (e *Events) Dispatch(env Envelope) error {
	switch env.Event {
	case EventVPNState:
		// the host sends either "CONNECTED" or {"state":"CONNECTED"}
		var s string
		if err := json.Unmarshal(env.Payload, &s); err != nil {
			var obj struct {
				State string `json:"state"`
			}
			if err := json.Unmarshal(env.Payload, &obj); err != nil {
				return fmt.Errorf("decode %s: %w", env.Event, err)
			}
			s = obj.State
		}
		e.VPNState.Publish(ParseTunnelState(s))
	case EventVPNStarted:
		e.VPNStarted.Publish(struct{}{})
	case EventVPNStopped:
		e.VPNStopped.Publish(struct{}{})
	case EventConfigSelected:
		return publishJSON(env, &e.ConfigSelected)
	case EventCheckUserModel:
		return publishJSON(env, &e.CheckUserModel)
	case EventNetworkStats:
		return publishJSON(env, &e.NetworkStats)
	case EventLocalIP:
		var obj struct {
			IP string `json:"ip"`
		}
		if err := json.Unmarshal(env.Payload, &obj); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		e.LocalIP.Publish(obj.IP)
	case EventAirplaneMode:
		var obj struct {
			Enabled bool `json:"enabled"`
		}
		if err := json.Unmarshal(env.Payload, &obj); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		e.AirplaneMode.Publish(obj.Enabled)
	case EventHotspotState:
		var obj struct {
			State string `json:"state"`
		}
		if err := json.Unmarshal(env.Payload, &obj); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		e.HotspotState.Publish(ParseHotspotState(obj.State))
	default:
		return fmt.Errorf("unknown event %q", env.Event)
	}
	return nil
}

func publishJSON[T any](env Envelope, topic *events.Topic[T]) error {
	var v T
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		return fmt.Errorf("decode %s: %w", env.Event, err)
	}
	topic.Publish(v)
	return nil
}

// Forward encodes every event published on e and hands it to fn.
// Close the returned group to stop forwarding.
func (e *Events) Forward(fn func(Envelope)) *events.Group {
	g := &events.Group{}
	send := func(name string, payload any) {
		env := Envelope{Event: name}
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				return
			}
			env.Payload = data
		}
		fn(env)
	}

	events.Add(g, &e.VPNState, func(s TunnelState) { send(EventVPNState, string(s)) })
	events.Add(g, &e.VPNStarted, func(struct{}) { send(EventVPNStarted, nil) })
	events.Add(g, &e.VPNStopped, func(struct{}) { send(EventVPNStopped, nil) })
	events.Add(g, &e.ConfigSelected, func(p Profile) { send(EventConfigSelected, p) })
	events.Add(g, &e.CheckUserModel, func(m CheckUserModel) { send(EventCheckUserModel, m) })
	events.Add(g, &e.NetworkStats, func(s NetworkStats) { send(EventNetworkStats, s) })
	events.Add(g, &e.LocalIP, func(ip string) { send(EventLocalIP, map[string]string{"ip": ip}) })
	events.Add(g, &e.AirplaneMode, func(on bool) { send(EventAirplaneMode, map[string]bool{"enabled": on}) })
	events.Add(g, &e.HotspotState, func(s HotspotState) { send(EventHotspotState, map[string]string{"state": string(s)}) })
	return g
}
