package cli

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/config"
	"github.com/yllada/ssht-client/sales"
	"github.com/yllada/ssht-client/speedtest"
)

func TestPickServer(t *testing.T) {
	servers := []speedtest.Server{
		{Name: "Sao Paulo - Vivo"},
		{Name: "Rio de Janeiro - Claro"},
	}

	tests := []struct {
		name    string
		query   string
		want    string
		wantErr bool
	}{
		{name: "empty picks first", query: "", want: "Sao Paulo - Vivo"},
		{name: "case insensitive", query: "claro", want: "Rio de Janeiro - Claro"},
		{name: "no match", query: "Tim", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickServer(servers, tt.query)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pickServer() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got.Name != tt.want {
				t.Errorf("pickServer() = %q, want %q", got.Name, tt.want)
			}
		})
	}

	if _, err := pickServer(nil, ""); err == nil {
		t.Error("pickServer(nil) should fail")
	}
}

func TestPingText(t *testing.T) {
	if got := pingText(speedtest.Server{}); got != "-" {
		t.Errorf("unmeasured ping = %q", got)
	}
	if got := pingText(speedtest.Server{Ping: 35 * time.Millisecond}); got != "35 ms" {
		t.Errorf("ping = %q", got)
	}
}

func TestDeliveredLogin(t *testing.T) {
	creds := &sales.Credentials{
		SSH:   &sales.SSHCredentials{Username: "u1", Password: "p1"},
		V2Ray: &sales.V2RayCredentials{UUID: "b831381d-6324-4d53-ad4f-8cda48b30811"},
	}

	ssh := deliveredLogin(bridge.Profile{Mode: "SSH_DIRECT"}, creds)
	if ssh.Username != "u1" || ssh.Password != "p1" || ssh.UUID != "" {
		t.Errorf("ssh profile got %+v", ssh)
	}

	v2 := deliveredLogin(bridge.Profile{Mode: "V2RAY"}, creds)
	if v2.UUID != creds.V2Ray.UUID || v2.Username != "" {
		t.Errorf("v2ray profile got %+v", v2)
	}

	legacy := deliveredLogin(bridge.Profile{Mode: "V2RAY"}, &sales.Credentials{
		LegacySSH: &sales.SSHCredentials{Username: "old", Password: "pw"},
	})
	if legacy.Username != "old" {
		t.Errorf("v2ray profile without uuid should fall back to ssh login, got %+v", legacy)
	}
}

type fakeHotspot struct {
	calls   atomic.Int32
	flipAt  int32
	initial bridge.HotspotState
	next    bridge.HotspotState
}

func (f *fakeHotspot) HotspotStatus(context.Context) bridge.HotspotState {
	if f.calls.Add(1) >= f.flipAt {
		return f.next
	}
	return f.initial
}

func TestWaitHotspotChange(t *testing.T) {
	t.Run("returns the new state", func(t *testing.T) {
		r := &fakeHotspot{flipAt: 3, initial: bridge.HotspotStopped, next: bridge.HotspotRunning}
		got := waitHotspotChange(context.Background(), r, bridge.HotspotStopped, time.Millisecond, time.Second)
		if got != bridge.HotspotRunning {
			t.Errorf("state = %v, want running", got)
		}
		if r.calls.Load() != 3 {
			t.Errorf("polled %d times, want 3", r.calls.Load())
		}
	})

	t.Run("gives up after timeout", func(t *testing.T) {
		r := &fakeHotspot{flipAt: 1 << 30, initial: bridge.HotspotStopped}
		got := waitHotspotChange(context.Background(), r, bridge.HotspotStopped, time.Millisecond, 20*time.Millisecond)
		if got != bridge.HotspotStopped {
			t.Errorf("state = %v, want stopped", got)
		}
	})

	t.Run("stops on cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		r := &fakeHotspot{flipAt: 1, next: bridge.HotspotRunning}
		got := waitHotspotChange(ctx, r, bridge.HotspotStopped, time.Hour, time.Hour)
		if got != bridge.HotspotStopped {
			t.Errorf("state = %v, want previous state", got)
		}
	})
}

func TestFilterFlagsOverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AutoConnect.Categories = []int{1, 2}
	cfg.AutoConnect.Type = "SSH"
	c := &CLI{Config: cfg}

	got := c.filter(filterFlags{})
	if len(got.Categories) != 2 || got.Type != "SSH" {
		t.Errorf("defaults not taken from config: %+v", got)
	}

	got = c.filter(filterFlags{categories: []int{7}, configType: "V2RAY"})
	if len(got.Categories) != 1 || got.Categories[0] != 7 || got.Type != "V2RAY" {
		t.Errorf("flags did not override config: %+v", got)
	}
}
