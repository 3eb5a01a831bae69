package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errHost = errors.New("host exploded")

// brokenHost implements a few capabilities and fails every call.
type brokenHost struct{}

func (brokenHost) StartTunnel(context.Context) error { return errHost }
func (brokenHost) StopTunnel(context.Context) error { return errHost }
func (brokenHost) TunnelState(context.Context) (string, error) { return "", errHost }
func (brokenHost) AirplaneState(context.Context) (string, error) { return "", errHost }
func (brokenHost) SetAirplane(context.Context, bool) error { return errHost }
func (brokenHost) DownloadBytes(context.Context) (int64, error) { return 0, errHost }
func (brokenHost) UploadBytes(context.Context) (int64, error) { return 0, errHost }
func (brokenHost) LocalIP(context.Context) (string, error) { return "", errHost }
func (brokenHost) ConfigVersion(context.Context) (string, error) { return "", errHost }
func (brokenHost) ConfigLabel(context.Context, string) (string, error) { return "", errHost }

// staticHost reports a narrower capability set than its method set.
type staticHost struct{ *SimHost }

func (*staticHost) Capabilities() []Capability {
	return []Capability{CapTunnel}
}

func TestAdapterWithoutCapabilities(t *testing.T) {
	ctx := context.Background()
	a := New(struct{}{}, nil)

	assert.Empty(t, a.Capabilities())
	assert.False(t, a.Has(CapTunnel))
	assert.Equal(t, "", a.Credential(ctx, FieldUsername))
	assert.Nil(t, a.Profiles(ctx))
	assert.Nil(t, a.ActiveProfile(ctx))
	assert.Equal(t, StateUnknown, a.TunnelState(ctx))
	assert.False(t, a.AirplaneActive(ctx))
	assert.Zero(t, a.DownloadBytes(ctx))
	assert.Zero(t, a.UploadBytes(ctx))
	assert.Equal(t, "", a.LocalIP(ctx))
	assert.Zero(t, a.StatusBarHeight(ctx))
	assert.Equal(t, HotspotUnknown, a.HotspotStatus(ctx))
	assert.Equal(t, "", a.ConfigLabel(ctx, "APP_NAME"))
	assert.False(t, a.CleanApp(ctx))

	// absent commands are no-ops
	assert.NoError(t, a.StartTunnel(ctx))
	assert.NoError(t, a.StopTunnel(ctx))
	assert.NoError(t, a.SetActiveProfile(ctx, 1))
	assert.NoError(t, a.StartHotspot(ctx))
	assert.NotNil(t, a.Events())
}

func TestAdapterHostErrors(t *testing.T) {
	ctx := context.Background()
	a := New(brokenHost{}, nil)

	assert.True(t, a.Has(CapTunnel))
	assert.True(t, a.Has(CapAirplane))
	assert.False(t, a.Has(CapProfiles))

	assert.Equal(t, StateUnknown, a.TunnelState(ctx))
	assert.Equal(t, "", a.LocalIP(ctx))
	assert.Equal(t, "", a.ConfigVersion(ctx))
	assert.Zero(t, a.DownloadBytes(ctx))

	assert.ErrorIs(t, a.StartTunnel(ctx), errHost)
	assert.ErrorIs(t, a.StopTunnel(ctx), errHost)

	assert.False(t, a.ToggleAirplane(ctx, true))
	assert.True(t, a.ToggleAirplane(ctx, false))
}

func TestAdapterCapabilityReporter(t *testing.T) {
	host := &staticHost{SimHost: NewSimHost(nil)}
	a := New(host, nil)

	assert.Equal(t, []Capability{CapTunnel}, a.Capabilities())
	assert.Nil(t, a.Profiles(context.Background()))
}

func TestAdapterOverSimHost(t *testing.T) {
	ctx := context.Background()
	a := New(NewSimHost(nil), nil)

	assert.Equal(t, AllCapabilities, a.Capabilities())

	profiles := a.Profiles(ctx)
	require.Len(t, profiles, 3)
	assert.Nil(t, a.ActiveProfile(ctx))

	require.NoError(t, a.SetActiveProfile(ctx, 21))
	active := a.ActiveProfile(ctx)
	require.NotNil(t, active)
	assert.Equal(t, "VLESS WS", active.Name)

	assert.True(t, a.ShouldShowInput(ctx, FieldUUID))
	assert.False(t, a.ShouldShowInput(ctx, FieldUsername))
	assert.False(t, a.ShouldShowInput(ctx, FieldPassword))

	require.NoError(t, a.SetActiveProfile(ctx, 11))
	assert.True(t, a.ShouldShowInput(ctx, FieldUsername))
	assert.False(t, a.ShouldShowInput(ctx, FieldUUID))

	assert.True(t, a.ToggleAirplane(ctx, true))
	assert.Equal(t, "", a.LocalIP(ctx))
	assert.False(t, a.ToggleAirplane(ctx, false))
	assert.NotEmpty(t, a.LocalIP(ctx))

	require.NoError(t, a.SetCredential(ctx, FieldUsername, "alice"))
	assert.Equal(t, "alice", a.Credential(ctx, FieldUsername))
	assert.True(t, a.CleanApp(ctx))
	assert.Equal(t, "", a.Credential(ctx, FieldUsername))
}

func TestShouldShowInputEmbeddedAuth(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultSimConfig()
	cfg.Categories[0].Items[0].Auth = &ProfileAuth{Username: "u", Password: "p"}
	cfg.Categories[1].Items[0].Auth = &ProfileAuth{V2RayUUID: "c0ffee"}
	a := New(NewSimHost(cfg), nil)

	require.NoError(t, a.SetActiveProfile(ctx, 11))
	assert.False(t, a.ShouldShowInput(ctx, FieldUsername))
	assert.False(t, a.ShouldShowInput(ctx, FieldPassword))

	require.NoError(t, a.SetActiveProfile(ctx, 21))
	assert.False(t, a.ShouldShowInput(ctx, FieldUUID))
}
