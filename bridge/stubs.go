package bridge

import "context"

// Stubs standing in for capabilities a host does not provide.

type noCredentials struct{}

func (noCredentials) Credential(context.Context, CredentialField) (string, error) { return "", nil }
func (noCredentials) SetCredential(context.Context, CredentialField, string) error {
	return nil
}

type noProfiles struct{}

func (noProfiles) ProfilesJSON(context.Context) (string, error) { return "", nil }
func (noProfiles) ActiveProfileJSON(context.Context) (string, error) { return "", nil }
func (noProfiles) SetActiveProfile(context.Context, int) error { return nil }

type noTunnel struct{}

func (noTunnel) StartTunnel(context.Context) error { return nil }
func (noTunnel) StopTunnel(context.Context) error { return nil }
func (noTunnel) TunnelState(context.Context) (string, error) { return "", nil }

type noAirplane struct{}

func (noAirplane) AirplaneState(context.Context) (string, error) { return "", nil }
func (noAirplane) SetAirplane(context.Context, bool) error { return nil }

type noTraffic struct{}

func (noTraffic) DownloadBytes(context.Context) (int64, error) { return 0, nil }
func (noTraffic) UploadBytes(context.Context) (int64, error) { return 0, nil }

type noNetwork struct{}

func (noNetwork) LocalIP(context.Context) (string, error) { return "", nil }

type noChrome struct{}

func (noChrome) StatusBarHeight(context.Context) (int, error) { return 0, nil }
func (noChrome) NavigationBarHeight(context.Context) (int, error) { return 0, nil }

type noHotspot struct{}

func (noHotspot) HotspotStatus(context.Context) (string, error) { return "", nil }
func (noHotspot) StartHotspot(context.Context) error { return nil }
func (noHotspot) StopHotspot(context.Context) error { return nil }

type noConfig struct{}

func (noConfig) ConfigLabel(context.Context, string) (string, error) { return "", nil }
func (noConfig) ConfigVersion(context.Context) (string, error) { return "", nil }

type noMaintenance struct{}

func (noMaintenance) CleanApp(context.Context) (bool, error) { return false, nil }
func (noMaintenance) StartCheckUser(context.Context) error { return nil }
