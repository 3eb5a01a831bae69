package bridge

// HTTP surface shared by RemoteHost and NewHandler. Every response body is
// a valueMessage; failures carry Error and a non-2xx status.
const (
	pathCapabilities  = "/capabilities"
	pathCredentials   = "/credentials/"
	pathProfiles      = "/profiles"
	pathActiveProfile = "/profiles/active"
	pathTunnelStart   = "/tunnel/start"
	pathTunnelStop    = "/tunnel/stop"
	pathTunnelState   = "/tunnel/state"
	pathAirplane      = "/airplane"
	pathDownload      = "/traffic/download"
	pathUpload        = "/traffic/upload"
	pathLocalIP       = "/network/local-ip"
	pathStatusBar     = "/device/status-bar"
	pathNavigationBar = "/device/navigation-bar"
	pathHotspot       = "/hotspot"
	pathHotspotStart  = "/hotspot/start"
	pathHotspotStop   = "/hotspot/stop"
	pathConfigLabels  = "/config/labels/"
	pathConfigVersion = "/config/version"
	pathClean         = "/maintenance/clean"
	pathCheckUser     = "/maintenance/check-user"
	pathEvents        = "/events"
)

type valueMessage[T any] struct {
	Value T      `json:"value"`
	Error string `json:"error,omitempty"`
}
