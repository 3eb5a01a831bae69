package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yllada/ssht-client/common"
)

// RemoteHost talks to a host bridge over HTTP.
type RemoteHost struct {
	baseURL string
	client  *http.Client
	caps    []Capability
	events  *Events
	logger  *zap.SugaredLogger

	// RetryInterval is the pause between event stream reconnects.
	RetryInterval time.Duration
}

// Dial connects to the bridge at baseURL and reads its capability list.
func Dial(ctx context.Context, baseURL string, logger *zap.SugaredLogger) (*RemoteHost, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid host URL %q: %w", baseURL, err)
	}

	h := &RemoteHost{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: 15 * time.Second},
		events:        NewEvents(),
		logger:        logger.Named("remote"),
		RetryInterval: 2 * time.Second,
	}

	var names []string
	if err := h.call(ctx, http.MethodGet, pathCapabilities, nil, &names); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrHostUnavailable, err)
	}
	for _, n := range names {
		h.caps = append(h.caps, Capability(n))
	}
	h.logger.Infow("connected to host", "url", h.baseURL, "capabilities", names)
	return h, nil
}

// Capabilities implements CapabilityReporter.
func (h *RemoteHost) Capabilities() []Capability {
	return h.caps
}

// Events implements EventSource. Events only arrive while Listen runs.
func (h *RemoteHost) Events() *Events {
	return h.events
}

func (h *RemoteHost) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(valueMessage[any]{Value: in})
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var msg valueMessage[json.RawMessage]
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if resp.StatusCode == http.StatusNotImplemented {
		return common.ErrUnsupported
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		return fmt.Errorf("%s %s: HTTP %d", method, path, resp.StatusCode)
	}
	if out != nil && len(msg.Value) > 0 {
		if err := json.Unmarshal(msg.Value, out); err != nil {
			return fmt.Errorf("%s %s: decode value: %w", method, path, err)
		}
	}
	return nil
}

func getValue[T any](ctx context.Context, h *RemoteHost, path string) (T, error) {
	var v T
	err := h.call(ctx, http.MethodGet, path, nil, &v)
	return v, err
}

// Credential implements CredentialStore.
func (h *RemoteHost) Credential(ctx context.Context, field CredentialField) (string, error) {
	return getValue[string](ctx, h, pathCredentials+url.PathEscape(string(field)))
}

// SetCredential implements CredentialStore.
func (h *RemoteHost) SetCredential(ctx context.Context, field CredentialField, value string) error {
	return h.call(ctx, http.MethodPut, pathCredentials+url.PathEscape(string(field)), value, nil)
}

// ProfilesJSON implements ProfileSource.
func (h *RemoteHost) ProfilesJSON(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathProfiles)
}

// ActiveProfileJSON implements ProfileSource.
func (h *RemoteHost) ActiveProfileJSON(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathActiveProfile)
}

// SetActiveProfile implements ProfileSource.
func (h *RemoteHost) SetActiveProfile(ctx context.Context, id int) error {
	return h.call(ctx, http.MethodPut, pathActiveProfile, id, nil)
}

// StartTunnel implements TunnelController.
func (h *RemoteHost) StartTunnel(ctx context.Context) error {
	return h.call(ctx, http.MethodPost, pathTunnelStart, nil, nil)
}

// StopTunnel implements TunnelController.
func (h *RemoteHost) StopTunnel(ctx context.Context) error {
	return h.call(ctx, http.MethodPost, pathTunnelStop, nil, nil)
}

// TunnelState implements TunnelController.
func (h *RemoteHost) TunnelState(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathTunnelState)
}

// AirplaneState implements AirplaneController.
func (h *RemoteHost) AirplaneState(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathAirplane)
}

// SetAirplane implements AirplaneController.
func (h *RemoteHost) SetAirplane(ctx context.Context, enable bool) error {
	return h.call(ctx, http.MethodPut, pathAirplane, enable, nil)
}

// DownloadBytes implements TrafficCounter.
func (h *RemoteHost) DownloadBytes(ctx context.Context) (int64, error) {
	return getValue[int64](ctx, h, pathDownload)
}

// UploadBytes implements TrafficCounter.
func (h *RemoteHost) UploadBytes(ctx context.Context) (int64, error) {
	return getValue[int64](ctx, h, pathUpload)
}

// LocalIP implements NetworkInfo.
func (h *RemoteHost) LocalIP(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathLocalIP)
}

// StatusBarHeight implements DeviceChrome.
func (h *RemoteHost) StatusBarHeight(ctx context.Context) (int, error) {
	return getValue[int](ctx, h, pathStatusBar)
}

// NavigationBarHeight implements DeviceChrome.
func (h *RemoteHost) NavigationBarHeight(ctx context.Context) (int, error) {
	return getValue[int](ctx, h, pathNavigationBar)
}

// HotspotStatus implements HotspotController.
func (h *RemoteHost) HotspotStatus(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathHotspot)
}

// StartHotspot implements HotspotController.
func (h *RemoteHost) StartHotspot(ctx context.Context) error {
	return h.call(ctx, http.MethodPost, pathHotspotStart, nil, nil)
}

// StopHotspot implements HotspotController.
func (h *RemoteHost) StopHotspot(ctx context.Context) error {
	return h.call(ctx, http.MethodPost, pathHotspotStop, nil, nil)
}

// ConfigLabel implements AppConfig.
func (h *RemoteHost) ConfigLabel(ctx context.Context, label string) (string, error) {
	return getValue[string](ctx, h, pathConfigLabels+url.PathEscape(label))
}

// ConfigVersion implements AppConfig.
func (h *RemoteHost) ConfigVersion(ctx context.Context) (string, error) {
	return getValue[string](ctx, h, pathConfigVersion)
}

// CleanApp implements Maintenance.
func (h *RemoteHost) CleanApp(ctx context.Context) (bool, error) {
	var ok bool
	err := h.call(ctx, http.MethodPost, pathClean, nil, &ok)
	return ok, err
}

// StartCheckUser implements Maintenance.
func (h *RemoteHost) StartCheckUser(ctx context.Context) error {
	return h.call(ctx, http.MethodPost, pathCheckUser, nil, nil)
}

// Listen streams host events into Events until ctx is done, reconnecting
// after RetryInterval when the stream drops.
func (h *RemoteHost) Listen(ctx context.Context) error {
	for {
		err := h.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		h.logger.Warnw("event stream closed, reconnecting", "error", err, "retry", h.RetryInterval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.RetryInterval):
		}
	}
}

func (h *RemoteHost) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+pathEvents, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/x-ndjson")

	// the stream is long-lived, so the client timeout must not apply
	client := &http.Client{Transport: h.client.Transport}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("event stream: HTTP %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			h.logger.Debugw("dropping malformed event", "error", err)
			continue
		}
		if err := h.events.Dispatch(env); err != nil {
			h.logger.Debugw("dropping event", "event", env.Event, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
