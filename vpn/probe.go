package vpn

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yllada/ssht-client/common"
)

// Prober checks external reachability with one bounded HTTP request.
type Prober struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// NewProber returns a prober for url. Empty values use the defaults.
func NewProber(url string, timeout time.Duration) *Prober {
	if url == "" {
		url = common.ProbeURL
	}
	if timeout <= 0 {
		timeout = common.ProbeTimeout
	}
	return &Prober{
		URL:     url,
		Timeout: timeout,
		Client:  &http.Client{},
	}
}

// Probe sends a HEAD request, retrying once with GET if the server
// refuses HEAD. Any HTTP response counts as reachable; the returned
// duration is the round-trip of the answered request.
func (p *Prober) Probe(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	start := time.Now()
	status, err := p.do(ctx, http.MethodHead)
	if err == nil && status == http.StatusMethodNotAllowed {
		start = time.Now()
		_, err = p.do(ctx, http.MethodGet)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrConnectionFailed, err)
	}
	return time.Since(start), nil
}

func (p *Prober) do(ctx context.Context, method string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.URL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, nil
}
