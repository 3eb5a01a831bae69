// Package speedtest measures latency and throughput against
// fast.com-compatible download targets.
package speedtest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultServersURL lists download targets near the client.
const DefaultServersURL = "https://api.fast.com/netflix/speedtest/v2?https=true&token=YXNkZmFzZGxmbnNkYWZoYXNkZmhrYWxm&urlCount=10"

// ErrNoSamples is returned when no latency sample could be taken.
var ErrNoSamples = errors.New("no latency samples")

// Options tunes a speed test.
type Options struct {
	ServersURL         string        `yaml:"servers_url"`
	Duration           time.Duration `yaml:"duration"`
	MinDuration        time.Duration `yaml:"min_duration"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	PingSamples        int           `yaml:"ping_samples"`
	PingInterval       time.Duration `yaml:"ping_interval"`
	MaxAcceptablePing  time.Duration `yaml:"max_acceptable_ping"`
	Connections        int           `yaml:"connections"`
	ChunkSize          int64         `yaml:"chunk_size"`
	SampleInterval     time.Duration `yaml:"sample_interval"`
	StabilitySamples   int           `yaml:"stability_samples"`
	StabilityThreshold float64       `yaml:"stability_threshold"`
}

// DefaultOptions returns the standard test parameters.
func DefaultOptions() Options {
	return Options{
		ServersURL:         DefaultServersURL,
		Duration:           30 * time.Second,
		MinDuration:        5 * time.Second,
		PingTimeout:        2 * time.Second,
		PingSamples:        5,
		PingInterval:       time.Second,
		MaxAcceptablePing:  200 * time.Millisecond,
		Connections:        8,
		ChunkSize:          25 << 20,
		SampleInterval:     200 * time.Millisecond,
		StabilitySamples:   5,
		StabilityThreshold: 0.1,
	}
}

// Location is where a server is.
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// Server is a test target.
type Server struct {
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Location Location `json:"location"`

	// Ping is zero until measured; unreachable servers get math.MaxInt64.
	Ping time.Duration `json:"-"`
}

// Phase is a stage of a speed test run.
type Phase string

// Run phases.
const (
	PhasePing     Phase = "ping"
	PhaseDownload Phase = "download"
	PhaseUpload   Phase = "upload"
)

// Result of a full run. Speeds are in megabits per second.
type Result struct {
	Server   string
	Download float64
	Upload   float64
	Ping     time.Duration
}

// Tester runs speed tests.
type Tester struct {
	opts   Options
	client *http.Client
	logger *zap.SugaredLogger
}

// New returns a tester. Zero option fields take their defaults.
func New(opts Options, logger *zap.SugaredLogger) *Tester {
	def := DefaultOptions()
	if opts.ServersURL == "" {
		opts.ServersURL = def.ServersURL
	}
	if opts.Duration <= 0 {
		opts.Duration = def.Duration
	}
	if opts.MinDuration < 0 {
		opts.MinDuration = 0
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = def.PingTimeout
	}
	if opts.PingSamples <= 0 {
		opts.PingSamples = def.PingSamples
	}
	if opts.PingInterval < 0 {
		opts.PingInterval = 0
	}
	if opts.MaxAcceptablePing <= 0 {
		opts.MaxAcceptablePing = def.MaxAcceptablePing
	}
	if opts.Connections <= 0 {
		opts.Connections = def.Connections
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = def.ChunkSize
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = def.SampleInterval
	}
	if opts.StabilitySamples <= 0 {
		opts.StabilitySamples = def.StabilitySamples
	}
	if opts.StabilityThreshold <= 0 {
		opts.StabilityThreshold = def.StabilityThreshold
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tester{
		opts:   opts,
		client: &http.Client{},
		logger: logger.Named("speedtest"),
	}
}

// Options returns the effective options.
func (t *Tester) Options() Options {
	return t.opts
}

// Servers fetches the target list. With measure set every target is
// pinged once; targets under MaxAcceptablePing are returned fastest
// first, or all targets sorted by ping when none qualifies.
func (t *Tester) Servers(ctx context.Context, measure bool) ([]Server, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.opts.ServersURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch speed test servers: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch speed test servers: HTTP %d", resp.StatusCode)
	}

	var body struct {
		Targets []Server `json:"targets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode speed test servers: %w", err)
	}
	servers := body.Targets
	if !measure || len(servers) == 0 {
		return servers, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range servers {
		g.Go(func() error {
			ping, err := t.ping(gctx, servers[i].URL, 1)
			if err != nil {
				ping = time.Duration(math.MaxInt64)
			}
			servers[i].Ping = ping
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(servers, func(i, j int) bool { return servers[i].Ping < servers[j].Ping })
	good := servers[:0:0]
	for _, s := range servers {
		if s.Ping < t.opts.MaxAcceptablePing {
			good = append(good, s)
		}
	}
	if len(good) > 0 {
		return good, nil
	}
	return servers, nil
}

// Ping averages PingSamples HEAD round trips to url.
func (t *Tester) Ping(ctx context.Context, url string) (time.Duration, error) {
	return t.ping(ctx, url, t.opts.PingSamples)
}

func (t *Tester) ping(ctx context.Context, url string, samples int) (time.Duration, error) {
	var (
		total time.Duration
		taken int
	)
	deadline := time.Now().Add(t.opts.Duration)
	for taken < samples && time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if d, err := t.head(ctx, url); err == nil {
			total += d
			taken++
		} else {
			t.logger.Debugw("ping sample failed", "url", url, "error", err)
		}
		if taken >= samples {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(t.opts.PingInterval):
		}
	}
	if taken == 0 {
		return 0, ErrNoSamples
	}
	return total / time.Duration(taken), nil
}

func (t *Tester) head(ctx context.Context, url string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, t.opts.PingTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return time.Since(start), nil
}

// Download measures download throughput from url in Mbps.
func (t *Tester) Download(ctx context.Context, url string, progress func(float64)) (float64, error) {
	return t.measure(ctx, progress, func(ctx context.Context, counter *atomic.Int64) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Cache-Control", "no-cache,no-store,must-revalidate")
		req.Header.Set("Pragma", "no-cache")
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := checkStatus(resp); err != nil {
			return err
		}
		n, err := io.Copy(io.Discard, &countingReader{r: resp.Body, n: counter})
		if err == nil && n == 0 {
			return errEmptyBody
		}
		return err
	})
}

// Upload measures upload throughput to url in Mbps.
func (t *Tester) Upload(ctx context.Context, url string, progress func(float64)) (float64, error) {
	return t.measure(ctx, progress, func(ctx context.Context, counter *atomic.Int64) error {
		body := &countingReader{r: io.LimitReader(rand.Reader, t.opts.ChunkSize), n: counter}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return err
		}
		req.ContentLength = t.opts.ChunkSize
		req.Header.Set("Content-Type", "application/octet-stream")
		resp, err := t.client.Do(req)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return checkStatus(resp)
	})
}

var errEmptyBody = errors.New("server sent an empty body")

// checkStatus rejects non-2xx replies so a failing server ends the
// measurement instead of being retried in a tight loop.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// measure runs transfer on Connections workers until Duration elapses or
// the sampled speed stabilises.
func (t *Tester) measure(ctx context.Context, progress func(float64), transfer func(context.Context, *atomic.Int64) error) (float64, error) {
	runCtx, stop := context.WithTimeout(ctx, t.opts.Duration)
	defer stop()

	var counter atomic.Int64
	start := time.Now()

	g, gctx := errgroup.WithContext(runCtx)
	for range t.opts.Connections {
		g.Go(func() error {
			for gctx.Err() == nil {
				if err := transfer(gctx, &counter); err != nil && gctx.Err() == nil {
					return err
				}
			}
			return nil
		})
	}

	var (
		mu      sync.Mutex
		samples []float64
	)
	sampleDone := make(chan struct{})
	go func() {
		defer close(sampleDone)
		ticker := time.NewTicker(t.opts.SampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return
			case now := <-ticker.C:
				speed := mbps(counter.Load(), now.Sub(start))
				if progress != nil {
					progress(round2(speed))
				}
				mu.Lock()
				samples = append(samples, speed)
				steady := now.Sub(start) > t.opts.MinDuration &&
					stable(samples, t.opts.StabilitySamples, t.opts.StabilityThreshold)
				mu.Unlock()
				if steady {
					stop()
					return
				}
			}
		}
	}()

	err := g.Wait()
	stop()
	<-sampleDone
	if err != nil {
		return 0, err
	}
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if n := t.opts.StabilitySamples; len(samples) >= n {
		return round2(mean(samples[len(samples)-n:])), nil
	}
	return round2(mbps(counter.Load(), time.Since(start))), nil
}

// Run pings, then measures download and upload against server.
func (t *Tester) Run(ctx context.Context, server Server, progress func(Phase, float64)) (*Result, error) {
	report := func(p Phase) func(float64) {
		return func(v float64) {
			if progress != nil {
				progress(p, v)
			}
		}
	}

	report(PhasePing)(0)
	ping, err := t.Ping(ctx, server.URL)
	if err != nil {
		return nil, fmt.Errorf("ping %s: %w", server.Name, err)
	}
	report(PhasePing)(float64(ping.Milliseconds()))

	report(PhaseDownload)(0)
	down, err := t.Download(ctx, server.URL, report(PhaseDownload))
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}

	report(PhaseUpload)(0)
	up, err := t.Upload(ctx, server.URL, report(PhaseUpload))
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	t.logger.Infow("speed test finished", "server", server.Name, "download_mbps", down, "upload_mbps", up, "ping", ping)
	return &Result{Server: server.Name, Download: down, Upload: up, Ping: ping}, nil
}

type countingReader struct {
	r io.Reader
	n *atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

func mbps(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bytes*8) / elapsed.Seconds() / 1e6
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// stable reports whether the last n samples all lie within threshold of
// their mean.
func stable(samples []float64, n int, threshold float64) bool {
	if len(samples) < n {
		return false
	}
	recent := samples[len(samples)-n:]
	avg := mean(recent)
	if avg <= 0 {
		return false
	}
	for _, s := range recent {
		if math.Abs(s-avg)/avg > threshold {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
