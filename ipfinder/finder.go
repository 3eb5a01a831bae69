package ipfinder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrNoRanges is returned when a search has nothing valid to look for.
var ErrNoRanges = errors.New("no valid IP range to search")

// Host toggles airplane mode and reports the local IP. *bridge.Adapter implements it.
type Host interface {
	ToggleAirplane(ctx context.Context, enable bool) bool
	LocalIP(ctx context.Context) string
}

// Options tune the search loop.
type Options struct {
	// AirplaneWait is how long airplane mode stays on each cycle.
	AirplaneWait time.Duration `yaml:"airplane_wait"`
	// PollInterval is how often the local IP is read after reconnecting.
	PollInterval time.Duration `yaml:"poll_interval"`
	// IPTimeout bounds the wait for a new IP each cycle.
	IPTimeout time.Duration `yaml:"ip_timeout"`
	// MaxIterations caps the number of cycles.
	MaxIterations int `yaml:"max_iterations"`
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		AirplaneWait:  3 * time.Second,
		PollInterval:  time.Second,
		IPTimeout:     30 * time.Second,
		MaxIterations: 256,
	}
}

// Result summarises a search.
type Result struct {
	IP         string
	Found      bool
	Iterations int
	Cancelled  bool
}

// Finder runs searches against a host.
type Finder struct {
	host   Host
	opts   Options
	logger *zap.SugaredLogger
	now    func() time.Time
}

// New creates a finder. Zero option fields take their defaults.
func New(host Host, opts Options, logger *zap.SugaredLogger) *Finder {
	def := DefaultOptions()
	if opts.AirplaneWait <= 0 {
		opts.AirplaneWait = def.AirplaneWait
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.IPTimeout <= 0 {
		opts.IPTimeout = def.IPTimeout
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Finder{host: host, opts: opts, logger: logger.Named("ipfinder"), now: time.Now}
}

// Search cycles airplane mode until the local IP falls inside one of
// ranges, the iteration cap is reached or ctx is done. Every cycle is
// reported to report, which may be nil.
func (f *Finder) Search(ctx context.Context, ranges []string, report func(string)) (Result, error) {
	if report == nil {
		report = func(string) {}
	}
	if len(ranges) == 0 {
		report("Error: " + ErrNoRanges.Error())
		return Result{}, ErrNoRanges
	}
	report("Values to search: " + strings.Join(ranges, ", "))

	var res Result
	for i := 0; i < f.opts.MaxIterations; i++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			return res, nil
		}
		res.Iterations = i + 1

		f.host.ToggleAirplane(ctx, true)
		if !sleep(ctx, f.opts.AirplaneWait) {
			// leave the device online
			f.host.ToggleAirplane(context.WithoutCancel(ctx), false)
			res.Cancelled = true
			return res, nil
		}
		f.host.ToggleAirplane(ctx, false)

		ip, err := f.waitForIP(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Cancelled = true
			return res, nil
		}
		stamp := f.now().Format("15:04:05")
		if err != nil {
			report(fmt.Sprintf("%s - IP: none - %v", stamp, err))
			continue
		}

		inside := InAnyRange(ip, ranges)
		where := "outside"
		if inside {
			where = "inside"
		}
		report(fmt.Sprintf("%s - IP: %s - %s the range", stamp, ip, where))
		f.logger.Debugw("ip finder cycle", "iteration", i+1, "ip", ip, "inside", inside)

		if inside {
			res.IP, res.Found = ip, true
			return res, nil
		}
	}
	return res, nil
}

var errNoIP = errors.New("no local IP assigned in time")

// waitForIP polls until the host reports a usable local IP.
func (f *Finder) waitForIP(ctx context.Context) (string, error) {
	deadline := time.NewTimer(f.opts.IPTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(f.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-deadline.C:
			return "", errNoIP
		case <-ticker.C:
			ip := f.host.LocalIP(ctx)
			if ip != "" && ip != "127.0.0.1" && IsLocal(ip) {
				return ip, nil
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
