// Package netstats turns the host's cumulative byte counters into
// throughput samples.
package netstats

import (
	"context"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/common"
	"github.com/yllada/ssht-client/events"
)

// Counters reads cumulative byte counts. *bridge.Adapter implements it.
type Counters interface {
	DownloadBytes(ctx context.Context) int64
	UploadBytes(ctx context.Context) int64
}

type reading struct {
	download int64
	upload   int64
	at       time.Time
}

// Sampler polls Counters and publishes rates.
type Sampler struct {
	src      Counters
	topic    *events.Topic[bridge.NetworkStats]
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	prev *reading
	last bridge.NetworkStats
}

// NewSampler creates a sampler publishing to topic (which may be nil).
func NewSampler(src Counters, topic *events.Topic[bridge.NetworkStats], interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = common.StatsInterval
	}
	return &Sampler{
		src:      src,
		topic:    topic,
		interval: interval,
		now:      time.Now,
	}
}

// Sample reads the counters once and returns the rate since the previous
// sample. The first sample has zero rates.
func (s *Sampler) Sample(ctx context.Context) bridge.NetworkStats {
	cur := reading{
		download: s.src.DownloadBytes(ctx),
		upload:   s.src.UploadBytes(ctx),
		at:       s.now(),
	}

	s.mu.Lock()
	stats := bridge.NetworkStats{DownloadBytes: cur.download, UploadBytes: cur.upload}
	if s.prev != nil {
		if elapsed := cur.at.Sub(s.prev.at).Seconds(); elapsed > 0 {
			stats.DownloadRate = rate(cur.download-s.prev.download, elapsed)
			stats.UploadRate = rate(cur.upload-s.prev.upload, elapsed)
		}
	}
	s.prev = &cur
	s.last = stats
	s.mu.Unlock()

	if s.topic != nil {
		s.topic.Publish(stats)
	}
	return stats
}

// counters restart from zero when the tunnel restarts
func rate(delta int64, seconds float64) float64 {
	if delta <= 0 {
		return 0
	}
	return float64(delta) / seconds
}

// Last returns the most recent sample.
func (s *Sampler) Last() bridge.NetworkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Run samples immediately and then every interval until ctx is done.
func (s *Sampler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sample(ctx)
		}
	}
}

// FormatRate renders bytes per second, e.g. "1.2 MiB/s".
func FormatRate(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "0 B/s"
	}
	return humanize.IBytes(uint64(bytesPerSecond)) + "/s"
}

// FormatTotal renders a byte count, e.g. "3.4 GiB".
func FormatTotal(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
