package netstats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yllada/ssht-client/bridge"
)

type fakeCounters struct {
	down, up int64
}

func (f *fakeCounters) DownloadBytes(context.Context) int64 { return f.down }
func (f *fakeCounters) UploadBytes(context.Context) int64 { return f.up }

func TestSamplerRates(t *testing.T) {
	src := &fakeCounters{}
	ev := bridge.NewEvents()
	s := NewSampler(src, &ev.NetworkStats, time.Second)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	var published []bridge.NetworkStats
	ev.NetworkStats.Subscribe(func(st bridge.NetworkStats) { published = append(published, st) })

	first := s.Sample(context.Background())
	assert.Zero(t, first.DownloadRate)

	src.down, src.up = 4096, 1024
	clock = clock.Add(2 * time.Second)
	second := s.Sample(context.Background())
	assert.Equal(t, 2048.0, second.DownloadRate)
	assert.Equal(t, 512.0, second.UploadRate)
	assert.Equal(t, int64(4096), second.DownloadBytes)

	// counter reset after a reconnect
	src.down, src.up = 10, 10
	clock = clock.Add(2 * time.Second)
	third := s.Sample(context.Background())
	assert.Zero(t, third.DownloadRate)

	assert.Len(t, published, 3)
	assert.Equal(t, third, s.Last())
}

func TestSamplerRunStopsOnCancel(t *testing.T) {
	src := &fakeCounters{}
	s := NewSampler(src, nil, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := s.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "0 B/s", FormatRate(0))
	assert.Equal(t, "0 B/s", FormatRate(-5))
	assert.Equal(t, "512 B/s", FormatRate(512))
	assert.Equal(t, "1.5 KiB/s", FormatRate(1536))
	assert.Equal(t, "0 B", FormatTotal(0))
	assert.Equal(t, "2.0 MiB", FormatTotal(2*1024*1024))
}
