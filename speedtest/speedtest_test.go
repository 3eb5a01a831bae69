package speedtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions(serversURL string) Options {
	return Options{
		ServersURL:       serversURL,
		Duration:         300 * time.Millisecond,
		PingTimeout:      time.Second,
		PingSamples:      2,
		PingInterval:     time.Millisecond,
		Connections:      2,
		ChunkSize:        32 << 10,
		SampleInterval:   20 * time.Millisecond,
		StabilitySamples: 3,
	}
}

type target struct {
	srv      *httptest.Server
	uploaded atomic.Int64
	heads    atomic.Int32
}

func newTarget(t *testing.T) *target {
	t.Helper()
	tg := &target{}
	payload := []byte(strings.Repeat("x", 64<<10))
	mux := http.NewServeMux()
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			tg.heads.Add(1)
		case http.MethodGet:
			_, _ = w.Write(payload)
		case http.MethodPost:
			n, _ := io.Copy(io.Discard, r.Body)
			tg.uploaded.Add(n)
		}
	})
	mux.HandleFunc("/targets", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"client": map[string]any{"ip": "127.0.0.1"},
			"targets": []map[string]any{
				{"name": "dead", "url": "http://127.0.0.1:1/data", "location": map[string]string{"city": "Nowhere", "country": "XX"}},
				{"name": "local", "url": tg.srv.URL + "/data", "location": map[string]string{"city": "São Paulo", "country": "BR"}},
			},
		})
	})
	tg.srv = httptest.NewServer(mux)
	t.Cleanup(tg.srv.Close)
	return tg
}

func TestServers(t *testing.T) {
	tg := newTarget(t)
	tester := New(testOptions(tg.srv.URL+"/targets"), nil)

	all, err := tester.Servers(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "São Paulo", all[1].Location.City)
	assert.Zero(t, all[1].Ping)

	good, err := tester.Servers(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, good, 1)
	assert.Equal(t, "local", good[0].Name)
	assert.Positive(t, good[0].Ping)
}

func TestServers_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := New(testOptions(srv.URL), nil).Servers(context.Background(), false)
	assert.ErrorContains(t, err, "HTTP 403")
}

func TestPing(t *testing.T) {
	tg := newTarget(t)
	tester := New(testOptions(""), nil)

	d, err := tester.Ping(context.Background(), tg.srv.URL+"/data")
	require.NoError(t, err)
	assert.Positive(t, d)
	assert.Equal(t, int32(2), tg.heads.Load())
}

func TestPing_Unreachable(t *testing.T) {
	opts := testOptions("")
	opts.PingTimeout = 50 * time.Millisecond
	_, err := New(opts, nil).Ping(context.Background(), "http://127.0.0.1:1/data")
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestDownloadAndUpload(t *testing.T) {
	tg := newTarget(t)
	tester := New(testOptions(""), nil)

	var updates atomic.Int32
	down, err := tester.Download(context.Background(), tg.srv.URL+"/data", func(float64) { updates.Add(1) })
	require.NoError(t, err)
	assert.Positive(t, down)
	assert.Positive(t, updates.Load())

	up, err := tester.Upload(context.Background(), tg.srv.URL+"/data", nil)
	require.NoError(t, err)
	assert.Positive(t, up)
	assert.Positive(t, tg.uploaded.Load())
}

func TestDownload_Cancelled(t *testing.T) {
	tg := newTarget(t)
	tester := New(testOptions(""), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tester.Download(ctx, tg.srv.URL+"/data", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadAndUpload_ServerError(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	opts := testOptions("")
	opts.Duration = 2 * time.Second
	tester := New(opts, nil)

	start := time.Now()
	_, err := tester.Download(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "HTTP 500")
	assert.Less(t, time.Since(start), opts.Duration)
	assert.LessOrEqual(t, requests.Load(), int32(opts.Connections))

	requests.Store(0)
	_, err = tester.Upload(context.Background(), srv.URL, nil)
	assert.ErrorContains(t, err, "HTTP 500")
	assert.LessOrEqual(t, requests.Load(), int32(opts.Connections))
}

func TestDownload_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	_, err := New(testOptions(""), nil).Download(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, errEmptyBody)
}

func TestRun(t *testing.T) {
	tg := newTarget(t)
	tester := New(testOptions(""), nil)

	phases := map[Phase]int{}
	res, err := tester.Run(context.Background(), Server{Name: "local", URL: tg.srv.URL + "/data"}, func(p Phase, v float64) {
		phases[p]++
	})
	require.NoError(t, err)
	assert.Equal(t, "local", res.Server)
	assert.Positive(t, res.Download)
	assert.Positive(t, res.Upload)
	assert.Positive(t, res.Ping)
	for _, p := range []Phase{PhasePing, PhaseDownload, PhaseUpload} {
		assert.GreaterOrEqual(t, phases[p], 1, fmt.Sprint(p))
	}
}

func TestStable(t *testing.T) {
	assert.True(t, stable([]float64{1, 10, 10.5, 9.8, 10.2, 10}, 5, 0.1))
	assert.False(t, stable([]float64{10, 10.5, 14, 10.2, 10}, 5, 0.1))
	assert.False(t, stable([]float64{10, 10}, 5, 0.1))
	assert.False(t, stable([]float64{0, 0, 0, 0, 0}, 5, 0.1))
}

func TestDefaults(t *testing.T) {
	opts := New(Options{}, nil).Options()
	def := DefaultOptions()
	assert.Equal(t, def.ServersURL, opts.ServersURL)
	assert.Equal(t, def.Duration, opts.Duration)
	assert.Equal(t, def.PingTimeout, opts.PingTimeout)
	assert.Equal(t, def.Connections, opts.Connections)
	assert.Equal(t, def.ChunkSize, opts.ChunkSize)
	assert.Equal(t, def.StabilityThreshold, opts.StabilityThreshold)
}
