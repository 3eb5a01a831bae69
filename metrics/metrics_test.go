package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/events"
)

func TestObserveEngine(t *testing.T) {
	mm := NewManager(nil)
	defer mm.Close()

	var progress events.Topic[autoconnect.Progress]
	mm.ObserveEngine(&progress)

	trials := []autoconnect.TrialResult{
		{ProfileID: 1, Outcome: autoconnect.OutcomeFailure, Reason: autoconnect.ReasonTimeout, Duration: 10 * time.Second},
		{ProfileID: 2, Outcome: autoconnect.OutcomeFailure, Reason: "dial tcp: refused", Duration: time.Second},
		{ProfileID: 3, Outcome: autoconnect.OutcomeSuccess, Duration: 2 * time.Second},
	}
	for i := range trials {
		progress.Publish(autoconnect.Progress{Phase: autoconnect.PhaseTrialFinished, Trial: &trials[i]})
	}
	winner := bridge.Profile{ID: 3}
	progress.Publish(autoconnect.Progress{
		Phase:  autoconnect.PhaseRunFinished,
		Result: &autoconnect.Result{Winner: &winner, Trials: trials, Duration: 13 * time.Second},
	})
	progress.Publish(autoconnect.Progress{
		Phase:  autoconnect.PhaseRunFinished,
		Result: &autoconnect.Result{Cancelled: true},
	})
	progress.Publish(autoconnect.Progress{Phase: autoconnect.PhaseRunFinished, Result: &autoconnect.Result{}})

	assert.Equal(t, 1.0, testutil.ToFloat64(mm.trials.WithLabelValues("failure", autoconnect.ReasonTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.trials.WithLabelValues("failure", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.trials.WithLabelValues("success", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.runs.WithLabelValues(RunSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.runs.WithLabelValues(RunCancelled)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.runs.WithLabelValues(RunExhausted)))
}

func TestObserveHost(t *testing.T) {
	mm := NewManager(nil)
	ev := bridge.NewEvents()
	mm.ObserveHost(ev)

	ev.VPNState.Publish(bridge.StateConnecting)
	ev.VPNState.Publish(bridge.StateConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.tunnelStates.WithLabelValues("CONNECTED")))

	ev.NetworkStats.Publish(bridge.NetworkStats{DownloadRate: 2048, UploadRate: 512})
	assert.Equal(t, 2048.0, testutil.ToFloat64(mm.downloadRate))
	assert.Equal(t, 512.0, testutil.ToFloat64(mm.uploadRate))

	ev.VPNState.Publish(bridge.StateUnknown)
	assert.Equal(t, 0.0, testutil.ToFloat64(mm.connected))
	assert.Equal(t, 1.0, testutil.ToFloat64(mm.tunnelStates.WithLabelValues("UNKNOWN")))

	mm.Close()
	ev.VPNState.Publish(bridge.StateConnected)
	assert.Equal(t, 0.0, testutil.ToFloat64(mm.connected))
}

func TestHandler(t *testing.T) {
	mm := NewManager(nil)
	mm.RecordTrial(autoconnect.TrialResult{Outcome: autoconnect.OutcomeSuccess, Duration: time.Second})

	rec := httptest.NewRecorder()
	mm.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ssht_autoconnect_trials_total")
	assert.Contains(t, string(body), "go_goroutines")
}
