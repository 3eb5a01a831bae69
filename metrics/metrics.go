// Package metrics exports auto-connect and tunnel activity as Prometheus
// metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yllada/ssht-client/autoconnect"
	"github.com/yllada/ssht-client/bridge"
	"github.com/yllada/ssht-client/events"
)

// Run results.
const (
	RunSuccess   = "success"
	RunExhausted = "exhausted"
	RunCancelled = "cancelled"
)

// Manager owns the registry and the metrics fed from event topics.
type Manager struct {
	logger   *zap.SugaredLogger
	registry *prometheus.Registry
	subs     events.Group

	trials        *prometheus.CounterVec
	trialDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	tunnelStates  *prometheus.CounterVec
	connected     prometheus.Gauge
	downloadRate  prometheus.Gauge
	uploadRate    prometheus.Gauge
}

// NewManager creates a manager with its own registry.
func NewManager(logger *zap.SugaredLogger) *Manager {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	mm := &Manager{
		logger:   logger.Named("metrics"),
		registry: prometheus.NewRegistry(),
	}
	mm.initMetrics()
	mm.registerMetrics()
	return mm
}

func (mm *Manager) initMetrics() {
	mm.trials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssht_autoconnect_trials_total",
			Help: "Auto-connect trials by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)

	mm.trialDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ssht_autoconnect_trial_duration_seconds",
			Help:    "Time spent on one auto-connect trial",
			Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
		},
		[]string{"outcome"},
	)

	mm.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssht_autoconnect_runs_total",
			Help: "Auto-connect runs by result",
		},
		[]string{"result"}, // success, exhausted, cancelled
	)

	mm.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ssht_autoconnect_run_duration_seconds",
		Help:    "Time spent on a full auto-connect run",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	mm.tunnelStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ssht_tunnel_state_changes_total",
			Help: "Tunnel state events reported by the host",
		},
		[]string{"state"},
	)

	mm.connected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ssht_tunnel_connected",
		Help: "1 while the host reports the tunnel as connected",
	})

	mm.downloadRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ssht_download_bytes_per_second",
		Help: "Last sampled download rate",
	})

	mm.uploadRate = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ssht_upload_bytes_per_second",
		Help: "Last sampled upload rate",
	})
}

func (mm *Manager) registerMetrics() {
	mm.registry.MustRegister(
		mm.trials,
		mm.trialDuration,
		mm.runs,
		mm.runDuration,
		mm.tunnelStates,
		mm.connected,
		mm.downloadRate,
		mm.uploadRate,
	)

	mm.registry.MustRegister(collectors.NewGoCollector())
	mm.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (mm *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry for custom metrics.
func (mm *Manager) Registry() *prometheus.Registry {
	return mm.registry
}

// ObserveEngine records trials and runs published on progress.
func (mm *Manager) ObserveEngine(progress *events.Topic[autoconnect.Progress]) {
	events.Add(&mm.subs, progress, func(p autoconnect.Progress) {
		switch p.Phase {
		case autoconnect.PhaseTrialFinished:
			if p.Trial != nil {
				mm.RecordTrial(*p.Trial)
			}
		case autoconnect.PhaseRunFinished:
			if p.Result != nil {
				mm.RecordRun(*p.Result)
			}
		}
	})
}

// ObserveHost records tunnel state and throughput events.
func (mm *Manager) ObserveHost(ev *bridge.Events) {
	events.Add(&mm.subs, &ev.VPNState, mm.RecordTunnelState)
	events.Add(&mm.subs, &ev.NetworkStats, func(s bridge.NetworkStats) {
		mm.downloadRate.Set(s.DownloadRate)
		mm.uploadRate.Set(s.UploadRate)
	})
}

// Close stops observing every topic.
func (mm *Manager) Close() {
	mm.subs.Close()
}

// RecordTrial records a finished trial.
func (mm *Manager) RecordTrial(t autoconnect.TrialResult) {
	mm.trials.WithLabelValues(string(t.Outcome), reasonLabel(t)).Inc()
	mm.trialDuration.WithLabelValues(string(t.Outcome)).Observe(t.Duration.Seconds())
}

// RecordRun records a finished run.
func (mm *Manager) RecordRun(r autoconnect.Result) {
	result := RunExhausted
	switch {
	case r.Cancelled:
		result = RunCancelled
	case r.Succeeded():
		result = RunSuccess
	}
	mm.runs.WithLabelValues(result).Inc()
	mm.runDuration.Observe(r.Duration.Seconds())
	mm.logger.Debugw("auto-connect run recorded", "result", result, "trials", len(r.Trials), "duration", r.Duration.Round(time.Millisecond))
}

// RecordTunnelState records a state event from the host.
func (mm *Manager) RecordTunnelState(s bridge.TunnelState) {
	label := string(s)
	if label == "" {
		label = "UNKNOWN"
	}
	mm.tunnelStates.WithLabelValues(label).Inc()
	if s == bridge.StateConnected {
		mm.connected.Set(1)
	} else {
		mm.connected.Set(0)
	}
}

// reasonLabel keeps label cardinality bounded: free-form host error
// text is folded into "error".
func reasonLabel(t autoconnect.TrialResult) string {
	switch t.Reason {
	case "", autoconnect.ReasonTimeout, autoconnect.ReasonNoInternet, autoconnect.ReasonCancelled:
		return t.Reason
	default:
		return "error"
	}
}
