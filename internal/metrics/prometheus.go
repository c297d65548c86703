// Package metrics exposes pipeline counters to Prometheus.
//
// Every method is safe to call on a nil *Metrics, so components can take an
// optional collector without guarding each call site.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "visualizer"

// Metrics contains all Prometheus metrics for the spectrum pipeline.
type Metrics struct {
	registry *prometheus.Registry

	// Tick loop metrics
	Ticks           *prometheus.CounterVec // by kind: fresh, decay
	Underruns       prometheus.Counter
	DegenerateFrame prometheus.Counter
	TickPanics      prometheus.Counter
	TickDuration    prometheus.Histogram

	// Capture metrics
	CapturedBytes prometheus.Counter
	DroppedBytes  prometheus.Counter
	DeviceErrors  *prometheus.CounterVec // by input mode
	ActiveInput   *prometheus.GaugeVec   // 1 for the active input mode

	// Transport metrics
	SnapshotsSent    *prometheus.CounterVec // by transport
	SendErrors       *prometheus.CounterVec // by transport
	WebSocketClients prometheus.Gauge
}

// NewMetrics creates all metrics and registers them, together with the Go and
// process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg)
}

// NewMetricsWith creates all metrics on the given registry.
func NewMetricsWith(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,

		// Tick loop metrics
		Ticks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of pipeline ticks by result (fresh or decay)",
		}, []string{"kind"}),
		Underruns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_underruns_total",
			Help:      "Ticks that found less than one frame in the capture buffer",
		}),
		DegenerateFrame: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "degenerate_frames_total",
			Help:      "Frames skipped by the silence heuristic",
		}),
		TickPanics: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tick_panics_total",
			Help:      "Ticks aborted by a recovered panic",
		}),
		TickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent in one pipeline tick",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14), // 10µs to ~80ms
		}),

		// Capture metrics
		CapturedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captured_bytes_total",
			Help:      "Raw bytes delivered by capture sources",
		}),
		DroppedBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_bytes_total",
			Help:      "Oldest bytes discarded by the capture buffer on overflow",
		}),
		DeviceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_errors_total",
			Help:      "Capture device failures by input mode",
		}, []string{"input"}),
		ActiveInput: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_input",
			Help:      "1 for the currently active input mode, 0 otherwise",
		}, []string{"input"}),

		// Transport metrics
		SnapshotsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_sent_total",
			Help:      "Spectrum snapshots sent by transport",
		}, []string{"transport"}),
		SendErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Failed snapshot sends by transport",
		}, []string{"transport"}),
		WebSocketClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Currently connected WebSocket clients",
		}),
	}
}

// Handler returns the HTTP handler serving this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordTick records a completed tick and its duration.
func (m *Metrics) RecordTick(fresh bool, d time.Duration) {
	if m == nil {
		return
	}
	kind := "decay"
	if fresh {
		kind = "fresh"
	}
	m.Ticks.WithLabelValues(kind).Inc()
	m.TickDuration.Observe(d.Seconds())
}

// RecordUnderrun increments the underrun counter.
func (m *Metrics) RecordUnderrun() {
	if m == nil {
		return
	}
	m.Underruns.Inc()
}

// RecordDegenerateFrame increments the degenerate frame counter.
func (m *Metrics) RecordDegenerateFrame() {
	if m == nil {
		return
	}
	m.DegenerateFrame.Inc()
}

// RecordTickPanic increments the recovered panic counter.
func (m *Metrics) RecordTickPanic() {
	if m == nil {
		return
	}
	m.TickPanics.Inc()
}

// RecordCapture records bytes pushed into the capture buffer and the bytes
// that push discarded.
func (m *Metrics) RecordCapture(captured, dropped int) {
	if m == nil {
		return
	}
	m.CapturedBytes.Add(float64(captured))
	if dropped > 0 {
		m.DroppedBytes.Add(float64(dropped))
	}
}

// RecordDeviceError increments the device error counter for an input mode.
func (m *Metrics) RecordDeviceError(input string) {
	if m == nil {
		return
	}
	m.DeviceErrors.WithLabelValues(input).Inc()
}

// SetActiveInput marks input as the only active input mode among all.
func (m *Metrics) SetActiveInput(input string, all []string) {
	if m == nil {
		return
	}
	for _, name := range all {
		v := 0.0
		if name == input {
			v = 1
		}
		m.ActiveInput.WithLabelValues(name).Set(v)
	}
}

// RecordSend records one snapshot send attempt on a transport.
func (m *Metrics) RecordSend(transport string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.SendErrors.WithLabelValues(transport).Inc()
		return
	}
	m.SnapshotsSent.WithLabelValues(transport).Inc()
}

// SetWebSocketClients sets the number of connected WebSocket clients.
func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(n))
}
