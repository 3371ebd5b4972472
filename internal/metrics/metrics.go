package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Cook loop
	FramesCooked   atomic.Uint64
	FramesDropped  atomic.Uint64 // Frames a sink was too slow to take
	CookLatencyUs  atomic.Uint64 // Last cook duration in microseconds
	BodiesVisible  atomic.Uint64
	ChannelCount   atomic.Uint64
	RegistrySize   atomic.Uint64
	RegistryResets atomic.Uint64

	// Feed
	FeedPackets   atomic.Uint64
	FeedRejected  atomic.Uint64
	FeedConnected atomic.Uint64 // 0 = looking for master, 1 = connected

	// Consumers
	StreamClients   atomic.Uint64
	WebRTCClients   atomic.Uint64
	WebRTCFramesOut atomic.Uint64

	// Recording state
	RecordingActive atomic.Uint64 // 0 = inactive, 1 = active
	RecordingBytes  atomic.Uint64
	RecordingFrames atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.registerPrometheusMetrics()

	return m
}

type gauge struct {
	name  string
	help  string
	value *atomic.Uint64
}

// registerPrometheusMetrics registers all metrics with Prometheus
func (m *Metrics) registerPrometheusMetrics() {
	gauges := []gauge{
		{"pbreceiver_frames_cooked_total", "Total host frames cooked", &m.FramesCooked},
		{"pbreceiver_frames_dropped_total", "Cooked frames dropped by slow sinks", &m.FramesDropped},
		{"pbreceiver_cook_latency_us", "Duration of the last cook in microseconds", &m.CookLatencyUs},
		{"pbreceiver_bodies_visible", "Bodies in the last frame snapshot", &m.BodiesVisible},
		{"pbreceiver_channels", "Channels in the last cooked frame", &m.ChannelCount},
		{"pbreceiver_registry_size", "Body UIDs with an assigned index", &m.RegistrySize},
		{"pbreceiver_registry_resets_total", "Body index resets applied", &m.RegistryResets},

		{"pbreceiver_feed_packets_total", "Body packets accepted from the tracking master", &m.FeedPackets},
		{"pbreceiver_feed_rejected_total", "Body packets rejected (malformed or stale)", &m.FeedRejected},
		{"pbreceiver_feed_connected", "Tracking master connected (0=no, 1=yes)", &m.FeedConnected},

		{"pbreceiver_stream_clients", "Active SSE channel stream clients", &m.StreamClients},
		{"pbreceiver_webrtc_clients", "Active WebRTC data channel clients", &m.WebRTCClients},
		{"pbreceiver_webrtc_frames_sent_total", "Frames sent over WebRTC data channels", &m.WebRTCFramesOut},

		{"pbreceiver_recording_active", "Recording active (0=inactive, 1=active)", &m.RecordingActive},
		{"pbreceiver_recording_bytes", "Total bytes written to recording", &m.RecordingBytes},
		{"pbreceiver_recording_frames", "Total frames written to recording", &m.RecordingFrames},
	}

	for _, g := range gauges {
		value := g.value
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: g.name,
				Help: g.help,
			},
			func() float64 { return float64(value.Load()) },
		))
	}
}

// UpdateCookLatency stores the duration of the last cook
func (m *Metrics) UpdateCookLatency(d time.Duration) {
	m.CookLatencyUs.Store(uint64(d.Microseconds()))
}

// SetFeedConnected records the feed connection state
func (m *Metrics) SetFeedConnected(connected bool) {
	if connected {
		m.FeedConnected.Store(1)
	} else {
		m.FeedConnected.Store(0)
	}
}

// Registry exposes the Prometheus registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// NewServer returns the metrics HTTP server listening on addr
func (m *Metrics) NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
