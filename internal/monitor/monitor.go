// Package monitor serves the HTTP surface of the receiver: status, the live channel
// stream, operator parameters, a skeleton preview, recording control and WebRTC
// signalling.
package monitor

import (
	"time"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/internal/chop"
	"github.com/dj-oyu/pb-receiver/internal/feed"
	"github.com/dj-oyu/pb-receiver/internal/host"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/internal/recorder"
	"github.com/dj-oyu/pb-receiver/internal/webrtc"
)

// Deps are the components the monitor reports on and controls. Recorder and WebRTC
// may be nil.
type Deps struct {
	Cooker   *host.Cooker
	Operator *chop.Operator
	Params   *chop.Parameters
	Status   *feed.Status
	Recorder *recorder.Recorder
	WebRTC   *webrtc.Server
	Metrics  *metrics.Metrics
}

// Monitor assembles status snapshots from the running components.
type Monitor struct {
	deps      Deps
	startTime time.Time
}

// NewMonitor creates a Monitor. A nil Metrics gets a private instance.
func NewMonitor(deps Deps) *Monitor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	return &Monitor{
		deps:      deps,
		startTime: time.Now(),
	}
}

// FeedStats is the tracking feed part of the status.
type FeedStats struct {
	feed.StatusSnapshot
	Packets  uint64 `json:"packets"`
	Rejected uint64 `json:"rejected"`
}

// CookStats is the cook loop part of the status.
type CookStats struct {
	FPS            int     `json:"target_fps"`
	FramesCooked   uint64  `json:"frames_cooked"`
	FramesDropped  uint64  `json:"frames_dropped"`
	LastSeq        uint64  `json:"last_seq"`
	Bodies         int     `json:"bodies"`
	Channels       int     `json:"channels"`
	CookLatencyMs  float64 `json:"cook_latency_ms"`
	RegistrySize   uint64  `json:"registry_size"`
	RegistryResets uint64  `json:"registry_resets"`
}

// StatusPayload is the body of /api/status.
type StatusPayload struct {
	Feed          FeedStats                 `json:"feed"`
	Cook          CookStats                 `json:"cook"`
	Outputs       channels.Config           `json:"outputs"`
	Warning       string                    `json:"warning,omitempty"`
	StreamClients uint64                    `json:"stream_clients"`
	WebRTCClients int                       `json:"webrtc_clients"`
	Recording     *recorder.RecordingStatus `json:"recording,omitempty"`
	UptimeSec     float64                   `json:"uptime_sec"`
	Timestamp     float64                   `json:"timestamp"`
}

// Snapshot returns the current status.
func (m *Monitor) Snapshot() StatusPayload {
	met := m.deps.Metrics
	now := time.Now()

	payload := StatusPayload{
		Feed: FeedStats{
			Packets:  met.FeedPackets.Load(),
			Rejected: met.FeedRejected.Load(),
		},
		Cook: CookStats{
			FramesCooked:   met.FramesCooked.Load(),
			FramesDropped:  met.FramesDropped.Load(),
			CookLatencyMs:  float64(met.CookLatencyUs.Load()) / 1000,
			RegistrySize:   met.RegistrySize.Load(),
			RegistryResets: met.RegistryResets.Load(),
		},
		StreamClients: met.StreamClients.Load(),
		UptimeSec:     now.Sub(m.startTime).Seconds(),
		Timestamp:     float64(now.UnixNano()) / 1e9,
	}

	if m.deps.Status != nil {
		payload.Feed.StatusSnapshot = m.deps.Status.Snapshot()
	}
	if m.deps.Operator != nil {
		payload.Warning = m.deps.Operator.WarningString()
	}
	if m.deps.Params != nil {
		payload.Outputs = m.deps.Params.Outputs()
	}
	if c := m.deps.Cooker; c != nil {
		payload.Cook.FPS = c.FPS()
		if frame := c.Latest(); frame != nil {
			payload.Cook.LastSeq = frame.Seq
			payload.Cook.Bodies = frame.Bodies
			payload.Cook.Channels = frame.NumChannels()
		}
	}
	if m.deps.WebRTC != nil {
		payload.WebRTCClients = m.deps.WebRTC.GetClientCount()
	}
	if m.deps.Recorder != nil {
		status := m.deps.Recorder.Status()
		payload.Recording = &status
	}
	return payload
}
