package monitor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"time"

	"github.com/dj-oyu/pb-receiver/internal/chop"
	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/recorder"
	"github.com/dj-oyu/pb-receiver/internal/webrtc"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

const maxBodyBytes = 64 << 10

// Server serves the monitor endpoints.
type Server struct {
	cfg         Config
	deps        Deps
	monitor     *Monitor
	broadcaster *FrameBroadcaster
}

// NewServer returns a configured monitor server. Register Broadcaster() as a cook sink
// to feed the channel stream.
func NewServer(cfg Config, deps Deps) *Server {
	monitor := NewMonitor(deps)
	return &Server{
		cfg:         cfg.withDefaults(),
		deps:        monitor.deps,
		monitor:     monitor,
		broadcaster: NewFrameBroadcaster(monitor.deps.Metrics),
	}
}

// Broadcaster returns the SSE fan-out.
func (s *Server) Broadcaster() *FrameBroadcaster {
	return s.broadcaster
}

// Monitor returns the status aggregator.
func (s *Server) Monitor() *Monitor {
	return s.monitor
}

// Close ends every open stream so the HTTP server can shut down.
func (s *Server) Close() {
	s.broadcaster.Close()
}

// Handler exposes the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/status/stream", s.handleStatusStream)
	mux.HandleFunc("/api/channels", s.handleChannels)
	mux.HandleFunc("/api/channels/stream", s.handleChannelsStream)
	mux.HandleFunc("/api/params", s.handleParams)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/preview.png", s.handlePreview)
	mux.HandleFunc("/api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("/api/recording/stop", s.handleRecordingStop)
	mux.HandleFunc("/api/recording/status", s.handleRecordingStatus)
	mux.HandleFunc("/api/webrtc/offer", s.handleWebRTCOffer)

	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.monitor.Snapshot())
}

func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		if err := writeSSE(w, s.monitor.Snapshot()); err != nil {
			return
		}
		flusher.Flush()

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	frame := s.latestFrame()
	if frame == nil {
		writeJSONWithStatus(w, map[string]any{"error": "no frame cooked yet"}, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, newFrameJSON(frame))
}

func (s *Server) handleChannelsStream(w http.ResponseWriter, r *http.Request) {
	id, eventCh := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	streamEventsFromChannel(w, r, eventCh, wantsProtobuf(r), s.cfg.KeepAlive)
}

type paramsUpdate struct {
	Positions    *bool `json:"positions"`
	Orientations *bool `json:"orientations"`
	Confidences  *bool `json:"confidences"`
}

type paramState struct {
	chop.Parameter
	Value int `json:"value"`
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	params := s.deps.Params
	if params == nil {
		writeJSONWithStatus(w, map[string]any{"error": "parameters are not configured"}, http.StatusServiceUnavailable)
		return
	}

	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		var update paramsUpdate
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&update); err != nil {
			writeJSONWithStatus(w, map[string]any{"error": "Invalid parameter data"}, http.StatusBadRequest)
			return
		}
		cfg := params.Outputs()
		if update.Positions != nil {
			cfg.Positions = *update.Positions
		}
		if update.Orientations != nil {
			cfg.Orientations = *update.Orientations
		}
		if update.Confidences != nil {
			cfg.Confidences = *update.Confidences
		}
		params.SetOutputs(cfg)
		logger.Info("Monitor", "Outputs set: positions=%t orientations=%t confidences=%t",
			cfg.Positions, cfg.Orientations, cfg.Confidences)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	decl := chop.Declarations()
	states := make([]paramState, len(decl))
	for i, p := range decl {
		states[i] = paramState{Parameter: p, Value: params.ParInt(p.Name)}
	}
	writeJSON(w, map[string]any{
		"outputs":    params.Outputs(),
		"parameters": states,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Operator == nil {
		writeJSONWithStatus(w, map[string]any{"error": "operator is not configured"}, http.StatusServiceUnavailable)
		return
	}
	s.deps.Operator.PulsePressed(chop.ParResetIndexes)
	writeJSON(w, map[string]any{"status": "pending"})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	warning := ""
	if s.deps.Operator != nil {
		warning = s.deps.Operator.WarningString()
	}
	img := RenderPreview(s.latestFrame(), s.cfg.PreviewWidth, s.cfg.PreviewHeight, warning)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		http.Error(w, "Failed to render preview", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Recorder == nil {
		writeJSONWithStatus(w, map[string]any{"error": "recorder is not configured"}, http.StatusServiceUnavailable)
		return
	}

	filename, err := s.deps.Recorder.Start()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, recorder.ErrAlreadyRecording) {
			status = http.StatusBadRequest
		}
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	writeJSON(w, map[string]any{
		"status":     "recording",
		"file":       filename,
		"started_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Recorder == nil {
		writeJSONWithStatus(w, map[string]any{"error": "recorder is not configured"}, http.StatusServiceUnavailable)
		return
	}

	filename, err := s.deps.Recorder.Stop()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, recorder.ErrNotRecording) {
			status = http.StatusBadRequest
		}
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	writeJSON(w, map[string]any{
		"status":     "stopped",
		"file":       filename,
		"stats":      s.deps.Recorder.Status(),
		"stopped_at": float64(time.Now().Unix()),
	})
}

func (s *Server) handleRecordingStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recorder == nil {
		writeJSON(w, recorder.RecordingStatus{})
		return
	}
	writeJSON(w, s.deps.Recorder.Status())
}

func (s *Server) handleWebRTCOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.deps.WebRTC == nil {
		writeJSONWithStatus(w, map[string]any{"error": "WebRTC is disabled"}, http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil || payload["sdp"] == nil || payload["type"] == nil {
		writeJSONWithStatus(w, map[string]any{"error": "Invalid offer data"}, http.StatusBadRequest)
		return
	}

	answer, err := s.deps.WebRTC.HandleOffer(body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, webrtc.ErrTooManyClients) {
			status = http.StatusServiceUnavailable
		}
		logger.Warn("Monitor", "WebRTC offer failed: %v", err)
		writeJSONWithStatus(w, map[string]any{"error": err.Error()}, status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(answer)
}

func (s *Server) latestFrame() *types.ChannelFrame {
	if s.deps.Cooker == nil {
		return nil
	}
	return s.deps.Cooker.Latest()
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONWithStatus(w, payload, http.StatusOK)
}

func writeJSONWithStatus(w http.ResponseWriter, payload any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		_, _ = fmt.Fprintf(w, `{"error":"%s"}`, err.Error())
	}
}
