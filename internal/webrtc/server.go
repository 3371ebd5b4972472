// Package webrtc streams cooked channel frames to browsers over WebRTC data channels.
package webrtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v3"

	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/pkg/types"
	"github.com/dj-oyu/pb-receiver/pkg/wire"
)

// ChannelLabel is the data channel label clients must open.
const ChannelLabel = "channels"

const clientBuffer = 30

// ErrTooManyClients is returned by HandleOffer when the client limit is reached.
var ErrTooManyClients = errors.New("maximum clients reached")

// Client represents a connected WebRTC client
type Client struct {
	id        string
	peerConn  *webrtc.PeerConnection
	frameChan chan *types.ChannelFrame
	closeChan chan struct{}
	open      atomic.Bool

	framesSent    atomic.Uint64
	framesDropped atomic.Uint64
}

// Server manages WebRTC connections
type Server struct {
	clients    map[string]*Client
	clientsMu  sync.RWMutex
	config     webrtc.Configuration
	maxClients int
	api        *webrtc.API
	metrics    *metrics.Metrics
}

// NewServer creates a new WebRTC server. A nil stunServers uses a public STUN server;
// an empty slice disables STUN. m may be nil.
func NewServer(stunServers []string, maxClients int, m *metrics.Metrics) *Server {
	if stunServers == nil {
		stunServers = []string{"stun:stun.l.google.com:19302"}
	}
	iceServers := make([]webrtc.ICEServer, 0, len(stunServers))
	for _, url := range stunServers {
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs: []string{url},
		})
	}

	settingsEngine := webrtc.SettingEngine{}
	settingsEngine.SetDTLSRetransmissionInterval(time.Second * 2)
	settingsEngine.SetNetworkTypes([]webrtc.NetworkType{
		webrtc.NetworkTypeUDP4,
		webrtc.NetworkTypeUDP6,
	})

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingsEngine))

	return &Server{
		clients: make(map[string]*Client),
		config: webrtc.Configuration{
			ICEServers: iceServers,
		},
		maxClients: maxClients,
		api:        api,
		metrics:    m,
	}
}

// HandleOffer handles a WebRTC offer and returns an answer. The offer must carry a
// data channel labelled ChannelLabel; frames flow once it opens.
func (s *Server) HandleOffer(offerJSON []byte) ([]byte, error) {
	var offer webrtc.SessionDescription
	if err := json.Unmarshal(offerJSON, &offer); err != nil {
		return nil, fmt.Errorf("failed to parse offer: %w", err)
	}

	if s.GetClientCount() >= s.maxClients {
		return nil, fmt.Errorf("%w (%d)", ErrTooManyClients, s.maxClients)
	}

	peerConn, err := s.api.NewPeerConnection(s.config)
	if err != nil {
		return nil, fmt.Errorf("failed to create peer connection: %w", err)
	}

	client := &Client{
		id:        uuid.New().String(),
		peerConn:  peerConn,
		frameChan: make(chan *types.ChannelFrame, clientBuffer),
		closeChan: make(chan struct{}),
	}

	// Registered before negotiation so a state change that fails the peer early
	// always finds the client to remove.
	if err := s.addClient(client); err != nil {
		peerConn.Close()
		return nil, err
	}

	peerConn.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != ChannelLabel {
			logger.Debug("WebRTC", "Client %s opened unknown data channel %q", client.id, dc.Label())
			return
		}
		dc.OnOpen(func() {
			if client.open.Swap(true) {
				return
			}
			logger.Info("WebRTC", "Client %s data channel open", client.id)
			go s.sendFrames(client, dc)
		})
		dc.OnClose(func() {
			s.RemoveClient(client.id)
		})
	})

	peerConn.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("WebRTC", "Client %s connection state: %s", client.id, state.String())

		if state == webrtc.PeerConnectionStateDisconnected ||
			state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed {
			logger.Info("WebRTC", "Client %s connection lost (Peer: %s), removing...", client.id, state.String())
			s.RemoveClient(client.id)
		}
	})

	if err := peerConn.SetRemoteDescription(offer); err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to set remote description: %w", err)
	}

	answer, err := peerConn.CreateAnswer(nil)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(peerConn)

	if err := peerConn.SetLocalDescription(answer); err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to set local description: %w", err)
	}

	<-gatherComplete
	logger.Debug("WebRTC", "ICE gathering complete for client %s", client.id)

	localDesc := peerConn.LocalDescription()
	if localDesc == nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("no local description available")
	}

	answerJSON, err := json.Marshal(localDesc)
	if err != nil {
		s.RemoveClient(client.id)
		return nil, fmt.Errorf("failed to marshal answer: %w", err)
	}

	logger.Info("WebRTC", "Client %s connected", client.id)
	return answerJSON, nil
}

// addClient registers a client unless the limit is reached.
func (s *Server) addClient(client *Client) error {
	s.clientsMu.Lock()
	if len(s.clients) >= s.maxClients {
		s.clientsMu.Unlock()
		return fmt.Errorf("%w (%d)", ErrTooManyClients, s.maxClients)
	}
	s.clients[client.id] = client
	count := len(s.clients)
	s.clientsMu.Unlock()

	s.setClientGauge(count)
	return nil
}

// SendFrame queues a frame for every open client without blocking. It returns false
// when any client dropped the frame.
func (s *Server) SendFrame(frame *types.ChannelFrame) bool {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	ok := true
	for _, client := range s.clients {
		if !client.open.Load() {
			continue
		}
		select {
		case client.frameChan <- frame:
		default:
			client.framesDropped.Add(1)
			ok = false
		}
	}
	return ok
}

// sendFrames writes queued frames to one client's data channel
func (s *Server) sendFrames(client *Client, dc *webrtc.DataChannel) {
	var buf []byte
	for {
		select {
		case <-client.closeChan:
			return

		case frame := <-client.frameChan:
			buf = wire.MarshalChannelFrame(buf[:0], frame)
			if err := dc.Send(buf); err != nil {
				logger.Warn("WebRTC", "Error sending frame to client %s: %v", client.id, err)
				s.RemoveClient(client.id)
				return
			}
			sent := client.framesSent.Add(1)
			if s.metrics != nil {
				s.metrics.WebRTCFramesOut.Add(1)
			}
			if sent%300 == 0 {
				logger.Debug("WebRTC", "Sent %d frames to client %s (last seq=%d)", sent, client.id, frame.Seq)
			}
		}
	}
}

// RemoveClient removes a client by ID
func (s *Server) RemoveClient(clientID string) {
	s.clientsMu.Lock()
	client, exists := s.clients[clientID]
	if exists {
		delete(s.clients, clientID)
	}
	count := len(s.clients)
	s.clientsMu.Unlock()

	if !exists {
		return
	}
	s.setClientGauge(count)

	close(client.closeChan)
	if err := client.peerConn.Close(); err != nil {
		logger.Debug("WebRTC", "Client %s close: %v", clientID, err)
	}

	logger.Info("WebRTC", "Client %s disconnected (sent: %d, dropped: %d)",
		clientID, client.framesSent.Load(), client.framesDropped.Load())
}

// GetClientCount returns the number of connected clients
func (s *Server) GetClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// ClientStats holds per-client counters
type ClientStats struct {
	Open          bool   `json:"open"`
	FramesSent    uint64 `json:"frames_sent"`
	FramesDropped uint64 `json:"frames_dropped"`
}

// GetClientStats returns stats for all clients
func (s *Server) GetClientStats() map[string]ClientStats {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	stats := make(map[string]ClientStats, len(s.clients))
	for id, client := range s.clients {
		stats[id] = ClientStats{
			Open:          client.open.Load(),
			FramesSent:    client.framesSent.Load(),
			FramesDropped: client.framesDropped.Load(),
		}
	}
	return stats
}

// Close closes all client connections
func (s *Server) Close() error {
	s.clientsMu.RLock()
	ids := make([]string, 0, len(s.clients))
	for id := range s.clients {
		ids = append(ids, id)
	}
	s.clientsMu.RUnlock()

	for _, id := range ids {
		s.RemoveClient(id)
	}
	return nil
}

func (s *Server) setClientGauge(count int) {
	if s.metrics != nil {
		s.metrics.WebRTCClients.Store(uint64(count))
	}
}
