package monitor

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strconv"
	"sync"

	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/pkg/types"
	"github.com/dj-oyu/pb-receiver/pkg/wire"
)

// SerializedEvent holds pre-serialized data in both formats.
// This avoids redundant serialization when broadcasting to multiple clients.
type SerializedEvent struct {
	JSONData     []byte // Pre-serialized JSON
	ProtobufData []byte // Pre-serialized protobuf, base64 encoded for SSE
}

// FrameBroadcaster fans cooked frames out to SSE clients. It is a cook sink.
type FrameBroadcaster struct {
	mu      sync.Mutex
	clients map[int]chan *SerializedEvent
	nextID  int
	closed  bool
	metrics *metrics.Metrics
}

// NewFrameBroadcaster creates a broadcaster. m may be nil.
func NewFrameBroadcaster(m *metrics.Metrics) *FrameBroadcaster {
	return &FrameBroadcaster{
		clients: make(map[int]chan *SerializedEvent),
		metrics: m,
	}
}

// Subscribe adds a new client and returns a channel for receiving events. After Close
// the returned channel is already closed.
func (fb *FrameBroadcaster) Subscribe() (int, <-chan *SerializedEvent) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	id := fb.nextID
	fb.nextID++
	ch := make(chan *SerializedEvent, 2)
	if fb.closed {
		close(ch)
		return id, ch
	}
	fb.clients[id] = ch
	fb.setGaugeLocked()

	logger.Debug("FrameBroadcaster", "Client #%d subscribed (total clients: %d)", id, len(fb.clients))
	return id, ch
}

// Unsubscribe removes a client.
func (fb *FrameBroadcaster) Unsubscribe(id int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if ch, ok := fb.clients[id]; ok {
		close(ch)
		delete(fb.clients, id)
		fb.setGaugeLocked()
		logger.Debug("FrameBroadcaster", "Client #%d unsubscribed (remaining clients: %d)", id, len(fb.clients))
	}
}

// ClientCount returns the number of subscribed clients.
func (fb *FrameBroadcaster) ClientCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.clients)
}

// Close disconnects every client and rejects new ones.
func (fb *FrameBroadcaster) Close() {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if fb.closed {
		return
	}
	fb.closed = true
	for id, ch := range fb.clients {
		close(ch)
		delete(fb.clients, id)
	}
	fb.setGaugeLocked()
}

// SendFrame serializes the frame once and offers it to every client without blocking.
// It returns false when a client was too slow to take it.
func (fb *FrameBroadcaster) SendFrame(frame *types.ChannelFrame) bool {
	if fb.ClientCount() == 0 {
		return true
	}

	event, err := serializeFrame(frame)
	if err != nil {
		logger.Error("FrameBroadcaster", "Serialize error: %v", err)
		return true
	}
	return fb.broadcast(event)
}

func (fb *FrameBroadcaster) broadcast(event *SerializedEvent) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	ok := true
	for _, ch := range fb.clients {
		select {
		case ch <- event:
		default:
			ok = false
		}
	}
	return ok
}

func (fb *FrameBroadcaster) setGaugeLocked() {
	if fb.metrics != nil {
		fb.metrics.StreamClients.Store(uint64(len(fb.clients)))
	}
}

func serializeFrame(frame *types.ChannelFrame) (*SerializedEvent, error) {
	jsonData, err := json.Marshal(newFrameJSON(frame))
	if err != nil {
		return nil, err
	}

	pbData := wire.MarshalChannelFrame(nil, frame)
	pbBase64 := make([]byte, base64.StdEncoding.EncodedLen(len(pbData)))
	base64.StdEncoding.Encode(pbBase64, pbData)

	return &SerializedEvent{
		JSONData:     jsonData,
		ProtobufData: pbBase64,
	}, nil
}

// frameJSON is the JSON shape of a channel frame.
type frameJSON struct {
	Seq       uint64      `json:"seq"`
	Timestamp float64     `json:"timestamp"`
	Bodies    int         `json:"bodies"`
	Names     []string    `json:"names"`
	Values    []jsonFloat `json:"values"`
}

func newFrameJSON(frame *types.ChannelFrame) frameJSON {
	values := make([]jsonFloat, len(frame.Values))
	for i, v := range frame.Values {
		values[i] = jsonFloat(v)
	}
	names := frame.Names
	if names == nil {
		names = []string{}
	}
	return frameJSON{
		Seq:       frame.Seq,
		Timestamp: float64(frame.Time.UnixNano()) / 1e9,
		Bodies:    frame.Bodies,
		Names:     names,
		Values:    values,
	}
}

// jsonFloat encodes NaN and infinities as null, which encoding/json refuses to write.
type jsonFloat float32

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 32), nil
}
