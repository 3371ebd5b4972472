package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/internal/chop"
	"github.com/dj-oyu/pb-receiver/internal/feed"
	"github.com/dj-oyu/pb-receiver/internal/host"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/internal/recorder"
	"github.com/dj-oyu/pb-receiver/internal/webrtc"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

const requestTimeout = 2 * time.Second

type bodySource struct {
	mu     sync.Mutex
	bodies []*types.Body
}

func (s *bodySource) set(uids ...types.BodyUID) {
	bodies := make([]*types.Body, len(uids))
	for i, uid := range uids {
		b := &types.Body{UID: uid}
		for j := range b.Joints {
			b.Joints[j].Position = types.Vec3{X: float32(i), Y: float32(j) / 10, Z: 1}
			b.Joints[j].PositionConfidence = 1
		}
		bodies[i] = b
	}
	s.mu.Lock()
	s.bodies = bodies
	s.mu.Unlock()
}

func (s *bodySource) Subset() []*types.Body {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Body, len(s.bodies))
	copy(out, s.bodies)
	return out
}

type testEnv struct {
	server   *Server
	cooker   *host.Cooker
	operator *chop.Operator
	params   *chop.Parameters
	status   *feed.Status
	source   *bodySource
	metrics  *metrics.Metrics
	baseURL  string
	client   *http.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	m := metrics.New()
	src := &bodySource{}
	params := chop.NewParameters()
	status := feed.NewStatus(nil)
	op := chop.NewOperator(channels.NewEngine(nil), src, status)
	cooker := host.NewCooker(op, params, 30, m)

	srv := NewServer(Config{KeepAlive: time.Second}, Deps{
		Cooker:   cooker,
		Operator: op,
		Params:   params,
		Status:   status,
		Recorder: recorder.NewRecorder(t.TempDir(), m),
		WebRTC:   webrtc.NewServer([]string{}, 0, m),
		Metrics:  m,
	})
	cooker.AddSink("stream", srv.Broadcaster())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})

	return &testEnv{
		server:   srv,
		cooker:   cooker,
		operator: op,
		params:   params,
		status:   status,
		source:   src,
		metrics:  m,
		baseURL:  ts.URL,
		client:   &http.Client{Timeout: requestTimeout},
	}
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := e.client.Get(e.baseURL + path)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, body
}

func (e *testEnv) post(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	}
	resp, err := e.client.Post(e.baseURL+path, "application/json", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	_ = resp.Body.Close()
	return resp, respBody
}

// readSSEEvent returns the first data event of an SSE stream, skipping keepalives.
func readSSEEvent(url, accept string, timeout time.Duration) (string, http.Header, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build request: %w", err)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	buf := make([]byte, 0, 4096)
	tmp := make([]byte, 256)
	for {
		n, readErr := resp.Body.Read(tmp)
		if n > 0 {
			buf = append(buf, tmp[:n]...)
			for {
				idx := bytes.Index(buf, []byte("\n\n"))
				if idx < 0 {
					break
				}
				event := string(buf[:idx])
				buf = buf[idx+2:]
				if strings.HasPrefix(event, "data:") {
					return event, resp.Header, nil
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return "", nil, fmt.Errorf("sse stream closed before event")
			}
			return "", nil, fmt.Errorf("read sse: %w", readErr)
		}
	}
}

func sseData(t *testing.T, event string) string {
	t.Helper()
	for _, line := range strings.Split(event, "\n") {
		if strings.HasPrefix(line, "data:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	t.Fatalf("no data line in sse event: %q", event)
	return ""
}

// streamOne opens an SSE stream and cooks frames until the first event arrives.
func (e *testEnv) streamOne(t *testing.T, accept string) (string, http.Header) {
	t.Helper()

	type result struct {
		event  string
		header http.Header
		err    error
	}
	done := make(chan result, 1)
	go func() {
		event, header, err := readSSEEvent(e.baseURL+"/api/channels/stream", accept, 3*time.Second)
		done <- result{event, header, err}
	}()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case res := <-done:
			if res.err != nil {
				t.Fatalf("channel stream error: %v", res.err)
			}
			return res.event, res.header
		case <-ticker.C:
			e.cooker.CookOnce()
		}
	}
}

func decodeJSONMap(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode json: %v\nbody=%s", err, string(body))
	}
	return payload
}
