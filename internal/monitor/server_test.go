package monitor

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/pb-receiver/internal/feed"
	"github.com/dj-oyu/pb-receiver/pkg/wire"
)

func TestIndexAndHealth(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(body), "/api/channels/stream")

	resp, _ = env.get(t, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeJSONMap(t, body)["status"])
}

func TestStatusReportsFeedAndCook(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.get(t, "/api/status")
	payload := decodeJSONMap(t, body)
	assert.Equal(t, feed.SearchingWarning, payload["warning"])
	outputs := payload["outputs"].(map[string]any)
	assert.Equal(t, true, outputs["positions"])
	assert.Equal(t, false, outputs["orientations"])

	env.status.Apply(feed.Event{Kind: feed.Connected, Source: "10.0.0.2:5005"})
	env.source.set(11, 12)
	env.cooker.CookOnce()

	_, body = env.get(t, "/api/status")
	payload = decodeJSONMap(t, body)
	assert.Nil(t, payload["warning"])
	cook := payload["cook"].(map[string]any)
	assert.EqualValues(t, 2, cook["bodies"])
	assert.EqualValues(t, 1+2*45, cook["channels"])
	assert.EqualValues(t, 2, cook["registry_size"])
	feedStats := payload["feed"].(map[string]any)
	assert.Equal(t, true, feedStats["connected"])
	assert.Equal(t, "10.0.0.2:5005", feedStats["source"])
}

func TestChannelsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/channels")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	env.source.set(3)
	env.cooker.CookOnce()

	resp, body := env.get(t, "/api/channels")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeJSONMap(t, body)
	names := payload["names"].([]any)
	values := payload["values"].([]any)
	require.Len(t, names, 46)
	require.Len(t, values, 46)
	assert.Equal(t, "body_count", names[0])
	assert.Equal(t, "body0/neck:ty", names[5])
	assert.EqualValues(t, 1, values[0])
}

func TestParamsUpdateChangesLayout(t *testing.T) {
	env := newTestEnv(t)
	env.source.set(1)

	resp, body := env.get(t, "/api/params")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	params := decodeJSONMap(t, body)["parameters"].([]any)
	require.Len(t, params, 4)
	first := params[0].(map[string]any)
	assert.Equal(t, "Pboutputpositions", first["name"])
	assert.EqualValues(t, 1, first["value"])

	resp, body = env.post(t, "/api/params", map[string]bool{"orientations": true, "confidences": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	outputs := decodeJSONMap(t, body)["outputs"].(map[string]any)
	assert.Equal(t, true, outputs["positions"])
	assert.Equal(t, true, outputs["orientations"])
	assert.Equal(t, true, outputs["confidences"])

	frame := env.cooker.CookOnce()
	assert.Equal(t, 1+15*8, frame.NumChannels())

	resp, _ = env.post(t, "/api/params", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestResetIsAppliedOnNextCook(t *testing.T) {
	env := newTestEnv(t)
	env.source.set(1, 2)
	env.cooker.CookOnce()
	env.source.set(2)

	resp, _ := env.get(t, "/api/reset")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, body := env.post(t, "/api/reset", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "pending", decodeJSONMap(t, body)["status"])

	frame := env.cooker.CookOnce()
	assert.Equal(t, "body0/head:tx", frame.Names[1])
	assert.Equal(t, uint64(1), env.operator.Resets())
}

func TestPreviewIsPNG(t *testing.T) {
	env := newTestEnv(t)
	env.source.set(1, 2)
	env.cooker.CookOnce()

	resp, body := env.get(t, "/api/preview.png")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 640, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())
}

func TestRecordingEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.post(t, "/api/recording/stop", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := env.post(t, "/api/recording/start", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeJSONMap(t, body)
	assert.Equal(t, "recording", payload["status"])
	assert.True(t, strings.HasSuffix(payload["file"].(string), ".csv"))

	resp, _ = env.post(t, "/api/recording/start", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.get(t, "/api/recording/status")
	assert.Equal(t, true, decodeJSONMap(t, body)["recording"])

	resp, body = env.post(t, "/api/recording/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "stopped", decodeJSONMap(t, body)["status"])
}

func TestWebRTCOfferErrors(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := env.get(t, "/api/webrtc/offer")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = env.post(t, "/api/webrtc/offer", map[string]string{"sdp": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The test server allows no clients.
	resp, _ = env.post(t, "/api/webrtc/offer", map[string]string{"type": "offer", "sdp": "v=0"})
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestChannelStreamJSON(t *testing.T) {
	env := newTestEnv(t)
	env.source.set(9)

	event, header := env.streamOne(t, "")
	assert.Contains(t, header.Get("Content-Type"), "text/event-stream")
	assert.Equal(t, "application/json", header.Get("X-Content-Format"))

	payload := decodeJSONMap(t, []byte(sseData(t, event)))
	assert.EqualValues(t, 1, payload["bodies"])
	assert.Len(t, payload["names"], 46)
}

func TestChannelStreamProtobuf(t *testing.T) {
	env := newTestEnv(t)
	env.source.set(9, 10)

	event, header := env.streamOne(t, "application/x-protobuf")
	assert.Equal(t, "application/protobuf", header.Get("X-Content-Format"))

	raw, err := base64.StdEncoding.DecodeString(sseData(t, event))
	require.NoError(t, err)
	frame, err := wire.UnmarshalChannelFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Bodies)
	assert.Equal(t, 1+2*45, frame.NumChannels())
	assert.Equal(t, "body1/head:tx", frame.Names[46])
}
