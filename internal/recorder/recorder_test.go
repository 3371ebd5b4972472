package recorder

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

func frame(seq uint64, names []string, values ...float32) *types.ChannelFrame {
	return &types.ChannelFrame{
		Seq:    seq,
		Time:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Names:  names,
		Values: values,
	}
}

func TestRecorderWritesCSV(t *testing.T) {
	m := metrics.New()
	r := NewRecorder(t.TempDir(), m)

	assert.True(t, r.SendFrame(frame(0, []string{"body_count"}, 0)), "idle recorder accepts frames")

	path, err := r.Start()
	require.NoError(t, err)
	assert.True(t, r.IsRecording())
	assert.Equal(t, uint64(1), m.RecordingActive.Load())

	small := []string{"body_count"}
	large := []string{"body_count", "body0/head:tx"}
	require.True(t, r.SendFrame(frame(1, small, 0)))
	// Equal names in a fresh slice keep the current header.
	require.True(t, r.SendFrame(frame(2, []string{"body_count"}, 0)))
	require.True(t, r.SendFrame(frame(3, large, 1, 0.5)))

	stopped, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, path, stopped)
	assert.False(t, r.IsRecording())
	assert.Equal(t, uint64(0), m.RecordingActive.Load())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"seq", "time", "body_count"},
		{"1", "2026-01-02T03:04:05Z", "0"},
		{"2", "2026-01-02T03:04:05Z", "0"},
		{"seq", "time", "body_count", "body0/head:tx"},
		{"3", "2026-01-02T03:04:05Z", "1", "0.5"},
	}, rows)

	status := r.Status()
	assert.Equal(t, uint64(3), status.FrameCount)
	assert.Equal(t, path, status.Filename)
	assert.NotEmpty(t, status.ID)
	assert.Positive(t, status.BytesWritten)
	assert.Equal(t, uint64(3), m.RecordingFrames.Load())
}

func TestRecorderStateErrors(t *testing.T) {
	r := NewRecorder(t.TempDir(), nil)

	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	_, err = r.Start()
	require.NoError(t, err)
	_, err = r.Start()
	assert.ErrorIs(t, err, ErrAlreadyRecording)

	require.NoError(t, r.Close())
	assert.False(t, r.IsRecording())
	assert.NoError(t, r.Close())
}

func TestRecorderDropsWhenBehind(t *testing.T) {
	r := NewRecorder(t.TempDir(), nil)
	_, err := r.Start()
	require.NoError(t, err)
	defer r.Close()

	names := []string{"body_count"}
	accepted, dropped := 0, 0
	for i := range frameBuffer * 50 {
		if r.SendFrame(frame(uint64(i), names, 0)) {
			accepted++
		} else {
			dropped++
		}
	}
	assert.Equal(t, frameBuffer*50, accepted+dropped)
	assert.GreaterOrEqual(t, accepted, frameBuffer)
}
