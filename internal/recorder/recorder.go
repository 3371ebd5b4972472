// Package recorder writes cooked channel frames to CSV files.
package recorder

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

var (
	ErrAlreadyRecording = errors.New("already recording")
	ErrNotRecording     = errors.New("not recording")
)

const frameBuffer = 60

// Recorder records channel frames to file
type Recorder struct {
	mu        sync.RWMutex
	basePath  string
	recording bool
	session   *session
	id        string
	filename  string
	startTime time.Time

	frameCount   atomic.Uint64
	bytesWritten atomic.Uint64

	metrics *metrics.Metrics
}

type session struct {
	file   *os.File
	buf    *bufio.Writer
	csv    *csv.Writer
	frames chan *types.ChannelFrame
	done   chan struct{}
	header []string
	err    error
}

// NewRecorder creates a recorder writing into basePath. m may be nil.
func NewRecorder(basePath string, m *metrics.Metrics) *Recorder {
	return &Recorder{
		basePath: basePath,
		metrics:  m,
	}
}

// Start starts recording to a new file and returns its path
func (r *Recorder) Start() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		return "", ErrAlreadyRecording
	}

	if err := os.MkdirAll(r.basePath, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording dir: %w", err)
	}

	id := uuid.New().String()
	timestamp := time.Now().Format("20060102_150405")
	path := filepath.Join(r.basePath, fmt.Sprintf("recording_%s_%s.csv", timestamp, id[:8]))

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	buf := bufio.NewWriter(io.MultiWriter(file, countingWriter{&r.bytesWritten}))
	sess := &session{
		file:   file,
		buf:    buf,
		csv:    csv.NewWriter(buf),
		frames: make(chan *types.ChannelFrame, frameBuffer),
		done:   make(chan struct{}),
	}

	r.session = sess
	r.id = id
	r.filename = path
	r.recording = true
	r.startTime = time.Now()
	r.frameCount.Store(0)
	r.bytesWritten.Store(0)
	if r.metrics != nil {
		r.metrics.RecordingActive.Store(1)
	}

	go r.writeFrames(sess)

	logger.Info("Recorder", "Recording started: %s", path)
	return path, nil
}

// Stop stops recording, flushes the file and returns its path
func (r *Recorder) Stop() (string, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	sess := r.session
	r.recording = false
	r.session = nil
	filename := r.filename
	close(sess.frames)
	r.mu.Unlock()

	<-sess.done

	if r.metrics != nil {
		r.metrics.RecordingActive.Store(0)
	}

	sess.csv.Flush()
	err := errors.Join(sess.err, sess.csv.Error(), sess.buf.Flush())
	if syncErr := sess.file.Sync(); syncErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to sync file: %w", syncErr))
	}
	if closeErr := sess.file.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close file: %w", closeErr))
	}

	logger.Info("Recorder", "Recording stopped: %s (%d frames, %d bytes)",
		filename, r.frameCount.Load(), r.bytesWritten.Load())
	return filename, err
}

// SendFrame queues a frame for writing without blocking. It returns false only when
// the frame was dropped because the writer is behind.
func (r *Recorder) SendFrame(frame *types.ChannelFrame) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.recording {
		return true
	}

	select {
	case r.session.frames <- frame:
		return true
	default:
		return false
	}
}

func (r *Recorder) writeFrames(sess *session) {
	defer close(sess.done)

	for frame := range sess.frames {
		if sess.err != nil {
			continue
		}
		if err := r.writeFrame(sess, frame); err != nil {
			logger.Error("Recorder", "Write failed, dropping remaining frames: %v", err)
			sess.err = err
		}
	}
}

// writeFrame writes one row, preceded by a header row when the channel layout changed
func (r *Recorder) writeFrame(sess *session, frame *types.ChannelFrame) error {
	if sess.header == nil || !slices.Equal(sess.header, frame.Names) {
		header := make([]string, 0, len(frame.Names)+2)
		header = append(header, "seq", "time")
		header = append(header, frame.Names...)
		if err := sess.csv.Write(header); err != nil {
			return err
		}
		sess.header = frame.Names
	}

	row := make([]string, 0, len(frame.Values)+2)
	row = append(row,
		strconv.FormatUint(frame.Seq, 10),
		frame.Time.UTC().Format(time.RFC3339Nano),
	)
	for _, v := range frame.Values {
		row = append(row, strconv.FormatFloat(float64(v), 'g', -1, 32))
	}
	if err := sess.csv.Write(row); err != nil {
		return err
	}

	n := r.frameCount.Add(1)
	if r.metrics != nil {
		r.metrics.RecordingFrames.Store(n)
		r.metrics.RecordingBytes.Store(r.bytesWritten.Load())
	}
	return nil
}

// IsRecording returns true if currently recording
func (r *Recorder) IsRecording() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.recording
}

// Status returns the current recording status
func (r *Recorder) Status() RecordingStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var duration time.Duration
	if r.recording {
		duration = time.Since(r.startTime)
	}

	return RecordingStatus{
		Recording:    r.recording,
		ID:           r.id,
		Filename:     r.filename,
		FrameCount:   r.frameCount.Load(),
		BytesWritten: r.bytesWritten.Load(),
		DurationMs:   duration.Milliseconds(),
		StartTime:    r.startTime,
	}
}

// Close stops any active recording
func (r *Recorder) Close() error {
	if r.IsRecording() {
		_, err := r.Stop()
		return err
	}
	return nil
}

// RecordingStatus holds the current recording status
type RecordingStatus struct {
	Recording    bool      `json:"recording"`
	ID           string    `json:"id,omitempty"`
	Filename     string    `json:"filename"`
	FrameCount   uint64    `json:"frame_count"`
	BytesWritten uint64    `json:"bytes_written"`
	DurationMs   int64     `json:"duration_ms"`
	StartTime    time.Time `json:"start_time"`
}

type countingWriter struct {
	n *atomic.Uint64
}

func (w countingWriter) Write(p []byte) (int, error) {
	w.n.Add(uint64(len(p)))
	return len(p), nil
}
