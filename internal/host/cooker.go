// Package host drives the channel operator the way a frame-based host would: once per
// tick it asks for the shape, every channel name and the samples, then hands the
// cooked frame to its sinks.
package host

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dj-oyu/pb-receiver/internal/chop"
	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/internal/metrics"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

// Sink receives cooked frames. SendFrame must not block; it returns false when the
// frame was dropped.
type Sink interface {
	SendFrame(frame *types.ChannelFrame) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(frame *types.ChannelFrame) bool

// SendFrame calls f.
func (f SinkFunc) SendFrame(frame *types.ChannelFrame) bool {
	return f(frame)
}

// Cooker cooks frames at a fixed rate.
type Cooker struct {
	op      *chop.Operator
	params  chop.Inputs
	fps     int
	metrics *metrics.Metrics

	mu    sync.RWMutex
	sinks map[string]Sink

	seq    uint64
	latest atomic.Pointer[types.ChannelFrame]
}

// NewCooker returns a cooker running op at fps frames per second. m may be nil.
func NewCooker(op *chop.Operator, params chop.Inputs, fps int, m *metrics.Metrics) *Cooker {
	if fps <= 0 {
		fps = 30
	}
	return &Cooker{
		op:      op,
		params:  params,
		fps:     fps,
		metrics: m,
		sinks:   make(map[string]Sink),
	}
}

// FPS returns the cook rate.
func (c *Cooker) FPS() int {
	return c.fps
}

// AddSink registers a sink under name, replacing any sink with the same name.
func (c *Cooker) AddSink(name string, s Sink) {
	c.mu.Lock()
	c.sinks[name] = s
	c.mu.Unlock()
	logger.Debug("Cooker", "Sink %s added", name)
}

// RemoveSink unregisters a sink.
func (c *Cooker) RemoveSink(name string) {
	c.mu.Lock()
	delete(c.sinks, name)
	c.mu.Unlock()
}

// Latest returns the last cooked frame, nil before the first cook.
func (c *Cooker) Latest() *types.ChannelFrame {
	return c.latest.Load()
}

// CookOnce runs one host frame and fans it out. It must not be called concurrently
// with itself or Run.
func (c *Cooker) CookOnce() *types.ChannelFrame {
	start := time.Now()

	info := c.op.OutputInfo(c.params)
	prev := c.latest.Load()

	names := make([]string, info.NumChannels)
	for i := range names {
		names[i] = c.op.ChannelName(i)
	}
	// Sinks compare layouts by slice; keep sharing the previous slice while it matches.
	if prev != nil && slices.Equal(prev.Names, names) {
		names = prev.Names
	}

	values := make([]float32, info.NumChannels)
	c.op.Execute(values)

	c.seq++
	frame := &types.ChannelFrame{
		Seq:    c.seq,
		Time:   start,
		Names:  names,
		Values: values,
		Bodies: len(c.op.Engine().Snapshot()),
	}
	c.latest.Store(frame)

	dropped := c.fanOut(frame)

	if c.metrics != nil {
		c.metrics.FramesCooked.Add(1)
		c.metrics.FramesDropped.Add(uint64(dropped))
		c.metrics.BodiesVisible.Store(uint64(frame.Bodies))
		c.metrics.ChannelCount.Store(uint64(len(values)))
		c.metrics.RegistrySize.Store(uint64(c.op.Engine().Registry().Len()))
		c.metrics.RegistryResets.Store(c.op.Resets())
		c.metrics.UpdateCookLatency(time.Since(start))
	}

	if prev == nil || len(prev.Names) != len(names) {
		logger.Debug("Cooker", "Frame %d: %d channels, %d bodies", frame.Seq, len(names), frame.Bodies)
	}
	return frame
}

func (c *Cooker) fanOut(frame *types.ChannelFrame) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	dropped := 0
	for _, s := range c.sinks {
		if !s.SendFrame(frame) {
			dropped++
		}
	}
	return dropped
}

// Run cooks frames until ctx is cancelled.
func (c *Cooker) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(c.fps)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Cooker", "Cooking at %d fps", c.fps)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cooker", "Stopped after %d frames", c.seq)
			return nil
		case <-ticker.C:
			c.CookOnce()
		}
	}
}
