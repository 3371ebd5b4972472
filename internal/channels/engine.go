package channels

import "github.com/dj-oyu/pb-receiver/pkg/types"

// Engine answers the per-frame shape, name and fill queries against a snapshot captured
// at shape time. It is driven by a single goroutine.
type Engine struct {
	registry *Registry

	cfg      Config
	snapshot []*types.Body
	layout   Layout
}

// NewEngine returns an engine naming bodies through reg. A nil reg gets a fresh registry.
func NewEngine(reg *Registry) *Engine {
	if reg == nil {
		reg = NewRegistry()
	}
	return &Engine{
		registry: reg,
		layout:   ComputeLayout(Config{}, 0),
	}
}

// QueryShape starts a frame. The snapshot must not change until the next QueryShape.
// It returns the number of channels for the frame.
func (e *Engine) QueryShape(snapshot []*types.Body, cfg Config) int {
	e.snapshot = snapshot
	e.cfg = cfg
	e.layout = ComputeLayout(cfg, len(snapshot))
	return e.layout.Total
}

// QueryChannelName names channel i of the current frame.
func (e *Engine) QueryChannelName(i int) string {
	return ChannelName(i, e.layout, e.cfg, e.registry, e.snapshot)
}

// Fill writes the current frame into buf.
func (e *Engine) Fill(buf []float32) {
	Fill(buf, e.cfg, e.snapshot)
}

// Reset clears the body registry. Call it between frames only.
func (e *Engine) Reset() {
	e.registry.Reset()
}

// Layout returns the layout computed by the last QueryShape.
func (e *Engine) Layout() Layout {
	return e.layout
}

// Config returns the configuration captured by the last QueryShape.
func (e *Engine) Config() Config {
	return e.cfg
}

// Snapshot returns the bodies captured by the last QueryShape.
func (e *Engine) Snapshot() []*types.Body {
	return e.snapshot
}

// Registry returns the engine's body registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}
