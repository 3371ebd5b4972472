// Package chop adapts the channel engine to a frame-based host operator: the host asks
// for general info, then per frame for the output shape, every channel name and
// finally the samples.
package chop

import (
	"sync/atomic"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/internal/logger"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

// BodySource supplies the bodies visible at the start of a frame.
type BodySource interface {
	Subset() []*types.Body
}

// Warner supplies the warning shown on the operator, empty when there is none.
type Warner interface {
	Warning() string
}

// GeneralInfo tells the host how to schedule the operator.
type GeneralInfo struct {
	CookEveryFrame        bool
	CookEveryFrameIfAsked bool
	Timeslice             bool
}

// OutputInfo is the shape of the next frame.
type OutputInfo struct {
	NumChannels int
	NumSamples  int
	StartIndex  int
}

// Operator is the host-facing side of the engine. All methods except PulsePressed
// must be called from the cook goroutine.
type Operator struct {
	engine *channels.Engine
	bodies BodySource
	warner Warner

	resetPending atomic.Bool
	resets       atomic.Uint64
}

// NewOperator returns an operator reading bodies from src. warner may be nil.
func NewOperator(engine *channels.Engine, src BodySource, warner Warner) *Operator {
	return &Operator{
		engine: engine,
		bodies: src,
		warner: warner,
	}
}

// GeneralInfo returns the scheduling info: cook every frame, one sample, no timeslice.
func (o *Operator) GeneralInfo() GeneralInfo {
	return GeneralInfo{
		CookEveryFrame:        true,
		CookEveryFrameIfAsked: true,
		Timeslice:             false,
	}
}

// OutputInfo starts a frame: it applies a pending index reset, reads the output
// toggles and takes the frame's body snapshot.
func (o *Operator) OutputInfo(in Inputs) OutputInfo {
	if o.resetPending.Swap(false) {
		o.engine.Reset()
		o.resets.Add(1)
		logger.Info("Operator", "Body indexes reset")
	}

	cfg := OutputsFrom(in)
	total := o.engine.QueryShape(o.bodies.Subset(), cfg)

	return OutputInfo{
		NumChannels: total,
		NumSamples:  1,
		StartIndex:  0,
	}
}

// ChannelName returns the name of channel index for the current frame.
func (o *Operator) ChannelName(index int) string {
	return o.engine.QueryChannelName(index)
}

// Execute fills one sample per channel.
func (o *Operator) Execute(out []float32) {
	o.engine.Fill(out)
}

// SetupParameters returns the parameter declarations.
func (o *Operator) SetupParameters() []Parameter {
	return Declarations()
}

// PulsePressed handles a pulse parameter. The index reset is deferred to the start of
// the next frame so a frame never mixes old and new indexes. Safe from any goroutine.
func (o *Operator) PulsePressed(name string) {
	switch name {
	case ParResetIndexes:
		o.resetPending.Store(true)
	default:
		logger.Debug("Operator", "Ignoring pulse %q", name)
	}
}

// WarningString returns the operator warning.
func (o *Operator) WarningString() string {
	if o.warner == nil {
		return ""
	}
	return o.warner.Warning()
}

// Resets returns how many index resets have been applied.
func (o *Operator) Resets() uint64 {
	return o.resets.Load()
}

// Engine returns the wrapped engine.
func (o *Operator) Engine() *channels.Engine {
	return o.engine
}
