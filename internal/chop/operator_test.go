package chop

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/pb-receiver/internal/channels"
	"github.com/dj-oyu/pb-receiver/pkg/types"
)

type fakeSource struct {
	bodies []*types.Body
	calls  int
}

func (f *fakeSource) Subset() []*types.Body {
	f.calls++
	out := make([]*types.Body, len(f.bodies))
	copy(out, f.bodies)
	return out
}

type fakeWarner string

func (w fakeWarner) Warning() string { return string(w) }

func bodies(uids ...types.BodyUID) []*types.Body {
	out := make([]*types.Body, len(uids))
	for i, uid := range uids {
		out[i] = &types.Body{UID: uid}
	}
	return out
}

func cookFrame(op *Operator, in Inputs) ([]string, []float32) {
	info := op.OutputInfo(in)
	names := make([]string, info.NumChannels)
	for i := range names {
		names[i] = op.ChannelName(i)
	}
	values := make([]float32, info.NumChannels)
	op.Execute(values)
	return names, values
}

func TestOperatorDefaults(t *testing.T) {
	op := NewOperator(channels.NewEngine(nil), &fakeSource{}, nil)

	gi := op.GeneralInfo()
	assert.True(t, gi.CookEveryFrame)
	assert.False(t, gi.Timeslice)

	params := NewParameters()
	assert.Equal(t, channels.Config{Positions: true}, params.Outputs())

	info := op.OutputInfo(params)
	assert.Equal(t, OutputInfo{NumChannels: 1, NumSamples: 1, StartIndex: 0}, info)
	assert.Empty(t, op.WarningString())
}

func TestOperatorSnapshotTakenOncePerFrame(t *testing.T) {
	src := &fakeSource{bodies: bodies(1, 2)}
	op := NewOperator(channels.NewEngine(nil), src, nil)
	params := NewParameters()

	info := op.OutputInfo(params)
	require.Equal(t, 1+2*45, info.NumChannels)

	// The feed changes mid-frame; names and values still describe the captured frame.
	src.bodies = bodies(3)
	names := make([]string, info.NumChannels)
	for i := range names {
		names[i] = op.ChannelName(i)
	}
	assert.Equal(t, "body1/head:tx", names[46])
	values := make([]float32, info.NumChannels)
	op.Execute(values)
	assert.Equal(t, float32(2), values[0])
	assert.Equal(t, 1, src.calls)
}

func TestOperatorResetAppliesAtNextFrame(t *testing.T) {
	src := &fakeSource{bodies: bodies(7, 8)}
	op := NewOperator(channels.NewEngine(nil), src, nil)
	params := NewParameters()

	cookFrame(op, params)
	src.bodies = bodies(8)

	info := op.OutputInfo(params)
	op.PulsePressed(ParResetIndexes)
	// Still the pre-reset frame.
	assert.Equal(t, "body1/head:tx", op.ChannelName(1))
	op.Execute(make([]float32, info.NumChannels))

	names, _ := cookFrame(op, params)
	assert.Equal(t, "body0/head:tx", names[1])
	assert.Equal(t, uint64(1), op.Resets())

	op.PulsePressed("Unknown")
	cookFrame(op, params)
	assert.Equal(t, uint64(1), op.Resets())
}

func TestOperatorTogglesFromParameters(t *testing.T) {
	op := NewOperator(channels.NewEngine(nil), &fakeSource{bodies: bodies(1)}, fakeWarner("searching"))
	params := NewParameters()
	params.SetOutputs(channels.Config{Confidences: true})

	names, _ := cookFrame(op, params)
	assert.Len(t, names, 1+2*15)
	assert.Equal(t, "body0/head:tconf", names[1])
	assert.Equal(t, "searching", op.WarningString())

	params.SetInt(ParOutputConfidences, 0)
	names, values := cookFrame(op, params)
	assert.Equal(t, []string{"body_count"}, names)
	assert.Equal(t, []float32{1}, values)
}

func TestDeclarations(t *testing.T) {
	decl := NewOperator(channels.NewEngine(nil), &fakeSource{}, nil).SetupParameters()
	require.Len(t, decl, 4)
	assert.Equal(t, ParOutputPositions, decl[0].Name)
	assert.Equal(t, 1, decl[0].Default)
	assert.Equal(t, KindPulse, decl[3].Kind)
	assert.Equal(t, "Reset indexes", decl[3].Label)
}
