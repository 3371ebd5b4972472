package wire

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

func sampleBody(uid types.BodyUID) *types.Body {
	b := &types.Body{UID: uid}
	for i := range b.Joints {
		f := float32(i)
		b.Joints[i] = types.Joint{
			Position:              types.Vec3{X: f, Y: f + 0.5, Z: -f},
			Orientation:           types.Quaternion{X: 0.1, Y: 0.2, Z: 0.3, W: 0.9},
			PositionConfidence:    0.75,
			OrientationConfidence: 0.25,
		}
	}
	return b
}

func TestBodyPacketRoundTrip(t *testing.T) {
	in := &BodyPacket{Seq: 42, Bodies: []*types.Body{sampleBody(7), sampleBody(1 << 40)}}

	out, err := UnmarshalBodyPacket(MarshalBodyPacket(nil, in))
	require.NoError(t, err)
	require.Equal(t, in.Seq, out.Seq)
	require.Len(t, out.Bodies, 2)
	assert.Equal(t, *in.Bodies[0], *out.Bodies[0])
	assert.Equal(t, *in.Bodies[1], *out.Bodies[1])
}

func TestBodyPacketKeepsNaNConfidence(t *testing.T) {
	b := sampleBody(3)
	b.Joints[types.JointHead].PositionConfidence = float32(math.NaN())

	out, err := UnmarshalBodyPacket(MarshalBodyPacket(nil, &BodyPacket{Bodies: []*types.Body{b}}))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(out.Bodies[0].Joints[types.JointHead].PositionConfidence)))
}

func TestBodyPacketSkipsUnknownFields(t *testing.T) {
	raw := protowire.AppendTag(nil, 99, protowire.BytesType)
	raw = protowire.AppendString(raw, "master-01")
	raw = MarshalBodyPacket(raw, &BodyPacket{Seq: 5, Bodies: []*types.Body{sampleBody(2)}})

	out, err := UnmarshalBodyPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), out.Seq)
	assert.Len(t, out.Bodies, 1)
}

func TestBodyPacketImplicitJointSlots(t *testing.T) {
	var joint []byte
	joint = appendFloat(joint, jointPX, 4)

	var body []byte
	body = protowire.AppendTag(body, bodyUID, protowire.VarintType)
	body = protowire.AppendVarint(body, 9)
	for i := 0; i < 2; i++ {
		body = protowire.AppendTag(body, bodyJoints, protowire.BytesType)
		body = protowire.AppendBytes(body, joint)
	}
	raw := protowire.AppendTag(nil, packetBodies, protowire.BytesType)
	raw = protowire.AppendBytes(raw, body)

	out, err := UnmarshalBodyPacket(raw)
	require.NoError(t, err)
	assert.Equal(t, float32(4), out.Bodies[0].Joints[0].Position.X)
	assert.Equal(t, float32(4), out.Bodies[0].Joints[1].Position.X)
	assert.Equal(t, float32(0), out.Bodies[0].Joints[2].Position.X)
}

func TestBodyPacketTruncated(t *testing.T) {
	raw := MarshalBodyPacket(nil, &BodyPacket{Seq: 1, Bodies: []*types.Body{sampleBody(2)}})

	_, err := UnmarshalBodyPacket(raw[:len(raw)-3])
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTruncated), "got %v", err)
}

func TestBodyPacketRejectsJointSlotOutOfRange(t *testing.T) {
	joint := protowire.AppendTag(nil, jointSlot, protowire.VarintType)
	joint = protowire.AppendVarint(joint, types.JointCount)
	body := protowire.AppendTag(nil, bodyJoints, protowire.BytesType)
	body = protowire.AppendBytes(body, joint)
	raw := protowire.AppendTag(nil, packetBodies, protowire.BytesType)
	raw = protowire.AppendBytes(raw, body)

	_, err := UnmarshalBodyPacket(raw)
	assert.ErrorContains(t, err, "out of range")
}

func TestChannelFrameRoundTrip(t *testing.T) {
	in := &types.ChannelFrame{
		Seq:    12,
		Time:   time.Unix(1700000000, 123456789),
		Names:  []string{"body_count", "body0/head:tx"},
		Values: []float32{1, -2.5},
		Bodies: 1,
	}

	out, err := UnmarshalChannelFrame(MarshalChannelFrame(nil, in))
	require.NoError(t, err)
	assert.Equal(t, in.Seq, out.Seq)
	assert.True(t, in.Time.Equal(out.Time))
	assert.Equal(t, in.Names, out.Names)
	assert.Equal(t, in.Values, out.Values)
	assert.Equal(t, 1, out.Bodies)
}

func TestChannelFrameUnpackedValues(t *testing.T) {
	raw := protowire.AppendTag(nil, frameValues, protowire.Fixed32Type)
	raw = protowire.AppendFixed32(raw, math.Float32bits(3))
	raw = protowire.AppendTag(raw, frameValues, protowire.Fixed32Type)
	raw = protowire.AppendFixed32(raw, math.Float32bits(-1))

	out, err := UnmarshalChannelFrame(raw)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, -1}, out.Values)
}
