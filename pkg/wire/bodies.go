package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

// ErrTruncated is returned when a payload ends in the middle of a field.
var ErrTruncated = errors.New("wire: truncated or malformed payload")

// BodyPacket is one report from the tracking master: every body visible at that instant.
type BodyPacket struct {
	Seq    uint64
	Bodies []*types.Body
}

const (
	packetSeq    protowire.Number = 1
	packetBodies protowire.Number = 2

	bodyUID    protowire.Number = 1
	bodyJoints protowire.Number = 2

	jointSlot    protowire.Number = 1
	jointPX      protowire.Number = 2
	jointPY      protowire.Number = 3
	jointPZ      protowire.Number = 4
	jointOX      protowire.Number = 5
	jointOY      protowire.Number = 6
	jointOZ      protowire.Number = 7
	jointOW      protowire.Number = 8
	jointPosConf protowire.Number = 9
	jointRotConf protowire.Number = 10
)

// MarshalBodyPacket appends the encoded packet to b.
func MarshalBodyPacket(b []byte, p *BodyPacket) []byte {
	b = protowire.AppendTag(b, packetSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, p.Seq)

	var body []byte
	for _, bd := range p.Bodies {
		body = appendBody(body[:0], bd)
		b = protowire.AppendTag(b, packetBodies, protowire.BytesType)
		b = protowire.AppendBytes(b, body)
	}
	return b
}

func appendBody(b []byte, bd *types.Body) []byte {
	b = protowire.AppendTag(b, bodyUID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(bd.UID))

	var joint []byte
	for slot := range bd.Joints {
		joint = appendJoint(joint[:0], slot, &bd.Joints[slot])
		b = protowire.AppendTag(b, bodyJoints, protowire.BytesType)
		b = protowire.AppendBytes(b, joint)
	}
	return b
}

func appendJoint(b []byte, slot int, j *types.Joint) []byte {
	b = protowire.AppendTag(b, jointSlot, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(slot))
	b = appendFloat(b, jointPX, j.Position.X)
	b = appendFloat(b, jointPY, j.Position.Y)
	b = appendFloat(b, jointPZ, j.Position.Z)
	b = appendFloat(b, jointOX, j.Orientation.X)
	b = appendFloat(b, jointOY, j.Orientation.Y)
	b = appendFloat(b, jointOZ, j.Orientation.Z)
	b = appendFloat(b, jointOW, j.Orientation.W)
	b = appendFloat(b, jointPosConf, j.PositionConfidence)
	b = appendFloat(b, jointRotConf, j.OrientationConfidence)
	return b
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

// UnmarshalBodyPacket decodes a packet produced by MarshalBodyPacket or by any protobuf
// encoder using the same schema. Unknown fields are skipped.
func UnmarshalBodyPacket(b []byte) (*BodyPacket, error) {
	p := &BodyPacket{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == packetSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			p.Seq = v
			return n, nil
		case num == packetBodies && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			bd, err := unmarshalBody(raw)
			if err != nil {
				return 0, fmt.Errorf("body %d: %w", len(p.Bodies), err)
			}
			p.Bodies = append(p.Bodies, bd)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func unmarshalBody(b []byte) (*types.Body, error) {
	bd := &types.Body{}
	next := 0
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == bodyUID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			bd.UID = types.BodyUID(v)
			return n, nil
		case num == bodyJoints && typ == protowire.BytesType:
			raw, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			slot, j, err := unmarshalJoint(raw, next)
			if err != nil {
				return 0, err
			}
			bd.Joints[slot] = j
			next = slot + 1
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return bd, nil
}

// unmarshalJoint decodes one joint. A joint without an explicit slot takes the slot
// following the previous one.
func unmarshalJoint(b []byte, defaultSlot int) (int, types.Joint, error) {
	var j types.Joint
	slot := defaultSlot
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == jointSlot && typ == protowire.VarintType {
			v, n := protowire.ConsumeVarint(b)
			slot = int(v)
			return n, nil
		}
		if typ != protowire.Fixed32Type || num < jointPX || num > jointRotConf {
			return protowire.ConsumeFieldValue(num, typ, b), nil
		}
		bits, n := protowire.ConsumeFixed32(b)
		v := math.Float32frombits(bits)
		switch num {
		case jointPX:
			j.Position.X = v
		case jointPY:
			j.Position.Y = v
		case jointPZ:
			j.Position.Z = v
		case jointOX:
			j.Orientation.X = v
		case jointOY:
			j.Orientation.Y = v
		case jointOZ:
			j.Orientation.Z = v
		case jointOW:
			j.Orientation.W = v
		case jointPosConf:
			j.PositionConfidence = v
		case jointRotConf:
			j.OrientationConfidence = v
		}
		return n, nil
	})
	if err != nil {
		return 0, j, err
	}
	if slot < 0 || slot >= types.JointCount {
		return 0, j, fmt.Errorf("joint slot %d out of range", slot)
	}
	return slot, j, nil
}

// walk iterates over the fields of one message. fn consumes the field value and returns
// its length; a negative length is a protowire parse error.
func walk(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
		}
		b = b[n:]

		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("%w: field %d: %v", ErrTruncated, num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}
