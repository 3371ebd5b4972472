package wire

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

const (
	frameSeq    protowire.Number = 1
	frameTime   protowire.Number = 2
	frameNames  protowire.Number = 3
	frameValues protowire.Number = 4
	frameBodies protowire.Number = 5
)

// MarshalChannelFrame appends the encoded frame to b. Values are packed.
func MarshalChannelFrame(b []byte, f *types.ChannelFrame) []byte {
	b = protowire.AppendTag(b, frameSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Seq)
	b = protowire.AppendTag(b, frameTime, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Time.UnixNano()))

	for _, name := range f.Names {
		b = protowire.AppendTag(b, frameNames, protowire.BytesType)
		b = protowire.AppendString(b, name)
	}

	if len(f.Values) > 0 {
		b = protowire.AppendTag(b, frameValues, protowire.BytesType)
		b = protowire.AppendVarint(b, uint64(4*len(f.Values)))
		for _, v := range f.Values {
			b = protowire.AppendFixed32(b, math.Float32bits(v))
		}
	}

	b = protowire.AppendTag(b, frameBodies, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Bodies))
	return b
}

// UnmarshalChannelFrame decodes a frame. Both packed and unpacked values are accepted.
func UnmarshalChannelFrame(b []byte) (*types.ChannelFrame, error) {
	f := &types.ChannelFrame{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == frameSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Seq = v
			return n, nil
		case num == frameTime && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Time = time.Unix(0, int64(v))
			return n, nil
		case num == frameNames && typ == protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n >= 0 {
				f.Names = append(f.Names, s)
			}
			return n, nil
		case num == frameValues && typ == protowire.BytesType:
			packed, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			for len(packed) > 0 {
				bits, m := protowire.ConsumeFixed32(packed)
				if m < 0 {
					return m, nil
				}
				f.Values = append(f.Values, math.Float32frombits(bits))
				packed = packed[m:]
			}
			return n, nil
		case num == frameValues && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(b)
			f.Values = append(f.Values, math.Float32frombits(bits))
			return n, nil
		case num == frameBodies && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			f.Bodies = int(v)
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
