package channels

import "github.com/dj-oyu/pb-receiver/pkg/types"

var allConfigs = []Config{
	{},
	{Positions: true},
	{Orientations: true},
	{Confidences: true},
	{Positions: true, Orientations: true},
	{Positions: true, Confidences: true},
	{Orientations: true, Confidences: true},
	{Positions: true, Orientations: true, Confidences: true},
}

// newBody returns a body whose joint values encode the uid and slot so a filled value
// can be traced back to its source.
func newBody(uid types.BodyUID) *types.Body {
	b := &types.Body{UID: uid}
	for slot := range b.Joints {
		base := float32(uid)*100 + float32(slot)
		b.Joints[slot] = types.Joint{
			Position:              types.Vec3{X: base + 0.1, Y: base + 0.2, Z: base + 0.3},
			Orientation:           types.Quaternion{X: base + 0.4, Y: base + 0.5, Z: base + 0.6, W: base + 0.7},
			PositionConfidence:    0.9,
			OrientationConfidence: 0.8,
		}
	}
	return b
}

func snapshotOf(uids ...types.BodyUID) []*types.Body {
	snap := make([]*types.Body, len(uids))
	for i, uid := range uids {
		snap[i] = newBody(uid)
	}
	return snap
}
