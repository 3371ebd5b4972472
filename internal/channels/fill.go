package channels

import "github.com/dj-oyu/pb-receiver/pkg/types"

// Confident reports whether c is a usable confidence: 0 < c <= 1. NaN is not.
func Confident(c float32) bool {
	return c > 0 && c <= 1
}

// Fill writes one sample per channel into out for the given snapshot. out must hold at
// least ComputeLayout(cfg, len(snapshot)).Total values. Bodies are written in snapshot
// order.
//
// Positions are emitted as (x, y, -z) and orientations as (x, y, z); either vector is
// zeroed when its confidence is not usable. Confidences are always written unfiltered.
func Fill(out []float32, cfg Config, snapshot []*types.Body) {
	out[0] = float32(len(snapshot))
	c := 1

	for _, body := range snapshot {
		for i := range body.Joints {
			j := &body.Joints[i]

			if cfg.Positions {
				if Confident(j.PositionConfidence) {
					out[c+0] = j.Position.X
					out[c+1] = j.Position.Y
					out[c+2] = -j.Position.Z
				} else {
					out[c+0], out[c+1], out[c+2] = 0, 0, 0
				}
				c += PositionChannels
			}

			if cfg.Orientations {
				if Confident(j.OrientationConfidence) {
					out[c+0] = j.Orientation.X
					out[c+1] = j.Orientation.Y
					out[c+2] = j.Orientation.Z
				} else {
					out[c+0], out[c+1], out[c+2] = 0, 0, 0
				}
				c += OrientationChannels
			}

			if cfg.Confidences {
				out[c+0] = j.PositionConfidence
				out[c+1] = j.OrientationConfidence
				c += ConfidenceChannels
			}
		}
	}
}
