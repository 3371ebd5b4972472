package channels

import "github.com/dj-oyu/pb-receiver/pkg/types"

// Sub-channel counts per joint for each output group.
const (
	PositionChannels    = 3
	OrientationChannels = 3
	ConfidenceChannels  = 2

	// JointsPerBody is the number of joints flattened for every body.
	JointsPerBody = types.JointCount
)

// Config selects which data groups are emitted. Any combination is valid.
type Config struct {
	Positions    bool `json:"positions" yaml:"positions"`
	Orientations bool `json:"orientations" yaml:"orientations"`
	Confidences  bool `json:"confidences" yaml:"confidences"`
}

// Layout is the channel arithmetic for one frame.
type Layout struct {
	PerJoint int `json:"per_joint"`
	PerBody  int `json:"per_body"`
	Total    int `json:"total"`
}

// ChannelsPerJoint returns how many sub-channels each joint contributes under cfg.
func (cfg Config) ChannelsPerJoint() int {
	n := 0
	if cfg.Positions {
		n += PositionChannels
	}
	if cfg.Orientations {
		n += OrientationChannels
	}
	if cfg.Confidences {
		n += ConfidenceChannels
	}
	return n
}

// ComputeLayout returns the layout for bodyCount bodies. With every group disabled only
// the body_count channel exists.
func ComputeLayout(cfg Config, bodyCount int) Layout {
	perJoint := cfg.ChannelsPerJoint()
	perBody := perJoint * JointsPerBody
	return Layout{
		PerJoint: perJoint,
		PerBody:  perBody,
		Total:    1 + perBody*bodyCount,
	}
}
