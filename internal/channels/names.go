package channels

import (
	"strconv"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

// BodyCountChannel is the name of channel 0.
const BodyCountChannel = "body_count"

var jointNames = [JointsPerBody]string{
	types.JointHead:          "head",
	types.JointNeck:          "neck",
	types.JointLeftShoulder:  "leftShoulder",
	types.JointRightShoulder: "rightShoulder",
	types.JointLeftElbow:     "leftElbow",
	types.JointRightElbow:    "rightElbow",
	types.JointLeftHand:      "leftHand",
	types.JointRightHand:     "rightHand",
	types.JointTorso:         "torso",
	types.JointLeftHip:       "leftHip",
	types.JointRightHip:      "rightHip",
	types.JointLeftKnee:      "leftKnee",
	types.JointRightKnee:     "rightKnee",
	types.JointLeftFoot:      "leftFoot",
	types.JointRightFoot:     "rightFoot",
}

var (
	positionNames    = [PositionChannels]string{"tx", "ty", "tz"}
	orientationNames = [OrientationChannels]string{"rx", "ry", "rz"}
	confidenceNames  = [ConfidenceChannels]string{"tconf", "rconf"}
)

// JointName returns the name of a joint slot, or the slot number for unknown slots.
func JointName(slot int) string {
	if slot >= 0 && slot < len(jointNames) {
		return jointNames[slot]
	}
	return strconv.Itoa(slot)
}

// SubChannelName names the sub-channel at index i within one joint. Groups are consumed
// in the same order Fill writes them. Indexes past the enabled groups fall back to the
// number itself.
func SubChannelName(cfg Config, i int) string {
	sub := i
	if cfg.Positions {
		if sub < PositionChannels {
			return positionNames[sub]
		}
		sub -= PositionChannels
	}
	if cfg.Orientations {
		if sub < OrientationChannels {
			return orientationNames[sub]
		}
		sub -= OrientationChannels
	}
	if cfg.Confidences {
		if sub < ConfidenceChannels {
			return confidenceNames[sub]
		}
	}
	return strconv.Itoa(i)
}

// ChannelName returns the canonical name of channel index, e.g. "body3/leftHand:tx".
// The body segment uses the registry index of the owning body, not its position in the
// snapshot. index must be below layout.Total.
func ChannelName(index int, layout Layout, cfg Config, reg *Registry, snapshot []*types.Body) string {
	if index == 0 {
		return BodyCountChannel
	}

	offset := index - 1
	bodyPos := offset / layout.PerBody
	withinBody := offset % layout.PerBody
	jointSlot := withinBody / layout.PerJoint
	withinJoint := withinBody % layout.PerJoint

	stable := reg.IndexOf(snapshot[bodyPos].UID)
	return "body" + strconv.Itoa(stable) + "/" + JointName(jointSlot) + ":" + SubChannelName(cfg, withinJoint)
}
