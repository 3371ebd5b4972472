package types

// JointCount is the number of joints in every skeleton.
const JointCount = 15

// BodyUID identifies a tracked subject for as long as the tracker follows it.
type BodyUID uint64

// Vec3 is a 3D position.
type Vec3 struct {
	X, Y, Z float32
}

// Quaternion is a joint orientation.
type Quaternion struct {
	X, Y, Z, W float32
}

// Joint is one skeleton point. Confidences are nominally in [0,1].
type Joint struct {
	Position              Vec3
	Orientation           Quaternion
	PositionConfidence    float32
	OrientationConfidence float32
}

// Body is a tracked skeleton. Joints are stored in fixed slot order.
type Body struct {
	UID    BodyUID
	Joints [JointCount]Joint
}

// Joint slots
const (
	JointHead = iota
	JointNeck
	JointLeftShoulder
	JointRightShoulder
	JointLeftElbow
	JointRightElbow
	JointLeftHand
	JointRightHand
	JointTorso
	JointLeftHip
	JointRightHip
	JointLeftKnee
	JointRightKnee
	JointLeftFoot
	JointRightFoot
)
