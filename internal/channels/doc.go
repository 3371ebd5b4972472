// Package channels flattens per-frame body snapshots into a fixed-order array of named
// scalar channels.
//
// A frame is answered in three steps that must agree with each other:
//
//	total := engine.QueryShape(snapshot, config) // captures the snapshot for the frame
//	for i := 0; i < total; i++ {
//		name := engine.QueryChannelName(i)
//	}
//	engine.Fill(buf) // len(buf) >= total
//
// Channel 0 is always "body_count". Every body then contributes JointsPerBody joints,
// each with up to eight sub-channels in the order positions, orientations,
// confidences. Bodies are named by a registry index that stays the same for as long as
// the process runs (or until Reset), whatever order the tracker reports them in.
package channels
