package types

import (
	"slices"
	"time"
)

// ChannelFrame is one cooked host frame: the channel names and the single sample
// written into each channel.
type ChannelFrame struct {
	Seq    uint64    // Sequential cook number
	Time   time.Time // Cook timestamp
	Names  []string  // Channel names, index-aligned with Values
	Values []float32 // One sample per channel
	Bodies int       // Bodies in the frame's snapshot
}

// NumChannels returns the number of channels in the frame.
func (f *ChannelFrame) NumChannels() int {
	return len(f.Values)
}

// SameLayout reports whether both frames carry the same channel names in the same order.
func (f *ChannelFrame) SameLayout(other *ChannelFrame) bool {
	return other != nil && slices.Equal(f.Names, other.Names)
}
