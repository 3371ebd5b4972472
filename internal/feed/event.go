package feed

import "time"

// EventKind is the kind of a feed notification.
type EventKind int

const (
	// Connected is sent when the first packet from a tracking master arrives.
	Connected EventKind = iota
	// Updated is sent for every accepted packet.
	Updated
	// Closed is sent when the master goes silent or the receiver stops.
	Closed
)

func (k EventKind) String() string {
	switch k {
	case Connected:
		return "connected"
	case Updated:
		return "updated"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is a feed notification.
type Event struct {
	Kind   EventKind
	Source string // Address of the tracking master
	Seq    uint64
	Bodies int
	Time   time.Time
}
