package feed

import (
	"sync"
	"time"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

// Arena holds the bodies most recently reported by the tracking master.
//
// Bodies handed to Replace are owned by the arena and never modified afterwards, so
// the slices returned by Subset stay valid and consistent for as long as the caller
// holds them, whatever the feed does next.
type Arena struct {
	mu      sync.RWMutex
	bodies  []*types.Body
	seq     uint64
	updated time.Time
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Replace installs the set of visible bodies. Bodies missing from the set are gone.
// Repeated UIDs keep their first occurrence. It returns the number of bodies kept.
func (a *Arena) Replace(seq uint64, bodies []*types.Body) int {
	kept := make([]*types.Body, 0, len(bodies))
	seen := make(map[types.BodyUID]struct{}, len(bodies))
	for _, b := range bodies {
		if b == nil {
			continue
		}
		if _, dup := seen[b.UID]; dup {
			continue
		}
		seen[b.UID] = struct{}{}
		kept = append(kept, b)
	}

	a.mu.Lock()
	a.bodies = kept
	a.seq = seq
	a.updated = time.Now()
	a.mu.Unlock()
	return len(kept)
}

// Subset returns a consistent copy of the current bodies in arrival order.
func (a *Arena) Subset() []*types.Body {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*types.Body, len(a.bodies))
	copy(out, a.bodies)
	return out
}

// Clear removes every body.
func (a *Arena) Clear() {
	a.mu.Lock()
	a.bodies = nil
	a.updated = time.Now()
	a.mu.Unlock()
}

// Len returns the number of visible bodies.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.bodies)
}

// Seq returns the sequence number of the last Replace and when the arena last changed.
func (a *Arena) Seq() (uint64, time.Time) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.seq, a.updated
}
