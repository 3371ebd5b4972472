package channels

import "github.com/dj-oyu/pb-receiver/pkg/types"

// Registry hands out stable, first-seen ordered indexes for body UIDs.
// It is not safe for concurrent use; the cook goroutine owns it.
type Registry struct {
	index map[types.BodyUID]int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[types.BodyUID]int)}
}

// IndexOf returns the index assigned to uid, assigning the next free one if uid was
// never seen since the last Reset.
func (r *Registry) IndexOf(uid types.BodyUID) int {
	if idx, ok := r.index[uid]; ok {
		return idx
	}
	idx := len(r.index)
	r.index[uid] = idx
	return idx
}

// Lookup returns the index of uid without assigning one.
func (r *Registry) Lookup(uid types.BodyUID) (int, bool) {
	idx, ok := r.index[uid]
	return idx, ok
}

// Len returns the number of UIDs seen since the last Reset.
func (r *Registry) Len() int {
	return len(r.index)
}

// Reset forgets every assignment. Indexes restart at 0.
func (r *Registry) Reset() {
	clear(r.index)
}
