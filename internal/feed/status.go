package feed

import (
	"sync"
	"time"
)

// SearchingWarning is shown while no tracking master is connected.
const SearchingWarning = "Looking for a Locator Master on the network..."

// Status follows feed events and keeps the user-facing connection state.
type Status struct {
	mu         sync.RWMutex
	connected  bool
	source     string
	updates    uint64
	lastUpdate time.Time

	onChange func(connected bool)
}

// NewStatus returns a disconnected status. onChange, if set, is called from Run on
// every connect and close.
func NewStatus(onChange func(connected bool)) *Status {
	return &Status{onChange: onChange}
}

// Run consumes events until the channel is closed.
func (s *Status) Run(events <-chan Event) {
	for ev := range events {
		s.Apply(ev)
	}
}

// Apply records one event.
func (s *Status) Apply(ev Event) {
	s.mu.Lock()
	changed := false
	switch ev.Kind {
	case Connected:
		changed = !s.connected
		s.connected = true
		s.source = ev.Source
	case Updated:
		s.updates++
		s.lastUpdate = ev.Time
	case Closed:
		changed = s.connected
		s.connected = false
	}
	connected := s.connected
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(connected)
	}
}

// Connected reports whether a tracking master is connected.
func (s *Status) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Warning returns the text shown to the user, empty while connected.
func (s *Status) Warning() string {
	if s.Connected() {
		return ""
	}
	return SearchingWarning
}

// StatusSnapshot is the connection state for display.
type StatusSnapshot struct {
	Connected  bool      `json:"connected"`
	Source     string    `json:"source,omitempty"`
	Updates    uint64    `json:"updates"`
	LastUpdate time.Time `json:"last_update"`
	Warning    string    `json:"warning,omitempty"`
}

// Snapshot returns the current state.
func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatusSnapshot{
		Connected:  s.connected,
		Source:     s.source,
		Updates:    s.updates,
		LastUpdate: s.lastUpdate,
	}
	if !s.connected {
		snap.Warning = SearchingWarning
	}
	return snap
}
