package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusFollowsEvents(t *testing.T) {
	var changes []bool
	s := NewStatus(func(c bool) { changes = append(changes, c) })

	assert.Equal(t, SearchingWarning, s.Warning())

	s.Apply(Event{Kind: Connected, Source: "10.0.0.2:5005"})
	s.Apply(Event{Kind: Updated, Time: time.Unix(10, 0)})
	s.Apply(Event{Kind: Updated, Time: time.Unix(11, 0)})
	assert.True(t, s.Connected())
	assert.Empty(t, s.Warning())

	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.Updates)
	assert.Equal(t, "10.0.0.2:5005", snap.Source)

	s.Apply(Event{Kind: Closed})
	s.Apply(Event{Kind: Closed})
	assert.False(t, s.Connected())
	assert.Equal(t, SearchingWarning, s.Snapshot().Warning)
	assert.Equal(t, []bool{true, false}, changes)
}

func TestStatusRunDrainsChannel(t *testing.T) {
	events := make(chan Event, 3)
	events <- Event{Kind: Connected}
	events <- Event{Kind: Updated}
	close(events)

	s := NewStatus(nil)
	s.Run(events)
	assert.True(t, s.Connected())
}
