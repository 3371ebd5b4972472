package channels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-oyu/pb-receiver/pkg/types"
)

func TestRegistryAssignsInFirstSeenOrder(t *testing.T) {
	reg := NewRegistry()
	uids := []types.BodyUID{900, 12, 77777, 3}

	for n, uid := range uids {
		assert.Equal(t, n, reg.IndexOf(uid), "uid %d", uid)
	}
	assert.Equal(t, len(uids), reg.Len())
}

func TestRegistryStableAcrossDisappearance(t *testing.T) {
	reg := NewRegistry()
	frames := [][]types.BodyUID{
		{5, 9},
		{9},
		{2, 9},
		{9, 5, 2},
		{},
		{5},
	}

	first := map[types.BodyUID]int{}
	for _, frame := range frames {
		for _, uid := range frame {
			idx := reg.IndexOf(uid)
			if prev, ok := first[uid]; ok {
				require.Equal(t, prev, idx, "uid %d changed index", uid)
			} else {
				first[uid] = idx
			}
		}
	}
	assert.Equal(t, map[types.BodyUID]int{5: 0, 9: 1, 2: 2}, first)
}

func TestRegistryLookupDoesNotAssign(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Lookup(4)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	reg.IndexOf(4)
	idx, ok := reg.Lookup(4)
	assert.True(t, ok)
	assert.Equal(t, 0, idx)
}

func TestRegistryReset(t *testing.T) {
	reg := NewRegistry()
	reg.IndexOf(10)
	reg.IndexOf(20)
	require.Equal(t, 1, reg.IndexOf(20))

	reg.Reset()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, reg.IndexOf(20), "first uid after reset starts at 0")
	assert.Equal(t, 1, reg.IndexOf(10))
}
