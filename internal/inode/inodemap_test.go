package inode

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auriora/vfsoverlay/internal/ids"
)

type fakeNode struct{ id ids.InodeId }

func (f fakeNode) ID() ids.InodeId { return f.id }

func TestUT_IN_01_InodeMap_StartLoading_SecondCallerJoinsInFlightLoad(t *testing.T) {
	m := NewInodeMap()
	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]Node, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err, first := m.StartLoadingChildIfNotLoading(ids.InodeId(10), func() (Node, error) {
				if atomic.AddInt32(&calls, 1) == 1 {
					close(started)
					<-release
				}
				return fakeNode{id: ids.InodeId(10)}, nil
			})
			assert.NoError(t, err)
			_ = first
			results[i] = n
		}(i)
	}
	<-started
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls)
	assert.Equal(t, results[0], results[1])
}

func TestUT_IN_02_InodeMap_Get_ReturnsLoadedNode(t *testing.T) {
	m := NewInodeMap()
	m.StartLoadingChildIfNotLoading(ids.InodeId(5), func() (Node, error) { return fakeNode{id: 5}, nil })

	n, ok := m.Get(ids.InodeId(5))
	assert.True(t, ok)
	assert.Equal(t, ids.InodeId(5), n.ID())
}

func TestUT_IN_03_InodeMap_Unload_RefusesWhileRemembered(t *testing.T) {
	m := NewInodeMap()
	m.StartLoadingChildIfNotLoading(ids.InodeId(7), func() (Node, error) { return fakeNode{id: 7}, nil })
	m.Remember(ids.InodeId(7))

	assert.False(t, m.Unload(ids.InodeId(7)))
	m.Forget(ids.InodeId(7))
	assert.True(t, m.Unload(ids.InodeId(7)))
}

func TestUT_IN_04_InodeMap_Unload_RefusesWhileRefcountPositive(t *testing.T) {
	m := NewInodeMap()
	m.StartLoadingChildIfNotLoading(ids.InodeId(8), func() (Node, error) { return fakeNode{id: 8}, nil })
	m.IncFsRefcount(ids.InodeId(8))

	assert.False(t, m.Unload(ids.InodeId(8)))
	assert.Equal(t, 0, m.DecFsRefcount(ids.InodeId(8)))
	assert.True(t, m.Unload(ids.InodeId(8)))
}

func TestUT_IN_05_InodeMap_IsLoadedOrRemembered(t *testing.T) {
	m := NewInodeMap()
	assert.False(t, m.IsLoadedOrRemembered(ids.InodeId(9)))
	m.Remember(ids.InodeId(9))
	assert.True(t, m.IsLoadedOrRemembered(ids.InodeId(9)))
}
