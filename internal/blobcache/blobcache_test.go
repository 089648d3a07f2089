package blobcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/auriora/vfsoverlay/internal/ids"
)

func oid(s string) ids.ObjectId { return ids.ObjectId(s) }

func TestUT_BC_01_InsertThenGet_Hits(t *testing.T) {
	c := NewBlobCache(1<<20, time.Minute)
	c.Insert(oid("a"), []byte("hello"))

	blob, ok, h := c.Get(oid("a"), LikelyNeededAgain)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), blob)
	h.Release()
}

func TestUT_BC_02_Get_Miss_ReturnsFalse(t *testing.T) {
	c := NewBlobCache(1<<20, time.Minute)
	_, ok, _ := c.Get(oid("missing"), LikelyNeededAgain)
	assert.False(t, ok)
}

func TestUT_BC_03_EvictsOldestWhenOverBudget(t *testing.T) {
	c := NewBlobCache(10, 0) // tiny budget, no LRU grace window
	c.Insert(oid("a"), []byte("12345"))
	c.Insert(oid("b"), []byte("12345"))
	c.Insert(oid("c"), []byte("12345")) // pushes total to 15 > 10, evicts "a"

	_, ok, _ := c.Get(oid("a"), LikelyNeededAgain)
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok, _ = c.Get(oid("c"), LikelyNeededAgain)
	assert.True(t, ok)
}

func TestUT_BC_04_WantHandle_PinsAgainstEviction(t *testing.T) {
	c := NewBlobCache(10, 0)
	c.Insert(oid("a"), []byte("12345"))
	_, ok, h := c.Get(oid("a"), WantHandle)
	assert.True(t, ok)

	c.Insert(oid("b"), []byte("12345"))
	c.Insert(oid("c"), []byte("12345"))

	_, ok, _ = c.Get(oid("a"), LikelyNeededAgain)
	assert.True(t, ok, "pinned entry must survive eviction pressure")

	h.Release()
}

func TestUT_BC_05_UnlikelyNeededAgain_EvictsOnRelease(t *testing.T) {
	c := NewBlobCache(1<<20, time.Minute)
	c.Insert(oid("a"), []byte("data"))

	_, ok, h := c.Get(oid("a"), WantHandle)
	assert.True(t, ok)
	h.Release()

	_, _, h2 := c.Get(oid("a"), UnlikelyNeededAgain)
	h2.Release()

	assert.Equal(t, 0, c.Len(), "UnlikelyNeededAgain entry should be gone once its handle releases")
}

func TestUT_BC_06_LRUWindow_ExemptsRecentEntryFromBudgetEviction(t *testing.T) {
	c := NewBlobCache(10, time.Hour)
	c.Insert(oid("a"), []byte("12345"))
	c.Get(oid("a"), LikelyNeededAgain) // touch, refreshes recentWindow

	c.Insert(oid("b"), []byte("12345"))
	c.Insert(oid("c"), []byte("12345"))

	_, ok, _ := c.Get(oid("a"), LikelyNeededAgain)
	assert.True(t, ok, "entry accessed within the LRU window must be exempt from budget eviction")
}
