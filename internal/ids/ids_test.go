package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUT_IDS_01_Allocator_Next_IsMonotonicAndNeverZero(t *testing.T) {
	a := NewAllocator(RootInodeId)

	seen := make(map[InodeId]bool)
	var prev InodeId
	for i := 0; i < 100; i++ {
		id, err := a.Next()
		assert.NoError(t, err)
		assert.NotZero(t, id)
		assert.Greater(t, uint64(id), uint64(prev))
		assert.False(t, seen[id], "id reused: %v", id)
		seen[id] = true
		prev = id
	}
}

func TestUT_IDS_02_Allocator_StartsAtLeastAtFirstDynamicId(t *testing.T) {
	a := NewAllocator(0)
	id, err := a.Next()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, uint64(id), uint64(firstDynamicInodeId))
}

func TestUT_IDS_03_Allocator_Observe_AdvancesPastMax(t *testing.T) {
	a := NewAllocator(RootInodeId)
	a.Observe(InodeId(500))

	id, err := a.Next()
	assert.NoError(t, err)
	assert.Equal(t, InodeId(501), id)
}

func TestUT_IDS_04_Allocator_Observe_NeverGoesBackwards(t *testing.T) {
	a := NewAllocator(RootInodeId)
	a.Observe(InodeId(500))
	a.Observe(InodeId(10))

	id, err := a.Next()
	assert.NoError(t, err)
	assert.Equal(t, InodeId(501), id)
}

func TestUT_IDS_05_ObjectId_Equal_ComparesBytes(t *testing.T) {
	a := ObjectId([]byte{1, 2, 3})
	b := ObjectId([]byte{1, 2, 3})
	c := ObjectId([]byte{1, 2, 4})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
}

func TestUT_IDS_06_ObjectComparison_String(t *testing.T) {
	assert.Equal(t, "Identical", ComparisonIdentical.String())
	assert.Equal(t, "Different", ComparisonDifferent.String())
	assert.Equal(t, "Unknown", ComparisonUnknown.String())
}

func TestUT_IDS_07_RootAndDotEdenIds_AreDistinctAndFixed(t *testing.T) {
	assert.Equal(t, InodeId(1), RootInodeId)
	assert.Equal(t, InodeId(2), ReservedDotEdenInodeId)
	assert.NotEqual(t, RootInodeId, ReservedDotEdenInodeId)
}
