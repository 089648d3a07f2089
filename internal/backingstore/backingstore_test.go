package backingstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auriora/vfsoverlay/internal/ids"
)

func TestUT_BS_01_MemoryStore_GetBlob_HitAndMiss(t *testing.T) {
	s := NewMemoryStore()
	s.PutBlob(ids.ObjectId("a"), Blob{Data: []byte("hello")})

	b, err := s.GetBlob(context.Background(), ids.ObjectId("a"))
	assert.NoError(t, err)
	assert.Equal(t, []byte("hello"), b.Data)

	_, err = s.GetBlob(context.Background(), ids.ObjectId("missing"))
	assert.Error(t, err)
}

func TestUT_BS_02_MemoryStore_GetBlobSize(t *testing.T) {
	s := NewMemoryStore()
	s.PutBlob(ids.ObjectId("a"), Blob{Data: []byte("hello")})

	size, err := s.GetBlobSize(context.Background(), ids.ObjectId("a"))
	assert.NoError(t, err)
	assert.Equal(t, uint64(5), size)
}

func TestUT_BS_03_CompareObjectsByID_IdenticalBytesAreIdentical(t *testing.T) {
	s := NewMemoryStore()
	cmp, err := s.CompareObjectsByID(context.Background(), ids.ObjectId("x"), ids.ObjectId("x"))
	assert.NoError(t, err)
	assert.Equal(t, ids.ComparisonIdentical, cmp)
}

func TestUT_BS_04_CompareObjectsByID_UnresolvableIsUnknown(t *testing.T) {
	s := NewMemoryStore()
	cmp, err := s.CompareObjectsByID(context.Background(), ids.ObjectId("x"), ids.ObjectId("y"))
	assert.NoError(t, err)
	assert.Equal(t, ids.ComparisonUnknown, cmp)
}

func TestUT_BS_05_CompareObjectsByID_DifferentKnownBlobsAreDifferent(t *testing.T) {
	s := NewMemoryStore()
	s.PutBlob(ids.ObjectId("x"), Blob{Data: []byte("a")})
	s.PutBlob(ids.ObjectId("y"), Blob{Data: []byte("b")})

	cmp, err := s.CompareObjectsByID(context.Background(), ids.ObjectId("x"), ids.ObjectId("y"))
	assert.NoError(t, err)
	assert.Equal(t, ids.ComparisonDifferent, cmp)
}
