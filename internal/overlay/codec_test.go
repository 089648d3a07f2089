package overlay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

func TestUT_OV_07_DirRecordHeader_WriteRead_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, WriteDirRecordHeader(&buf))
	assert.Equal(t, dirRecordHeaderSize, buf.Len())
	assert.NoError(t, ReadDirRecordHeader(bytes.NewReader(buf.Bytes()), "test"))
}

func TestUT_OV_08_DirRecordHeader_BadMagic_IsDataCorruption(t *testing.T) {
	bad := make([]byte, dirRecordHeaderSize)
	err := ReadDirRecordHeader(bytes.NewReader(bad), "test")
	assert.True(t, vferrors.IsDataCorruption(err))
}

func TestUT_OV_09_EncodeDecodeDir_RoundTrips(t *testing.T) {
	contents := NewDirContents(true)
	contents.Set("a.txt", DirEntry{Mode: ModeRegular, InodeID: 10, ObjectID: ids.ObjectId("hash-a")})
	contents.Set("sub", DirEntry{Mode: ModeDirectory, InodeID: 11})

	dir := OverlayDir{Contents: contents, TreeObjectID: ids.ObjectId("tree-hash")}

	encoded := EncodeDir(dir)
	decoded, err := DecodeDir(encoded, true, "test")
	assert.NoError(t, err)

	assert.Equal(t, dir.TreeObjectID, decoded.TreeObjectID)
	assert.Equal(t, dir.Contents.SortedNames(), decoded.Contents.SortedNames())

	for _, name := range dir.Contents.SortedNames() {
		want, _ := dir.Contents.Get(name)
		got, ok := decoded.Contents.Get(name)
		assert.True(t, ok)
		assert.Equal(t, want.Mode, got.Mode)
		assert.Equal(t, want.InodeID, got.InodeID)
		assert.True(t, want.ObjectID.Equal(got.ObjectID))
	}
}

func TestUT_OV_10_EncodeDecodeDir_MaterializedDir_HasZeroTreeObjectID(t *testing.T) {
	dir := OverlayDir{Contents: NewDirContents(true)}
	assert.True(t, dir.IsMaterialized())

	decoded, err := DecodeDir(EncodeDir(dir), true, "test")
	assert.NoError(t, err)
	assert.True(t, decoded.IsMaterialized())
}
