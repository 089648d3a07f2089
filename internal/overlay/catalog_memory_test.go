package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

func TestUT_OV_11_MemoryCatalog_SaveLoad_RoundTrips(t *testing.T) {
	c := NewMemoryCatalog()
	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 4})
	dir := OverlayDir{Contents: contents}

	assert.NoError(t, c.SaveDir(ids.InodeId(4), dir))

	loaded, err := c.LoadDir(ids.InodeId(4))
	assert.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 1, loaded.Contents.Len())
}

func TestUT_OV_12_MemoryCatalog_RemoveDir_NonEmpty_Fails(t *testing.T) {
	c := NewMemoryCatalog()
	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 4})
	assert.NoError(t, c.SaveDir(ids.InodeId(3), OverlayDir{Contents: contents}))

	err := c.RemoveDir(ids.InodeId(3))
	assert.True(t, vferrors.IsDirectoryNotEmpty(err))
}

func TestUT_OV_13_MemoryCatalog_RemoveDir_Empty_Succeeds(t *testing.T) {
	c := NewMemoryCatalog()
	assert.NoError(t, c.SaveDir(ids.InodeId(3), OverlayDir{Contents: NewDirContents(true)}))
	assert.NoError(t, c.RemoveDir(ids.InodeId(3)))

	has, err := c.HasDir(ids.InodeId(3))
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestUT_OV_14_MemoryCatalog_NextInodeNumber_IsMonotonic(t *testing.T) {
	c := NewMemoryCatalog()
	first, err := c.NextInodeNumber()
	assert.NoError(t, err)
	second, err := c.NextInodeNumber()
	assert.NoError(t, err)
	assert.Greater(t, uint64(second), uint64(first))
}

func TestUT_OV_15_MemoryCatalog_LoadAndRemoveDir_RemovesEvenIfNonEmpty(t *testing.T) {
	c := NewMemoryCatalog()
	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 4})
	assert.NoError(t, c.SaveDir(ids.InodeId(3), OverlayDir{Contents: contents}))

	dir, err := c.LoadAndRemoveDir(ids.InodeId(3))
	assert.NoError(t, err)
	assert.NotNil(t, dir)

	has, _ := c.HasDir(ids.InodeId(3))
	assert.False(t, has)
}
