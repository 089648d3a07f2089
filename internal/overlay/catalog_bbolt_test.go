package overlay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

func openTestBboltCatalog(t *testing.T) *BboltCatalog {
	t.Helper()
	c := NewBboltCatalog(true)
	err := c.Open(filepath.Join(t.TempDir(), "overlay.db"))
	assert.NoError(t, err)
	t.Cleanup(func() { c.db.Close() })
	return c
}

func TestUT_OV_24_BboltCatalog_SaveLoad_RoundTrips(t *testing.T) {
	c := openTestBboltCatalog(t)

	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 2, ObjectID: ids.ObjectId("h")})
	assert.NoError(t, c.SaveDir(ids.InodeId(4), OverlayDir{Contents: contents}))

	loaded, err := c.LoadDir(ids.InodeId(4))
	assert.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 1, loaded.Contents.Len())
}

func TestUT_OV_25_BboltCatalog_RemoveDir_NonEmpty_Fails(t *testing.T) {
	c := openTestBboltCatalog(t)

	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 2})
	assert.NoError(t, c.SaveDir(ids.InodeId(4), OverlayDir{Contents: contents}))

	err := c.RemoveDir(ids.InodeId(4))
	assert.True(t, vferrors.IsDirectoryNotEmpty(err))
}

func TestUT_OV_26_BboltCatalog_SemanticChildOps_AddRemoveRenameChild(t *testing.T) {
	c := openTestBboltCatalog(t)
	assert.NoError(t, c.SaveDir(ids.InodeId(1), OverlayDir{Contents: NewDirContents(true)}))
	assert.NoError(t, c.SaveDir(ids.InodeId(2), OverlayDir{Contents: NewDirContents(true)}))

	entry := DirEntry{Mode: ModeRegular, InodeID: 3}
	assert.NoError(t, c.AddChild(ids.InodeId(1), "file.txt", entry))

	has, err := c.HasChild(ids.InodeId(1), "file.txt")
	assert.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, c.RenameChild(ids.InodeId(1), ids.InodeId(2), "file.txt", "moved.txt"))

	has, err = c.HasChild(ids.InodeId(1), "file.txt")
	assert.NoError(t, err)
	assert.False(t, has)

	has, err = c.HasChild(ids.InodeId(2), "moved.txt")
	assert.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, c.RemoveChild(ids.InodeId(2), "moved.txt"))
	has, err = c.HasChild(ids.InodeId(2), "moved.txt")
	assert.NoError(t, err)
	assert.False(t, has)
}

func TestUT_OV_27_BboltCatalog_CloseReopen_PersistsNextInodeNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.db")

	c := NewBboltCatalog(true)
	assert.NoError(t, c.Open(path))
	_, err := c.Init(true)
	assert.NoError(t, err)
	assert.NoError(t, c.Close(ids.InodeId(55)))

	c2 := NewBboltCatalog(true)
	assert.NoError(t, c2.Open(path))
	next, err := c2.Init(true)
	assert.NoError(t, err)
	assert.NotNil(t, next)
	assert.Equal(t, ids.InodeId(55), *next)
	assert.NoError(t, c2.Close(ids.InodeId(55)))
}
