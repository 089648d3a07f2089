package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auriora/vfsoverlay/internal/ids"
)

func TestUT_OV_20_BufferedCatalog_SaveDir_IsVisibleBeforeFlush(t *testing.T) {
	underlying := NewMemoryCatalog()
	c := NewBufferedCatalog(underlying, 1<<20)

	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 1})
	assert.NoError(t, c.SaveDir(ids.InodeId(5), OverlayDir{Contents: contents}))

	loaded, err := c.LoadDir(ids.InodeId(5))
	assert.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 1, loaded.Contents.Len())

	assert.NoError(t, c.Close(ids.InodeId(100)))
}

func TestUT_OV_21_BufferedCatalog_Flush_AppliesToUnderlying(t *testing.T) {
	underlying := NewMemoryCatalog()
	c := NewBufferedCatalog(underlying, 1<<20)

	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 1})
	assert.NoError(t, c.SaveDir(ids.InodeId(5), OverlayDir{Contents: contents}))

	c.Flush()

	has, err := underlying.HasDir(ids.InodeId(5))
	assert.NoError(t, err)
	assert.True(t, has)

	assert.NoError(t, c.Close(ids.InodeId(100)))
}

func TestUT_OV_22_BufferedCatalog_CoalescesRepeatedWritesToSameInode(t *testing.T) {
	underlying := NewMemoryCatalog()
	c := NewBufferedCatalog(underlying, 1<<20)

	for i := 0; i < 5; i++ {
		contents := NewDirContents(true)
		for j := 0; j <= i; j++ {
			contents.Set(string(rune('a'+j)), DirEntry{Mode: ModeRegular, InodeID: ids.InodeId(j + 1)})
		}
		assert.NoError(t, c.SaveDir(ids.InodeId(9), OverlayDir{Contents: contents}))
	}

	c.Flush()

	loaded, err := underlying.LoadDir(ids.InodeId(9))
	assert.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Equal(t, 5, loaded.Contents.Len(), "only the last coalesced write should survive")

	assert.NoError(t, c.Close(ids.InodeId(100)))
}

func TestUT_OV_23_BufferedCatalog_Close_FlushesBeforeDelegating(t *testing.T) {
	underlying := NewMemoryCatalog()
	c := NewBufferedCatalog(underlying, 1<<20)

	contents := NewDirContents(true)
	contents.Set("a", DirEntry{Mode: ModeRegular, InodeID: 1})
	assert.NoError(t, c.SaveDir(ids.InodeId(5), OverlayDir{Contents: contents}))

	assert.NoError(t, c.Close(ids.InodeId(77)))

	has, err := underlying.HasDir(ids.InodeId(5))
	assert.NoError(t, err)
	assert.True(t, has)
}
