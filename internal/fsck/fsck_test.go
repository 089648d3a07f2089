package fsck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/vfsoverlay/internal/content"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

type recordingArchiver struct {
	archived []string
}

func (a *recordingArchiver) Archive(parent ids.InodeId, name string, entry overlay.DirEntry) error {
	a.archived = append(a.archived, name)
	return nil
}

func TestUT_FS_01_Check_RecomputesNextInodeNumberFromObservedMax(t *testing.T) {
	cat := overlay.NewMemoryCatalog()
	root := overlay.NewDirContents(true)
	root.Set("a.txt", overlay.DirEntry{Mode: overlay.ModeRegular, InodeID: ids.InodeId(5), ObjectID: ids.ObjectId("blob")})
	require.NoError(t, cat.SaveDir(ids.RootInodeId, overlay.OverlayDir{Contents: root}))

	c := New(cat, content.NewEphemeralStore(), nil)
	report, err := c.Check(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, ids.InodeId(6), report.NextInodeID)
}

func TestUT_FS_02_Check_FlagsBadNextInodeNumberOnMismatch(t *testing.T) {
	cat := overlay.NewMemoryCatalog()
	root := overlay.NewDirContents(true)
	root.Set("a.txt", overlay.DirEntry{Mode: overlay.ModeRegular, InodeID: ids.InodeId(5), ObjectID: ids.ObjectId("blob")})
	require.NoError(t, cat.SaveDir(ids.RootInodeId, overlay.OverlayDir{Contents: root}))

	c := New(cat, content.NewEphemeralStore(), nil)
	report, err := c.Check(context.Background(), ids.InodeId(100))
	require.NoError(t, err)

	assert.Equal(t, 1, report.CountByKind(BadNextInodeNumber))
}

func TestUT_FS_03_Check_DetectsAndArchivesOrphan(t *testing.T) {
	cat := overlay.NewMemoryCatalog()
	require.NoError(t, cat.SaveDir(ids.RootInodeId, overlay.OverlayDir{Contents: overlay.NewDirContents(true)}))

	orphan := overlay.NewDirContents(true)
	orphan.Set("child.txt", overlay.DirEntry{Mode: overlay.ModeRegular, ObjectID: ids.ObjectId("blob")})
	require.NoError(t, cat.SaveDir(ids.InodeId(99), overlay.OverlayDir{Contents: orphan}))

	arc := &recordingArchiver{}
	c := New(cat, content.NewEphemeralStore(), arc)
	report, err := c.Check(context.Background(), 0)
	require.NoError(t, err)

	require.Equal(t, 1, report.CountByKind(OrphanInode))
	assert.Equal(t, 1, report.OrphansMoved)
	assert.Equal(t, []string{"child.txt"}, arc.archived)

	has, err := cat.HasDir(ids.InodeId(99))
	require.NoError(t, err)
	assert.False(t, has, "orphan must be removed from the catalog after archival")
}

func TestUT_FS_04_Check_DetectsHardLinkedInode(t *testing.T) {
	cat := overlay.NewMemoryCatalog()
	rootA := overlay.NewDirContents(true)
	rootA.Set("shared", overlay.DirEntry{Mode: overlay.ModeRegular, InodeID: ids.InodeId(7), ObjectID: ids.ObjectId("blob")})
	require.NoError(t, cat.SaveDir(ids.RootInodeId, overlay.OverlayDir{Contents: rootA}))

	dirB := overlay.NewDirContents(true)
	dirB.Set("shared", overlay.DirEntry{Mode: overlay.ModeRegular, InodeID: ids.InodeId(7), ObjectID: ids.ObjectId("blob")})
	require.NoError(t, cat.SaveDir(ids.InodeId(2001), overlay.OverlayDir{Contents: dirB}))
	rootA.Set("b", overlay.DirEntry{Mode: overlay.ModeDirectory, InodeID: ids.InodeId(2001)})
	require.NoError(t, cat.SaveDir(ids.RootInodeId, overlay.OverlayDir{Contents: rootA}))

	c := New(cat, content.NewEphemeralStore(), nil)
	report, err := c.Check(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, 1, report.CountByKind(HardLinkedInode))
}
