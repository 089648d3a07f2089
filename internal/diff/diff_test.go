package diff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auriora/vfsoverlay/internal/backingstore"
	"github.com/auriora/vfsoverlay/internal/blobcache"
	"github.com/auriora/vfsoverlay/internal/content"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/inode"
	"github.com/auriora/vfsoverlay/internal/journal"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

func newDiffFixture() (*backingstore.MemoryStore, *inode.TreeInode) {
	store := backingstore.NewMemoryStore()
	deps := &inode.Deps{
		Store:         store,
		Content:       content.NewEphemeralStore(),
		BlobCache:     blobcache.NewBlobCache(1 << 20, time.Minute),
		Catalog:       overlay.NewMemoryCatalog(),
		Journal:       journal.NewRecorder(),
		Allocator:     ids.NewAllocator(ids.RootInodeId),
		Map:           inode.NewInodeMap(),
		CaseSensitive: true,
		RenameLock:    &sync.RWMutex{},
	}
	root := inode.NewRootTreeInode(nil, deps)
	deps.Map.StartLoadingChildIfNotLoading(ids.RootInodeId, func() (inode.Node, error) { return root, nil })
	return store, root
}

func TestUT_DF_01_Diff_LocalAdditionIsReportedAdded(t *testing.T) {
	store, root := newDiffFixture()
	_, err := root.Create(context.Background(), "new.txt", overlay.ModeRegular)
	require.NoError(t, err)

	eng := New(store, false)
	entries, err := eng.Diff(context.Background(), root, nil)
	require.NoError(t, err)

	found := false
	for _, e := range entries {
		if e.Path == "/new.txt" && e.Status == Added {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUT_DF_02_Diff_RemovedFromWorkingCopyIsReportedRemoved(t *testing.T) {
	store, root := newDiffFixture()
	treeID := ids.ObjectId("tree-1")
	store.PutTree(treeID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "gone.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-g")},
	}})

	eng := New(store, false)
	entries, err := eng.Diff(context.Background(), root, []ids.ObjectId{treeID})
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, Removed, entries[0].Status)
}

func TestUT_DF_03_Diff_UnchangedNonMaterializedEntryIsSkipped(t *testing.T) {
	store, root := newDiffFixture()
	treeID := ids.ObjectId("tree-2")
	store.PutTree(treeID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "same.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-s")},
	}})
	require.NoError(t, root.ApplyCheckoutEntry(context.Background(), "same.txt", overlay.ModeRegular, ids.ObjectId("blob-s")))

	eng := New(store, false)
	entries, err := eng.Diff(context.Background(), root, []ids.ObjectId{treeID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUT_DF_04_Diff_HiddenReservedNameIsDropped(t *testing.T) {
	store, root := newDiffFixture()
	require.NoError(t, root.ApplyCheckoutEntry(context.Background(), ".eden", overlay.ModeDirectory, nil))

	eng := New(store, false)
	entries, err := eng.Diff(context.Background(), root, nil)
	require.NoError(t, err)

	assert.Empty(t, entries)
}

func TestUT_GI_01_ParseGitignore_RespectsNegation(t *testing.T) {
	m := parseGitignore([]byte("*.log\n!keep.log\n"))
	matched, ignore := m.match("debug.log")
	assert.True(t, matched)
	assert.True(t, ignore)

	matched, ignore = m.match("keep.log")
	assert.True(t, matched)
	assert.False(t, ignore)
}
