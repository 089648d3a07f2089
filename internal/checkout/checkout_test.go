package checkout

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

func newFixture() (*inode.Deps, *backingstore.MemoryStore, *inode.TreeInode) {
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
	fromRoot := ids.ObjectId("from-root")
	store.PutTree(fromRoot, backingstore.Tree{})
	root := inode.NewRootTreeInode(fromRoot, deps)
	deps.Map.StartLoadingChildIfNotLoading(ids.RootInodeId, func() (inode.Node, error) { return root, nil })
	return deps, store, root
}

func TestUT_CO_01_Checkout_CleanAdd_AppliesSilently(t *testing.T) {
	_, store, root := newFixture()
	fromID := ids.ObjectId("from-1")
	toID := ids.ObjectId("to-1")
	store.PutTree(fromID, backingstore.Tree{})
	store.PutTree(toID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "a.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-a")},
	}})
	store.PutBlob(ids.ObjectId("blob-a"), backingstore.Blob{Data: []byte("hi")})

	eng := New(store)
	cctx := NewContext(Normal)
	require.NoError(t, eng.Checkout(context.Background(), root, fromID, toID, cctx))

	assert.Empty(t, cctx.Conflicts)
	_, desc, err := root.GetOrFindChild(context.Background(), "a.txt", false)
	require.NoError(t, err)
	assert.Equal(t, "blob-a", string(desc.ObjectID))
}

func TestUT_CO_02_Checkout_LocallyModifiedRemoval_ConflictsInNormalMode(t *testing.T) {
	deps, store, root := newFixture()
	fromID := ids.ObjectId("from-2")
	toID := ids.ObjectId("to-2")
	store.PutTree(fromID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "f.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-f")},
	}})
	store.PutTree(toID, backingstore.Tree{})
	store.PutBlob(ids.ObjectId("blob-f"), backingstore.Blob{Data: []byte("v1")})

	_, err := root.Create(context.Background(), "f.txt", overlay.ModeRegular)
	require.NoError(t, err)

	eng := New(store)
	cctx := NewContext(Normal)
	require.NoError(t, eng.Checkout(context.Background(), root, fromID, toID, cctx))

	require.Len(t, cctx.Conflicts, 1)
	assert.Equal(t, ModifiedRemoved, cctx.Conflicts[0].Kind)

	_, _, err = root.GetOrFindChild(context.Background(), "f.txt", false)
	assert.NoError(t, err, "conflicting removal must be skipped, leaving the entry in place")
	_ = deps
}

func TestUT_CO_03_Checkout_Force_AppliesDespiteConflict(t *testing.T) {
	deps, store, root := newFixture()
	fromID := ids.ObjectId("from-3")
	toID := ids.ObjectId("to-3")
	store.PutTree(fromID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "f.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-f")},
	}})
	store.PutTree(toID, backingstore.Tree{})
	store.PutBlob(ids.ObjectId("blob-f"), backingstore.Blob{Data: []byte("v1")})

	_, err := root.Create(context.Background(), "f.txt", overlay.ModeRegular)
	require.NoError(t, err)

	eng := New(store)
	cctx := NewContext(Force)
	require.NoError(t, eng.Checkout(context.Background(), root, fromID, toID, cctx))

	require.Len(t, cctx.Conflicts, 1)
	_, _, err = root.GetOrFindChild(context.Background(), "f.txt", false)
	assert.Error(t, err, "Force must apply the removal despite the conflict")
	_ = deps
}

func TestUT_CO_04_Checkout_DryRun_NeverMutates(t *testing.T) {
	deps, store, root := newFixture()
	fromID := ids.ObjectId("from-4")
	toID := ids.ObjectId("to-4")
	store.PutTree(fromID, backingstore.Tree{})
	store.PutTree(toID, backingstore.Tree{Entries: []backingstore.TreeEntry{
		{Name: "new.txt", Mode: uint32(overlay.ModeRegular), ObjectID: ids.ObjectId("blob-n")},
	}})
	store.PutBlob(ids.ObjectId("blob-n"), backingstore.Blob{Data: []byte("n")})

	eng := New(store)
	cctx := NewContext(DryRun)
	require.NoError(t, eng.Checkout(context.Background(), root, fromID, toID, cctx))

	_, _, err := root.GetOrFindChild(context.Background(), "new.txt", false)
	assert.Error(t, err, "DryRun must never mutate the working copy")
	_ = deps
}
