package inode

import (
	"sync"
	"time"

	"github.com/auriora/vfsoverlay/internal/backingstore"
	"github.com/auriora/vfsoverlay/internal/blobcache"
	"github.com/auriora/vfsoverlay/internal/content"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/journal"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

func newTestDeps() (*Deps, *backingstore.MemoryStore) {
	store := backingstore.NewMemoryStore()
	lock := &sync.RWMutex{}
	return &Deps{
		Store:         store,
		Content:       content.NewEphemeralStore(),
		BlobCache:     blobcache.NewBlobCache(1 << 20, time.Minute),
		Catalog:       overlay.NewMemoryCatalog(),
		Journal:       journal.NewRecorder(),
		Allocator:     ids.NewAllocator(ids.RootInodeId),
		Map:           NewInodeMap(),
		CaseSensitive: true,
		RenameLock:    lock,
	}, store
}

func newTestRoot(deps *Deps) *TreeInode {
	root := NewRootTreeInode(nil, deps)
	root.contents = overlay.NewDirContents(deps.CaseSensitive)
	deps.Map.StartLoadingChildIfNotLoading(ids.RootInodeId, func() (Node, error) { return root, nil })
	return root
}
