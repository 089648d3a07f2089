// Package inode implements the core in-memory inode subsystem: FileInode
// and TreeInode's materialization and directory-operation state machines
// (spec §4.5, §4.6), and the InodeMap load-coalescing guarantee (spec
// §4.4). It is grounded on Auriora-OneMount's internal/fs package
// (inode.go, cache.go, dir_operations.go, conflict_resolution.go), whose
// single-package layout and RWMutex-per-node, parent-before-child lock
// ordering this package carries forward.
package inode

import (
	"sync"

	"github.com/auriora/vfsoverlay/internal/backingstore"
	"github.com/auriora/vfsoverlay/internal/blobcache"
	"github.com/auriora/vfsoverlay/internal/content"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/journal"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

// Deps bundles the collaborators every FileInode and TreeInode needs.
// A Mount constructs exactly one Deps and shares it across the whole
// inode tree, matching the teacher's single Filesystem struct owning
// one content cache / one API client for every Inode.
type Deps struct {
	Store         backingstore.Store
	Content       content.FileContentStore
	BlobCache     *blobcache.BlobCache
	Catalog       overlay.InodeCatalog
	Journal       journal.Journal
	Allocator     *ids.Allocator
	Map           *InodeMap
	CaseSensitive bool

	// RenameLock is the mount-wide rename lock (spec §5 level 1): held
	// for read by every operation that walks the tree by path, and for
	// write by Rename. Held above every per-node lock.
	RenameLock *sync.RWMutex
}
