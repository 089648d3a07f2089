package overlay

import "github.com/auriora/vfsoverlay/internal/ids"

// InodeCatalog is a durable mapping InodeId -> OverlayDir, plus an
// atomic inode-id allocator (spec §4.1). Each variant below is selected
// at mount init via internal/config.
type InodeCatalog interface {
	// Init acquires an exclusive lock on the catalog directory/handle
	// and returns the recorded next id if the previous shutdown was
	// clean. A nil *ids.InodeId means the shutdown was unclean and the
	// caller must run fsck recovery before proceeding.
	Init(createIfMissing bool) (*ids.InodeId, error)

	// Close writes the next id durably and releases the lock.
	Close(nextInodeID ids.InodeId) error

	LoadDir(id ids.InodeId) (*OverlayDir, error)
	LoadAndRemoveDir(id ids.InodeId) (*OverlayDir, error)
	SaveDir(id ids.InodeId, dir OverlayDir) error
	RemoveDir(id ids.InodeId) error
	HasDir(id ids.InodeId) (bool, error)

	NextInodeNumber() (ids.InodeId, error)

	// AllParentInodeNumbers returns every persisted directory's id, for
	// fsck's enumeration pass (spec §4.1 bullet 1).
	AllParentInodeNumbers() ([]ids.InodeId, error)
}

// SemanticChildCatalog is implemented by catalog backends that can apply
// single-child mutations without rewriting the full parent record (spec
// §4.1: "If the backend supports semantic operations"). Backends that
// don't implement this force TreeInode to overwrite the full parent
// record on every child mutation.
type SemanticChildCatalog interface {
	AddChild(parent ids.InodeId, name string, entry DirEntry) error
	RemoveChild(parent ids.InodeId, name string) error
	HasChild(parent ids.InodeId, name string) (bool, error)
	RenameChild(srcParent, dstParent ids.InodeId, srcName, dstName string) error
}
