package inode

import (
	"context"
	"time"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

// persistSelfLocked persists t's current in-memory state without
// acquiring t.mu, for callers (Rename) that already hold it for
// writing.
func (t *TreeInode) persistSelfLocked() error {
	dir := overlay.OverlayDir{Contents: t.contents, TreeObjectID: t.treeObjectID}
	return t.deps.Catalog.SaveDir(t.id, dir)
}

// isAncestorOrSelf walks up from node to the root looking for id,
// implementing Rename's cycle-prevention check (spec §4.9 policy:
// "EINVAL cycle prevention") without needing to load the moved
// directory's entire subtree — renaming srcId into dstParent is a cycle
// exactly when dstParent is srcId or a descendant of it, i.e. when srcId
// appears among dstParent's ancestors.
func isAncestorOrSelf(node *TreeInode, id ids.InodeId) bool {
	for n := node; n != nil; n = n.parent {
		if n.id == id {
			return true
		}
	}
	return false
}

// Rename executes the 10-step locked rename procedure (spec §4.9).
// Callers must hold the mount-wide rename lock (spec §5 level 1) before
// calling; Rename itself only manages the parent/child/inode-map locks
// at levels 2-5.
func Rename(ctx context.Context, srcParent, dstParent *TreeInode, srcName, dstName string) (err error) {
	lc := logging.NewLogContext("rename").
		WithComponent("inode").
		With(logging.FieldSource, srcName).
		With(logging.FieldTarget, dstName)
	methodName, startTime, logger, lc := logging.LogMethodEntryWithContext("Rename", lc)
	defer func() {
		logging.LogMethodExitWithContext(methodName, startTime, logger, lc, err)
	}()

	if srcParent.isReserved() || dstParent.isReserved() {
		return vferrors.PermissionDenied(srcName)
	}
	if srcParent == dstParent && srcName == dstName {
		logging.LogDebugWithContext(lc, "rename is a same src/dst no-op")
		return nil // policy: same src and dst is a no-op
	}
	if err := srcParent.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := dstParent.ensureLoaded(ctx); err != nil {
		return err
	}

	// Step 1: mark both parents materialized (recursive). Done before
	// taking the contents locks below since this walks and locks each
	// ancestor independently.
	srcParent.MarkMaterializedRecursive()
	dstParent.MarkMaterializedRecursive()

	// Step 2: parent contents locks in ascending inode id order.
	first, second := srcParent, dstParent
	sameParent := srcParent.id == dstParent.id
	if !sameParent && dstParent.id < srcParent.id {
		first, second = dstParent, srcParent
	}
	first.mu.Lock()
	if !sameParent {
		second.mu.Lock()
	}
	unlockParents := func() {
		if !sameParent {
			second.mu.Unlock()
		}
		first.mu.Unlock()
	}

	srcEntry, ok := srcParent.contents.Get(srcName)
	if !ok {
		unlockParents()
		return vferrors.NotFound(srcName)
	}

	var deletedDestID ids.InodeId
	dstEntry, dstExists := dstParent.contents.Get(dstName)
	if dstExists {
		if dstEntry.InodeID == srcEntry.InodeID {
			unlockParents()
			return nil // same inode under both names: no-op
		}
		if srcEntry.Mode.IsDir() != dstEntry.Mode.IsDir() {
			unlockParents()
			if srcEntry.Mode.IsDir() {
				return vferrors.NotADirectory(dstName)
			}
			return vferrors.IsADirectory(dstName)
		}
		if dstEntry.Mode.IsDir() {
			// Step 3: destination-child contents lock, to check
			// emptiness (lock order level 3).
			if child, ok := dstParent.deps.Map.Get(dstEntry.InodeID); ok {
				if ti, ok := child.(*TreeInode); ok {
					ti.mu.RLock()
					empty := ti.contents == nil || ti.contents.Len() == 0
					ti.mu.RUnlock()
					if !empty {
						unlockParents()
						return vferrors.DirectoryNotEmpty(dstName)
					}
				}
			}
		}
		deletedDestID = dstEntry.InodeID
	}

	if srcEntry.Mode.IsDir() && isAncestorOrSelf(dstParent, srcEntry.InodeID) {
		unlockParents()
		return vferrors.InvalidArgument(srcName, "cannot rename a directory into its own descendant")
	}

	// Step 3 (continued)/4: update the destination entry and the
	// source's back-edge.
	srcParent.contents.Remove(srcName)
	dstParent.contents.Set(dstName, overlay.DirEntry{Mode: srcEntry.Mode, InodeID: srcEntry.InodeID, ObjectID: srcEntry.ObjectID})

	// Step 4: update the moved child's parent pointer and name (its
	// back-edge) — level 4 lock (FileInode/TreeInode state lock).
	if child, ok := srcParent.deps.Map.Get(srcEntry.InodeID); ok {
		switch n := child.(type) {
		case *TreeInode:
			n.mu.Lock()
			n.parent = dstParent
			n.name = dstName
			n.mu.Unlock()
		case *FileInode:
			n.mu.Lock()
			n.parent = dstParent
			n.name = dstName
			n.mu.Unlock()
		}
	}

	// Step 6: update mtime/ctime on both parents.
	now := time.Now()
	srcParent.mtime, srcParent.ctime = now, now
	if !sameParent {
		dstParent.mtime, dstParent.ctime = now, now
	}

	// Step 7: persist (semantic rename_child if the catalog supports
	// it, else full rewrite of both parent records) while still holding
	// the contents locks.
	var persistErr error
	if sc, ok := srcParent.deps.Catalog.(overlay.SemanticChildCatalog); ok && !sameParent {
		persistErr = sc.RenameChild(srcParent.id, dstParent.id, srcName, dstName)
	} else {
		if err := srcParent.persistSelfLocked(); err != nil {
			persistErr = err
		} else if !sameParent {
			persistErr = dstParent.persistSelfLocked()
		} else {
			persistErr = srcParent.persistSelfLocked()
		}
	}

	// Step 8: release all locks except the mount rename lock (held by
	// our caller, not by us).
	unlockParents()

	if persistErr != nil {
		logging.LogErrorWithContext(persistErr, lc, "rename failed to persist directory record")
		return persistErr
	}

	// Step 9: emit a journal event.
	if dstExists {
		srcParent.deps.Journal.RecordReplaced(dstParent.id, dstName, deletedDestID, srcEntry.InodeID)
	} else {
		srcParent.deps.Journal.RecordRenamed(srcParent.id, srcName, dstParent.id, dstName, srcEntry.InodeID)
	}

	// Step 10: destroy any deleted destination inode, now that every
	// directory lock is released.
	if dstExists {
		if dstEntry.Mode.IsDir() {
			_ = dstParent.deps.Catalog.RemoveDir(deletedDestID)
		} else {
			_ = dstParent.deps.Content.Remove(deletedDestID)
		}
		dstParent.deps.Map.Unload(deletedDestID)
	}
	return nil
}
