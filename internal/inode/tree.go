package inode

import (
	"context"
	"sync"
	"time"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

// ChildDescriptor is what get_or_find_child/get_children hand back
// without necessarily instantiating the child's in-memory inode object
// (spec §4.6): enough to answer lookup/readdir without paying the cost
// of loading every child.
type ChildDescriptor struct {
	Name     string
	Mode     overlay.EntryMode
	InodeID  ids.InodeId
	ObjectID ids.ObjectId // zero iff the child is materialized
}

// TreeInode is a directory. It is materialized iff treeObjectID is
// empty (spec §3). Contents are loaded lazily on first access and kept
// resident afterward; mu guards both contents and the metadata below it,
// matching Auriora-OneMount's per-Inode RWMutex (internal/fs/inode.go)
// generalized to the directory-contents lock the spec's §5 lock order
// names explicitly ("parent TreeInode contents lock(s)").
type TreeInode struct {
	deps *Deps

	mu           sync.RWMutex
	id           ids.InodeId
	parent       *TreeInode // nil for the mount root
	name         string
	treeObjectID ids.ObjectId
	contents     *overlay.DirContents

	mode     overlay.EntryMode
	uid, gid uint32
	mtime    time.Time
	atime    time.Time
	ctime    time.Time
}

// NewRootTreeInode constructs the mount root: id 1, no parent, mirroring
// rootTreeObjectID.
func NewRootTreeInode(rootTreeObjectID ids.ObjectId, deps *Deps) *TreeInode {
	now := time.Now()
	return &TreeInode{
		deps: deps, id: ids.RootInodeId, name: "", treeObjectID: rootTreeObjectID,
		mode: overlay.ModeDirectory, mtime: now, atime: now, ctime: now,
	}
}

func newChildTreeInode(id ids.InodeId, parent *TreeInode, name string, mode overlay.EntryMode, treeObjectID ids.ObjectId, deps *Deps) *TreeInode {
	now := time.Now()
	return &TreeInode{
		deps: deps, id: id, parent: parent, name: name, treeObjectID: treeObjectID,
		mode: mode, mtime: now, atime: now, ctime: now,
	}
}

func (t *TreeInode) ID() ids.InodeId { return t.id }

func (t *TreeInode) IsMaterialized() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.treeObjectID.IsZero()
}

// TreeObjectID returns the source-control tree this directory mirrors,
// or a zero ObjectId if materialized.
func (t *TreeInode) TreeObjectID() ids.ObjectId {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.treeObjectID
}

// Name returns the directory's name within its parent ("" for the
// mount root), used by CheckoutEngine/DiffEngine to build display paths.
func (t *TreeInode) Name() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

func (t *TreeInode) Stat() Attrs {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Attrs{Mode: t.mode, Uid: t.uid, Gid: t.gid, Mtime: t.mtime, Atime: t.atime, Ctime: t.ctime}
}

// isReserved reports whether this directory is, or this name would
// land inside, the reserved .eden introspection subtree (spec §3's
// ReservedDotEdenInodeId). Every mutating TreeInode method validates
// this before taking any lock.
func (t *TreeInode) isReserved() bool {
	return t.id == ids.ReservedDotEdenInodeId
}

// ensureLoaded loads contents on first access, either from the catalog
// (already persisted, materialized or not) or by synthesizing an
// unmaterialized mirror of the backing-store tree this directory
// points at (spec §4.1/§4.6).
func (t *TreeInode) ensureLoaded(ctx context.Context) error {
	t.mu.RLock()
	loaded := t.contents != nil
	t.mu.RUnlock()
	if loaded {
		return nil
	}

	dir, err := t.deps.Catalog.LoadDir(t.id)
	if err != nil {
		return err
	}
	if dir != nil {
		t.mu.Lock()
		if t.contents == nil {
			t.contents = dir.Contents
			t.treeObjectID = dir.TreeObjectID
		}
		t.mu.Unlock()
		return nil
	}

	t.mu.RLock()
	oid := t.treeObjectID
	t.mu.RUnlock()
	if oid.IsZero() {
		t.mu.Lock()
		if t.contents == nil {
			t.contents = overlay.NewDirContents(t.deps.CaseSensitive)
		}
		t.mu.Unlock()
		return nil
	}

	tree, err := t.deps.Store.GetTree(ctx, oid)
	if err != nil {
		return err
	}
	contents := overlay.NewDirContents(t.deps.CaseSensitive)
	for _, te := range tree.Entries {
		childID, aerr := t.deps.Allocator.Next()
		if aerr != nil {
			return aerr
		}
		contents.Set(te.Name, overlay.DirEntry{Mode: overlay.EntryMode(te.Mode), InodeID: childID, ObjectID: te.ObjectID})
	}
	t.mu.Lock()
	if t.contents == nil {
		t.contents = contents
	}
	t.mu.Unlock()
	return t.persistSelf()
}

func (t *TreeInode) persistSelf() error {
	t.mu.RLock()
	dir := overlay.OverlayDir{Contents: t.contents, TreeObjectID: t.treeObjectID}
	t.mu.RUnlock()
	return t.deps.Catalog.SaveDir(t.id, dir)
}

// MarkMaterializedRecursive clears treeObjectID on this directory and
// every ancestor up to the root, persisting each as it goes (spec §8
// invariant: every ancestor of a materialized node is itself
// materialized).
func (t *TreeInode) MarkMaterializedRecursive() {
	t.mu.Lock()
	if t.treeObjectID.IsZero() {
		t.mu.Unlock()
		return
	}
	t.treeObjectID = nil
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()

	if err := t.persistSelf(); err != nil {
		lc := logging.NewLogContext("mark_materialized").WithComponent("inode").With(logging.FieldID, t.id.String())
		logging.LogErrorAsWarnWithContext(err, lc, "failed to persist materialization")
	}
	if t.parent != nil {
		t.parent.MarkMaterializedRecursive()
	}
}

// GetOrFindChild looks up name without instantiating the child's
// in-memory inode object unless loadInode is set (spec §4.6
// get_or_find_child).
func (t *TreeInode) GetOrFindChild(ctx context.Context, name string, loadInode bool) (Node, ChildDescriptor, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, ChildDescriptor{}, err
	}
	t.mu.Lock()
	entry, ok := t.contents.Get(name)
	if !ok {
		t.mu.Unlock()
		return nil, ChildDescriptor{}, vferrors.NotFound(name)
	}
	if !entry.InodeID.IsSet() {
		id, err := t.deps.Allocator.Next()
		if err != nil {
			t.mu.Unlock()
			return nil, ChildDescriptor{}, err
		}
		entry.InodeID = id
		t.contents.Set(name, entry)
	}
	desc := ChildDescriptor{Name: name, Mode: entry.Mode, InodeID: entry.InodeID, ObjectID: entry.ObjectID}
	t.mu.Unlock()
	if err := t.persistSelf(); err != nil {
		return nil, ChildDescriptor{}, err
	}

	if !loadInode {
		return nil, desc, nil
	}
	n, err := t.loadChildNode(ctx, desc)
	return n, desc, err
}

func (t *TreeInode) loadChildNode(ctx context.Context, desc ChildDescriptor) (Node, error) {
	n, err, _ := t.deps.Map.StartLoadingChildIfNotLoading(desc.InodeID, func() (Node, error) {
		if desc.Mode.IsDir() {
			return newChildTreeInode(desc.InodeID, t, desc.Name, desc.Mode, desc.ObjectID, t.deps), nil
		}
		var size int64
		if !desc.ObjectID.IsZero() {
			if sz, err := t.deps.Store.GetBlobSize(ctx, desc.ObjectID); err == nil {
				size = int64(sz)
			}
		}
		return NewFileInode(desc.InodeID, t, desc.Name, desc.Mode, desc.ObjectID, size, t.deps), nil
	})
	return n, err
}

// GetChildren lists every child descriptor without forcing any of them
// to be loaded (spec §4.6 get_children, used by readdir).
func (t *TreeInode) GetChildren(ctx context.Context) ([]ChildDescriptor, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ChildDescriptor, 0, t.contents.Len())
	for _, name := range t.contents.SortedNames() {
		e, _ := t.contents.Get(name)
		out = append(out, ChildDescriptor{Name: name, Mode: e.Mode, InodeID: e.InodeID, ObjectID: e.ObjectID})
	}
	return out, nil
}

func (t *TreeInode) Readdir(ctx context.Context) ([]ChildDescriptor, error) {
	t.touchAtime()
	return t.GetChildren(ctx)
}

// GetOrLoadChild loads (instantiating if necessary) the named child.
func (t *TreeInode) GetOrLoadChild(ctx context.Context, name string) (Node, error) {
	n, _, err := t.GetOrFindChild(ctx, name, true)
	return n, err
}

// GetOrLoadChildTree loads name and asserts it is a directory.
func (t *TreeInode) GetOrLoadChildTree(ctx context.Context, name string) (*TreeInode, error) {
	n, err := t.GetOrLoadChild(ctx, name)
	if err != nil {
		return nil, err
	}
	child, ok := n.(*TreeInode)
	if !ok {
		return nil, vferrors.NotADirectory(name)
	}
	return child, nil
}

// GetChildRecursive walks path component by component from this
// directory.
func (t *TreeInode) GetChildRecursive(ctx context.Context, path []string) (Node, error) {
	if len(path) == 0 {
		return t, nil
	}
	cur := t
	for i, comp := range path {
		n, err := cur.GetOrLoadChild(ctx, comp)
		if err != nil {
			return nil, err
		}
		if i == len(path)-1 {
			return n, nil
		}
		next, ok := n.(*TreeInode)
		if !ok {
			return nil, vferrors.NotADirectory(comp)
		}
		cur = next
	}
	return cur, nil
}

// insertChild is the shared tail of mkdir/create/mknod/symlink: checks
// for reserved paths and collisions, materializes self if needed,
// allocates an id, writes the new child's entry, and persists.
func (t *TreeInode) insertChild(name string, mode overlay.EntryMode) (ids.InodeId, error) {
	if t.isReserved() {
		return 0, vferrors.PermissionDenied(name)
	}
	if err := t.ensureLoaded(context.Background()); err != nil {
		return 0, err
	}
	t.mu.Lock()
	if _, exists := t.contents.Get(name); exists {
		t.mu.Unlock()
		return 0, vferrors.AlreadyExists(name)
	}
	t.mu.Unlock()

	id, err := t.deps.Allocator.Next()
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	t.contents.Set(name, overlay.DirEntry{Mode: mode, InodeID: id})
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()

	wasMaterialized := t.IsMaterialized()
	if !wasMaterialized {
		t.MarkMaterializedRecursive()
	} else if err := t.persistSelf(); err != nil {
		return 0, err
	}
	return id, nil
}

// EnsureReservedEden installs the fixed-id `.eden` introspection
// subtree (SPEC_FULL supplemented feature 2) as a child of the root,
// bypassing the normal allocator-assigned path Mkdir takes since this
// id must always be exactly ReservedDotEdenInodeId. A no-op if already
// present. Only meaningful when called on the mount root.
func (t *TreeInode) EnsureReservedEden(ctx context.Context) (*TreeInode, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	t.mu.Lock()
	if existing, ok := t.contents.Get(".eden"); ok {
		t.mu.Unlock()
		if n, ok := t.deps.Map.Get(existing.InodeID); ok {
			if ti, ok := n.(*TreeInode); ok {
				return ti, nil
			}
		}
		eden := newChildTreeInode(ids.ReservedDotEdenInodeId, t, ".eden", overlay.ModeDirectory, nil, t.deps)
		eden.contents = overlay.NewDirContents(t.deps.CaseSensitive)
		t.deps.Map.StartLoadingChildIfNotLoading(ids.ReservedDotEdenInodeId, func() (Node, error) { return eden, nil })
		return eden, nil
	}
	t.contents.Set(".eden", overlay.DirEntry{Mode: overlay.ModeDirectory, InodeID: ids.ReservedDotEdenInodeId})
	t.mu.Unlock()

	eden := newChildTreeInode(ids.ReservedDotEdenInodeId, t, ".eden", overlay.ModeDirectory, nil, t.deps)
	eden.contents = overlay.NewDirContents(t.deps.CaseSensitive)
	if err := eden.persistSelf(); err != nil {
		return nil, err
	}
	if err := t.persistSelf(); err != nil {
		return nil, err
	}
	t.deps.Map.StartLoadingChildIfNotLoading(ids.ReservedDotEdenInodeId, func() (Node, error) { return eden, nil })
	return eden, nil
}

// Mkdir creates an empty, materialized subdirectory (spec §4.6 mkdir).
func (t *TreeInode) Mkdir(ctx context.Context, name string, mode overlay.EntryMode) (child *TreeInode, err error) {
	methodName, startTime := logging.LogMethodEntry("TreeInode.Mkdir", t.id, name)
	defer func() { logging.LogMethodExit(methodName, time.Since(startTime), err) }()

	id, err := t.insertChild(name, mode|overlay.ModeDirectory)
	if err != nil {
		return nil, err
	}
	child = newChildTreeInode(id, t, name, mode|overlay.ModeDirectory, nil, t.deps)
	child.contents = overlay.NewDirContents(t.deps.CaseSensitive)
	if err := child.persistSelf(); err != nil {
		return nil, err
	}
	t.deps.Map.StartLoadingChildIfNotLoading(id, func() (Node, error) { return child, nil })
	t.deps.Journal.RecordCreated(t.id, name, id)
	return child, nil
}

// Create creates an empty, materialized regular file (spec §4.6
// create).
func (t *TreeInode) Create(ctx context.Context, name string, mode overlay.EntryMode) (child *FileInode, err error) {
	methodName, startTime := logging.LogMethodEntry("TreeInode.Create", t.id, name)
	defer func() { logging.LogMethodExit(methodName, time.Since(startTime), err) }()

	id, err := t.insertChild(name, mode)
	if err != nil {
		return nil, err
	}
	child = NewMaterializedFileInode(id, t, name, mode, t.deps)
	if err := t.deps.Content.Create(id, nil); err != nil {
		return nil, err
	}
	t.deps.Map.StartLoadingChildIfNotLoading(id, func() (Node, error) { return child, nil })
	t.deps.Journal.RecordCreated(t.id, name, id)
	return child, nil
}

// Mknod creates a non-regular special file record (device/fifo/socket).
// The overlay only tracks the mode and an empty content record; it does
// not emulate device semantics (spec §1 Non-goals scope this subsystem
// to in-tree-representable content).
func (t *TreeInode) Mknod(ctx context.Context, name string, mode overlay.EntryMode) (*FileInode, error) {
	return t.Create(ctx, name, mode)
}

// Symlink creates a materialized symlink whose target is stored as the
// file's content (spec §4.6 symlink).
func (t *TreeInode) Symlink(ctx context.Context, name, target string) (*FileInode, error) {
	id, err := t.insertChild(name, overlay.ModeSymlink)
	if err != nil {
		return nil, err
	}
	child := NewMaterializedFileInode(id, t, name, overlay.ModeSymlink, t.deps)
	child.symlinkPath = target
	if err := t.deps.Content.Create(id, []byte(target)); err != nil {
		return nil, err
	}
	t.deps.Map.StartLoadingChildIfNotLoading(id, func() (Node, error) { return child, nil })
	t.deps.Journal.RecordCreated(t.id, name, id)
	return child, nil
}

// Unlink removes a non-directory child (spec §4.6 unlink).
func (t *TreeInode) Unlink(ctx context.Context, name string) (err error) {
	methodName, startTime := logging.LogMethodEntry("TreeInode.Unlink", t.id, name)
	defer func() { logging.LogMethodExit(methodName, time.Since(startTime), err) }()

	if t.isReserved() {
		return vferrors.PermissionDenied(name)
	}
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}
	t.mu.Lock()
	entry, ok := t.contents.Get(name)
	if !ok {
		t.mu.Unlock()
		return vferrors.NotFound(name)
	}
	if entry.Mode.IsDir() {
		t.mu.Unlock()
		return vferrors.IsADirectory(name)
	}
	t.contents.Remove(name)
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()

	if err := t.removeChildPersist(name, entry); err != nil {
		return err
	}
	if t.deps.Map.Unload(entry.InodeID) {
		if err := t.deps.Content.Remove(entry.InodeID); err != nil {
			logging.LogError(err, "failed to remove unlinked file's content record", logging.FieldID, entry.InodeID.String())
		}
	}
	t.deps.Journal.RecordRemoved(t.id, name, entry.InodeID)
	return nil
}

// Rmdir removes an empty, non-reserved subdirectory (spec §4.6 rmdir).
func (t *TreeInode) Rmdir(ctx context.Context, name string) (err error) {
	methodName, startTime := logging.LogMethodEntry("TreeInode.Rmdir", t.id, name)
	defer func() { logging.LogMethodExit(methodName, time.Since(startTime), err) }()

	if t.isReserved() {
		return vferrors.PermissionDenied(name)
	}
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}
	t.mu.RLock()
	entry, ok := t.contents.Get(name)
	t.mu.RUnlock()
	if !ok {
		return vferrors.NotFound(name)
	}
	if !entry.Mode.IsDir() {
		return vferrors.NotADirectory(name)
	}
	if entry.InodeID == ids.ReservedDotEdenInodeId {
		return vferrors.PermissionDenied(name)
	}

	child, err := t.GetOrLoadChildTree(ctx, name)
	if err != nil {
		return err
	}
	if err := child.ensureLoaded(ctx); err != nil {
		return err
	}
	child.mu.RLock()
	empty := child.contents.Len() == 0
	child.mu.RUnlock()
	if !empty {
		return vferrors.DirectoryNotEmpty(name)
	}

	t.mu.Lock()
	t.contents.Remove(name)
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()

	if err := t.removeChildPersist(name, entry); err != nil {
		return err
	}
	_ = t.deps.Catalog.RemoveDir(entry.InodeID)
	t.deps.Map.Unload(entry.InodeID)
	t.deps.Journal.RecordRemoved(t.id, name, entry.InodeID)
	return nil
}

// RemoveRecursively deletes name and, if it is a directory, everything
// beneath it. Used by checkout's forced-apply path and by explicit
// recursive-remove requests (spec §9 supplemented feature).
func (t *TreeInode) RemoveRecursively(ctx context.Context, name string) error {
	if t.isReserved() {
		return vferrors.PermissionDenied(name)
	}
	t.mu.RLock()
	entry, ok := t.contents.Get(name)
	t.mu.RUnlock()
	if !ok {
		return vferrors.NotFound(name)
	}
	if entry.Mode.IsDir() {
		child, err := t.GetOrLoadChildTree(ctx, name)
		if err != nil {
			return err
		}
		children, err := child.GetChildren(ctx)
		if err != nil {
			return err
		}
		for _, c := range children {
			if err := child.RemoveRecursively(ctx, c.Name); err != nil {
				return err
			}
		}
		return t.Rmdir(ctx, name)
	}
	return t.Unlink(ctx, name)
}

// removeChildPersist mutates the persisted parent record, preferring a
// semantic single-child op when the catalog backend supports one (spec
// §4.1).
func (t *TreeInode) removeChildPersist(name string, entry overlay.DirEntry) error {
	if sc, ok := t.deps.Catalog.(overlay.SemanticChildCatalog); ok {
		if err := sc.RemoveChild(t.id, name); err == nil {
			return nil
		}
	}
	return t.persistSelf()
}

func (t *TreeInode) addChildPersist(name string, entry overlay.DirEntry) error {
	if sc, ok := t.deps.Catalog.(overlay.SemanticChildCatalog); ok {
		if err := sc.AddChild(t.id, name, entry); err == nil {
			return nil
		}
	}
	return t.persistSelf()
}

func (t *TreeInode) Setattr(ctx context.Context, want Attrs, setMode, setUid, setGid bool) error {
	if t.isReserved() {
		return vferrors.PermissionDenied(t.Name())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if setMode {
		t.mode = want.Mode
	}
	if setUid {
		t.uid = want.Uid
	}
	if setGid {
		t.gid = want.Gid
	}
	t.ctime = time.Now()
	return nil
}

// Getxattr/Listxattr are not modeled beyond the reserved .eden
// introspection surface (spec §1 Non-goals): ordinary entries carry no
// extended attributes.
func (t *TreeInode) Getxattr(name string) ([]byte, error) {
	return nil, vferrors.NotFound(name)
}

func (t *TreeInode) Listxattr() ([]string, error) {
	return nil, nil
}

// InvalidateChildrenNotMaterialized drops loaded-but-unmaterialized,
// unreferenced children from the InodeMap, letting them be reloaded from
// the catalog/backing-store on next access (spec §4.6, a memory-pressure
// relief valve; the FileInode/TreeInode objects aren't needed once their
// state is fully recoverable from durable storage).
func (t *TreeInode) InvalidateChildrenNotMaterialized(ctx context.Context) {
	if err := t.ensureLoaded(ctx); err != nil {
		return
	}
	t.mu.RLock()
	names := t.contents.SortedNames()
	entries := make([]overlay.DirEntry, 0, len(names))
	for _, n := range names {
		e, _ := t.contents.Get(n)
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	for _, e := range entries {
		n, ok := t.deps.Map.Get(e.InodeID)
		if !ok {
			continue
		}
		if ti, ok := n.(*TreeInode); ok && !ti.IsMaterialized() {
			t.deps.Map.Unload(e.InodeID)
		} else if fi, ok := n.(*FileInode); ok && !fi.IsMaterialized() {
			t.deps.Map.Unload(e.InodeID)
		}
	}
}

// ApplyCheckoutEntry writes (or overwrites) the DirEntry for name to
// point at the given source-control object, without loading or
// materializing the child — the "apply silently" / "apply" dispositions
// of CheckoutEngine's conflict table (spec §4.7 steps 3-4).
func (t *TreeInode) ApplyCheckoutEntry(ctx context.Context, name string, mode overlay.EntryMode, objectID ids.ObjectId) error {
	if t.isReserved() {
		return vferrors.PermissionDenied(name)
	}
	if err := t.ensureLoaded(ctx); err != nil {
		return err
	}
	t.mu.RLock()
	existing, ok := t.contents.Get(name)
	t.mu.RUnlock()
	id := existing.InodeID
	if !ok || !id.IsSet() {
		newID, err := t.deps.Allocator.Next()
		if err != nil {
			return err
		}
		id = newID
	}
	if _, ok := t.deps.Map.Get(id); ok {
		t.deps.Map.Unload(id)
	}
	return t.setEntry(name, overlay.DirEntry{Mode: mode, InodeID: id, ObjectID: objectID})
}

// RemoveCheckoutEntry removes name, recursively if it names a
// directory — CheckoutEngine's "removal" disposition (spec §4.7).
func (t *TreeInode) RemoveCheckoutEntry(ctx context.Context, name string, wasDir bool) error {
	if wasDir {
		return t.RemoveRecursively(ctx, name)
	}
	return t.Unlink(ctx, name)
}

// TryDematerialize implements CheckoutEngine's step 8: if every child
// entry is non-materialized and matches toTree entry-for-entry, this
// directory itself becomes a non-materialized mirror of toTreeID.
// Returns whether the state changed.
func (t *TreeInode) TryDematerialize(ctx context.Context, toTreeID ids.ObjectId, toTree []ChildDescriptor) (bool, error) {
	if err := t.ensureLoaded(ctx); err != nil {
		return false, err
	}
	t.mu.Lock()
	if !t.contents.AllNonMaterialized() {
		t.mu.Unlock()
		return false, nil
	}
	if t.contents.Len() != len(toTree) {
		t.mu.Unlock()
		return false, nil
	}
	want := make(map[string]ChildDescriptor, len(toTree))
	for _, d := range toTree {
		want[d.Name] = d
	}
	for _, name := range t.contents.SortedNames() {
		e, _ := t.contents.Get(name)
		w, ok := want[name]
		if !ok || w.Mode != e.Mode || !w.ObjectID.Equal(e.ObjectID) {
			t.mu.Unlock()
			return false, nil
		}
	}
	changed := t.treeObjectID.IsZero() || !t.treeObjectID.Equal(toTreeID)
	t.treeObjectID = toTreeID
	t.mu.Unlock()

	if err := t.persistSelf(); err != nil {
		return false, err
	}
	return changed, nil
}

func (t *TreeInode) touchAtime() {
	t.mu.Lock()
	t.atime = time.Now()
	t.mu.Unlock()
}

// setEntry updates (or inserts) the DirEntry for name and persists the
// change, used by ApplyCheckoutEntry.
func (t *TreeInode) setEntry(name string, entry overlay.DirEntry) error {
	t.mu.Lock()
	t.contents.Set(name, entry)
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()
	return t.addChildPersist(name, entry)
}

func (t *TreeInode) removeEntry(name string) (overlay.DirEntry, error) {
	t.mu.Lock()
	entry, ok := t.contents.Get(name)
	if !ok {
		t.mu.Unlock()
		return overlay.DirEntry{}, vferrors.NotFound(name)
	}
	t.contents.Remove(name)
	t.mtime = time.Now()
	t.ctime = t.mtime
	t.mu.Unlock()
	return entry, t.removeChildPersist(name, entry)
}
