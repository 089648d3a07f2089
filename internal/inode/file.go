package inode

import (
	"context"
	"crypto/sha1"
	"sync"
	"time"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/blobcache"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
	"github.com/auriora/vfsoverlay/internal/overlay"
)

// FileState is FileInode's three-state materialization machine (spec
// §4.5): NotLoading (backed by an unmaterialized object id, blob not
// currently being fetched), Loading (a fetch is in flight, waiters
// queued), Materialized (content lives in the FileContentStore).
type FileState int

const (
	NotLoading FileState = iota
	Loading
	Materialized
)

type loadResult struct {
	blob         []byte
	materialized bool
	err          error
}

// Attrs is the attribute set stat/setattr operate over (spec §4.5).
type Attrs struct {
	Size  int64
	Mode  overlay.EntryMode
	Uid   uint32
	Gid   uint32
	Mtime time.Time
	Atime time.Time
	Ctime time.Time
}

// FileInode is a regular file or symlink. Exactly one of its state
// transitions is in flight at a time, guarded by mu (spec §4.5's state
// machine table).
//
// Grounded on Auriora-OneMount's Inode (internal/fs/inode.go) plus its
// content_cache.go open/flush dance, generalized from "download on first
// open" to the spec's explicit NotLoading/Loading/Materialized machine.
type FileInode struct {
	deps *Deps

	mu       sync.Mutex
	id       ids.InodeId
	state    FileState
	objectID ids.ObjectId // set iff NotLoading or Loading
	size     *int64       // cached size, known even while NotLoading
	waiters  []chan loadResult

	mode        overlay.EntryMode
	uid, gid    uint32
	mtime       time.Time
	atime       time.Time
	ctime       time.Time
	symlinkPath string // non-empty iff mode.IsSymlink() and materialized content holds the target

	parent *TreeInode
	name   string
}

// NewFileInode constructs a FileInode backed by an unmaterialized
// source-control object. Use NewMaterializedFileInode for one created
// locally (e.g. by Create).
func NewFileInode(id ids.InodeId, parent *TreeInode, name string, mode overlay.EntryMode, objectID ids.ObjectId, size int64, deps *Deps) *FileInode {
	now := time.Now()
	return &FileInode{
		deps: deps, id: id, parent: parent, name: name, mode: mode,
		state: NotLoading, objectID: objectID, size: &size,
		mtime: now, atime: now, ctime: now,
	}
}

func NewMaterializedFileInode(id ids.InodeId, parent *TreeInode, name string, mode overlay.EntryMode, deps *Deps) *FileInode {
	now := time.Now()
	return &FileInode{
		deps: deps, id: id, parent: parent, name: name, mode: mode,
		state: Materialized, mtime: now, atime: now, ctime: now,
	}
}

func (fi *FileInode) ID() ids.InodeId { return fi.id }

func (fi *FileInode) IsMaterialized() bool {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.state == Materialized
}

func (fi *FileInode) ObjectID() ids.ObjectId {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	return fi.objectID
}

// Stat returns cached attributes without forcing materialization: size
// is served from the cached hint when not materialized (spec §4.5).
func (fi *FileInode) Stat() Attrs {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	a := Attrs{Mode: fi.mode, Uid: fi.uid, Gid: fi.gid, Mtime: fi.mtime, Atime: fi.atime, Ctime: fi.ctime}
	if fi.state == Materialized {
		if sz, err := fi.deps.Content.Size(fi.id); err == nil {
			a.Size = sz
		}
	} else if fi.size != nil {
		a.Size = *fi.size
	}
	return a
}

// withBlob implements the per-operation access pattern spec §4.5
// describes: NotLoading checks BlobCache under the lock; on a hit it
// invokes cb directly; on a miss it transitions to Loading, releases
// the lock, and issues the fetch; Loading appends a waiter; Materialized
// invokes cb with no blob (content lives in the FileContentStore
// instead).
func (fi *FileInode) withBlob(ctx context.Context, cb func(blob []byte, materialized bool) error) error {
	fi.mu.Lock()
	switch fi.state {
	case Materialized:
		fi.mu.Unlock()
		return cb(nil, true)

	case Loading:
		waiter := make(chan loadResult, 1)
		fi.waiters = append(fi.waiters, waiter)
		fi.mu.Unlock()
		return fi.awaitAndInvoke(waiter, cb)

	default: // NotLoading
		oid := fi.objectID
		fi.mu.Unlock()

		blob, ok, h := fi.deps.BlobCache.Get(oid, blobcache.LikelyNeededAgain)
		if ok {
			defer h.Release()
			return cb(blob, false)
		}

		fi.mu.Lock()
		if fi.state != NotLoading {
			// Raced with another caller or a concurrent Truncate;
			// re-enter the state machine from scratch.
			fi.mu.Unlock()
			return fi.withBlob(ctx, cb)
		}
		fi.state = Loading
		waiter := make(chan loadResult, 1)
		fi.waiters = append(fi.waiters, waiter)
		fi.mu.Unlock()

		go fi.fetchAndResolve(ctx, oid)
		return fi.awaitAndInvoke(waiter, cb)
	}
}

func (fi *FileInode) awaitAndInvoke(waiter chan loadResult, cb func([]byte, bool) error) error {
	res := <-waiter
	if res.err != nil {
		return res.err
	}
	return cb(res.blob, res.materialized)
}

// fetchAndResolve issues the backing-store fetch outside any lock and
// resolves every waiter queued since the fetch began. If a concurrent
// Truncate materialized the inode while the fetch was in flight, waiters
// are resolved with materialized=true instead of the fetched blob (spec
// §4.5: "truncate-during-Loading materializes immediately and resolves
// waiters with a null blob").
func (fi *FileInode) fetchAndResolve(ctx context.Context, oid ids.ObjectId) {
	blob, err := fi.deps.Store.GetBlob(ctx, oid)

	fi.mu.Lock()
	waiters := fi.waiters
	fi.waiters = nil
	if err != nil {
		if fi.state == Loading {
			fi.state = NotLoading
		}
		fi.mu.Unlock()
		for _, w := range waiters {
			w <- loadResult{err: err}
		}
		return
	}
	if fi.state != Loading {
		materialized := fi.state == Materialized
		fi.mu.Unlock()
		for _, w := range waiters {
			w <- loadResult{materialized: materialized}
		}
		return
	}
	fi.state = NotLoading
	fi.mu.Unlock()

	fi.deps.BlobCache.Insert(oid, blob.Data)
	for _, w := range waiters {
		w <- loadResult{blob: blob.Data}
	}
}

// Read serves up to len bytes at offset, from the blob cache if
// unmaterialized or from the content store if materialized.
func (fi *FileInode) Read(ctx context.Context, offset int64, length int) (out []byte, eof bool, err error) {
	lc := logging.NewLogContext("read").WithComponent("inode").With(logging.FieldOffset, offset)
	methodName, startTime, logger, lc := logging.LogMethodEntryWithContext("FileInode.Read", lc)
	defer func() { logging.LogMethodExitWithContext(methodName, startTime, logger, lc, err) }()

	err = fi.withBlob(ctx, func(blob []byte, materialized bool) error {
		if materialized {
			data, err := fi.deps.Content.Pread(fi.id, offset, length)
			if err != nil {
				return err
			}
			out = data
			sz, err := fi.deps.Content.Size(fi.id)
			if err == nil {
				eof = offset+int64(len(data)) >= sz
			}
			return nil
		}
		if offset >= int64(len(blob)) {
			eof = true
			return nil
		}
		end := offset + int64(length)
		if end > int64(len(blob)) {
			end = int64(len(blob))
		}
		out = append([]byte(nil), blob[offset:end]...)
		eof = end >= int64(len(blob))
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	fi.touchAtime()
	return out, eof, nil
}

// ensureMaterialized transitions NotLoading/Loading to Materialized,
// seeding the content store with the current blob (fetching it if
// necessary) before the transition is observable. Write and Setattr
// both require materialization first (spec §4.5).
func (fi *FileInode) ensureMaterialized(ctx context.Context) error {
	fi.mu.Lock()
	if fi.state == Materialized {
		fi.mu.Unlock()
		return nil
	}
	fi.mu.Unlock()

	var seed []byte
	if err := fi.withBlob(ctx, func(blob []byte, materialized bool) error {
		if !materialized {
			seed = blob
		}
		return nil
	}); err != nil {
		return err
	}

	fi.mu.Lock()
	if fi.state == Materialized {
		fi.mu.Unlock()
		return nil
	}
	fi.state = Materialized
	fi.objectID = nil
	fi.mu.Unlock()

	if err := fi.deps.Content.Create(fi.id, seed); err != nil {
		return err
	}
	fi.notifyMaterialized()
	return nil
}

// Write materializes the inode (if needed) and writes through to the
// content store.
func (fi *FileInode) Write(ctx context.Context, offset int64, data []byte) (n int, err error) {
	lc := logging.NewLogContext("write").WithComponent("inode").
		With(logging.FieldOffset, offset).With(logging.FieldSize, len(data))
	methodName, startTime, logger, lc := logging.LogMethodEntryWithContext("FileInode.Write", lc)
	defer func() { logging.LogMethodExitWithContext(methodName, startTime, logger, lc, err) }()

	if err := fi.ensureMaterialized(ctx); err != nil {
		return 0, err
	}
	n, err = fi.deps.Content.Pwrite(fi.id, data, offset)
	if err != nil {
		return n, err
	}
	fi.touchMtime()
	return n, nil
}

// Truncate materializes without loading the underlying blob: any
// in-flight load is resolved with materialized=true rather than waiting
// for the fetch to complete (spec §4.5).
func (fi *FileInode) Truncate(ctx context.Context, newSize int64) error {
	fi.mu.Lock()
	wasLoading := fi.state == Loading
	waiters := fi.waiters
	fi.waiters = nil
	alreadyMaterialized := fi.state == Materialized
	fi.state = Materialized
	fi.objectID = nil
	fi.mu.Unlock()

	if !alreadyMaterialized {
		if err := fi.deps.Content.Create(fi.id, nil); err != nil {
			return err
		}
	}
	if err := fi.deps.Content.Truncate(fi.id, newSize); err != nil {
		return err
	}

	if wasLoading {
		for _, w := range waiters {
			w <- loadResult{materialized: true}
		}
	}
	if !alreadyMaterialized {
		fi.notifyMaterialized()
	}
	fi.touchMtime()
	return nil
}

func (fi *FileInode) Setattr(ctx context.Context, want Attrs, setSize, setMode, setUid, setGid bool) error {
	if setSize {
		if err := fi.Truncate(ctx, want.Size); err != nil {
			return err
		}
	}
	fi.mu.Lock()
	if setMode {
		fi.mode = want.Mode
	}
	if setUid {
		fi.uid = want.Uid
	}
	if setGid {
		fi.gid = want.Gid
	}
	fi.ctime = time.Now()
	fi.mu.Unlock()
	return nil
}

// Readlink returns the symlink target. Symlinks are always materialized
// at creation (spec §4.6 symlink).
func (fi *FileInode) Readlink() (string, error) {
	fi.mu.Lock()
	defer fi.mu.Unlock()
	if !fi.mode.IsSymlink() {
		return "", vferrors.InvalidArgument(fi.name, "not a symlink")
	}
	return fi.symlinkPath, nil
}

// Sha1 returns the content digest, computed locally when materialized
// or fetched from the backing store's own digest when not.
func (fi *FileInode) Sha1(ctx context.Context) ([20]byte, error) {
	fi.mu.Lock()
	state := fi.state
	oid := fi.objectID
	fi.mu.Unlock()

	if state != Materialized {
		sum, err := fi.deps.Store.GetBlobSHA1(ctx, oid)
		return [20]byte(sum), err
	}
	var out [20]byte
	sz, _ := fi.deps.Content.Size(fi.id)
	data, err := fi.deps.Content.Pread(fi.id, 0, int(sz))
	if err != nil {
		return out, err
	}
	return sha1.Sum(data), nil
}

// IsSameAs reports whether this file's current content matches the
// given source-control object, used by CheckoutEngine's conflict
// classification (spec §4.7) to distinguish "present, equals to" from
// "present, differs".
func (fi *FileInode) IsSameAs(ctx context.Context, objectID ids.ObjectId) (bool, error) {
	fi.mu.Lock()
	state := fi.state
	oid := fi.objectID
	fi.mu.Unlock()

	if state != Materialized && oid.Equal(objectID) {
		return true, nil
	}
	if state != Materialized {
		cmp, err := fi.deps.Store.CompareObjectsByID(ctx, oid, objectID)
		if err == nil && cmp != ids.ComparisonUnknown {
			return cmp == ids.ComparisonIdentical, nil
		}
	}
	mySum, err := fi.Sha1(ctx)
	if err != nil {
		return false, err
	}
	theirSum, err := fi.deps.Store.GetBlobSHA1(ctx, objectID)
	if err != nil {
		return false, err
	}
	return mySum == [20]byte(theirSum), nil
}

func (fi *FileInode) touchAtime() {
	fi.mu.Lock()
	fi.atime = time.Now()
	fi.mu.Unlock()
}

func (fi *FileInode) touchMtime() {
	fi.mu.Lock()
	fi.mtime = time.Now()
	fi.ctime = fi.mtime
	fi.mu.Unlock()
}

// notifyMaterialized propagates materialization up the tree: spec §8
// invariant requires every ancestor of a materialized node to itself be
// materialized.
func (fi *FileInode) notifyMaterialized() {
	if fi.parent != nil {
		fi.parent.MarkMaterializedRecursive()
	}
}
