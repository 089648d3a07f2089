package inode

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/auriora/vfsoverlay/internal/ids"
)

// Node is the common surface InodeMap manages: either a *FileInode or a
// *TreeInode.
type Node interface {
	ID() ids.InodeId
}

// LoadState is the lifecycle state InodeMap tracks per inode id (spec
// §4.4).
type LoadState int

const (
	Unloaded LoadState = iota
	LoadPending
	Loaded
	Remembered
)

// InodeMap is the process... mount-wide table of live inodes, providing
// the "at most one load in flight per id" guarantee (spec §4.4) via
// golang.org/x/sync/singleflight, the same package rclone-rclone uses
// for its own single-flight fan-in (see DESIGN.md).
//
// Grounded on Auriora-OneMount's Filesystem.GetID/InsertID/DeleteID
// (internal/fs/cache.go): a single map guarded by one mutex, entries
// inserted on first load and removed on unload.
type InodeMap struct {
	mu         sync.RWMutex
	nodes      map[ids.InodeId]Node
	refcounts  map[ids.InodeId]int
	remembered map[ids.InodeId]bool
	group      singleflight.Group
}

func NewInodeMap() *InodeMap {
	return &InodeMap{
		nodes:      make(map[ids.InodeId]Node),
		refcounts:  make(map[ids.InodeId]int),
		remembered: make(map[ids.InodeId]bool),
	}
}

// Get returns the live node for id, if loaded.
func (m *InodeMap) Get(id ids.InodeId) (Node, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

// StartLoadingChildIfNotLoading atomically either begins loading a child
// that is not yet known to the map (invoking load and inserting its
// result), or joins an already-in-flight load for the same id (spec
// §4.4: "atomically either begins a new load...or attaches promise to an
// existing load"). The returned bool reports whether this call was the
// one that actually ran load (true) or joined an existing call (false).
func (m *InodeMap) StartLoadingChildIfNotLoading(id ids.InodeId, load func() (Node, error)) (Node, error, bool) {
	if n, ok := m.Get(id); ok {
		return n, nil, false
	}
	ran := false
	v, err, _ := m.group.Do(id.String(), func() (interface{}, error) {
		if n, ok := m.Get(id); ok {
			return n, nil
		}
		ran = true
		n, err := load()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.nodes[id] = n
		m.mu.Unlock()
		return n, nil
	})
	if err != nil {
		return nil, err, ran
	}
	return v.(Node), nil, ran
}

// IncFsRefcount bumps the kernel/FUSE-visible reference count for id,
// used to decide whether unload is safe (spec §4.4).
func (m *InodeMap) IncFsRefcount(id ids.InodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refcounts[id]++
}

// DecFsRefcount drops the reference count, returning the count after
// decrementing.
func (m *InodeMap) DecFsRefcount(id ids.InodeId) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.refcounts[id] > 0 {
		m.refcounts[id]--
	}
	return m.refcounts[id]
}

// Remember marks id as remembered: kept resident even at refcount 0,
// e.g. because it is a mount point, a materialized directory, or an
// open file (spec §4.4).
func (m *InodeMap) Remember(id ids.InodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remembered[id] = true
}

func (m *InodeMap) Forget(id ids.InodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.remembered, id)
}

func (m *InodeMap) IsInodeRemembered(id ids.InodeId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.remembered[id]
}

func (m *InodeMap) IsLoadedOrRemembered(id ids.InodeId) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.remembered[id] {
		return true
	}
	_, ok := m.nodes[id]
	return ok
}

// Unload removes id from the live table, provided it is safe to do so:
// refcount 0 and not remembered. Callers must already hold whatever
// per-node lock the spec requires (parent's contents lock) before
// calling this — Unload itself only touches the map's own lock (spec §4.4
// unload(inode, parent, name, is_invalidated, lock)).
func (m *InodeMap) Unload(id ids.InodeId) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remembered[id] || m.refcounts[id] > 0 {
		return false
	}
	delete(m.nodes, id)
	return true
}
