package overlay

import (
	"sync"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

// MemoryCatalog is the in-memory InodeCatalog variant (spec §4.1 variant
// 3): no persistence, used for tests or ephemeral mounts.
type MemoryCatalog struct {
	mu    sync.RWMutex
	dirs  map[ids.InodeId]OverlayDir
	alloc *ids.Allocator
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		dirs:  make(map[ids.InodeId]OverlayDir),
		alloc: ids.NewAllocator(ids.RootInodeId),
	}
}

func (c *MemoryCatalog) Init(createIfMissing bool) (*ids.InodeId, error) {
	next := c.alloc.Peek()
	return &next, nil
}

func (c *MemoryCatalog) Close(nextInodeID ids.InodeId) error {
	return nil
}

func (c *MemoryCatalog) LoadDir(id ids.InodeId) (*OverlayDir, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.dirs[id]
	if !ok {
		return nil, nil
	}
	clone := d
	clone.Contents = d.Contents.Clone()
	return &clone, nil
}

func (c *MemoryCatalog) LoadAndRemoveDir(id ids.InodeId) (*OverlayDir, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.dirs[id]
	if !ok {
		return nil, nil
	}
	delete(c.dirs, id)
	return &d, nil
}

func (c *MemoryCatalog) SaveDir(id ids.InodeId, dir OverlayDir) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := dir
	clone.Contents = dir.Contents.Clone()
	c.dirs[id] = clone
	return nil
}

func (c *MemoryCatalog) RemoveDir(id ids.InodeId) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.dirs[id]; ok && d.Contents.Len() > 0 {
		return vferrors.DirectoryNotEmpty(id.String())
	}
	delete(c.dirs, id)
	return nil
}

func (c *MemoryCatalog) HasDir(id ids.InodeId) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.dirs[id]
	return ok, nil
}

func (c *MemoryCatalog) NextInodeNumber() (ids.InodeId, error) {
	return c.alloc.Next()
}

func (c *MemoryCatalog) AllParentInodeNumbers() ([]ids.InodeId, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ids.InodeId, 0, len(c.dirs))
	for id := range c.dirs {
		out = append(out, id)
	}
	return out, nil
}
