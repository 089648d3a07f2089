package overlay

import (
	"sync"

	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
)

// bufferedOp is a single queued mutation, keyed by the inode it targets so
// a later write to the same inode supersedes an earlier, not-yet-applied
// one instead of both being applied in order (spec §4.1 variant 4:
// "coalesces writes to the same inode").
type bufferedOp struct {
	id     ids.InodeId
	remove bool // true: RemoveDir(id); false: SaveDir(id, dir)
	dir    OverlayDir
	size   int
}

// BufferedCatalog wraps another InodeCatalog and applies writes
// asynchronously on a single worker goroutine, grounded on
// original_source's sqlitecatalog/BufferedSqliteInodeCatalog.cpp: a
// bounded byte-size work queue with backpressure on the producer side,
// coalescing of repeated writes to the same inode, and a flush operation
// that blocks until the queue drains. Reads are served from the pending
// queue first (read-your-writes) and fall through to the underlying
// catalog otherwise.
type BufferedCatalog struct {
	underlying InodeCatalog

	mu        sync.Mutex
	cond      *sync.Cond
	pending   map[ids.InodeId]*bufferedOp
	queue     []ids.InodeId // FIFO of distinct ids with pending ops, for stable apply order
	totalSize int
	capacity  int
	stopped   bool
	done      chan struct{}
}

// NewBufferedCatalog wraps underlying with an async write buffer bounded
// to capacityBytes (spec §4.1 variant 4), an approximate byte budget
// chosen by the caller.
func NewBufferedCatalog(underlying InodeCatalog, capacityBytes int) *BufferedCatalog {
	c := &BufferedCatalog{
		underlying: underlying,
		pending:    make(map[ids.InodeId]*bufferedOp),
		capacity:   capacityBytes,
		done:       make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.worker()
	return c
}

func estimateOpSize(dir OverlayDir) int {
	if dir.Contents == nil {
		return 64
	}
	return 64 + dir.Contents.Len()*64
}

func (c *BufferedCatalog) enqueue(op *bufferedOp) {
	c.mu.Lock()
	for c.totalSize >= c.capacity && !c.stopped {
		c.cond.Wait()
	}
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if existing, ok := c.pending[op.id]; ok {
		c.totalSize += op.size - existing.size
		c.pending[op.id] = op
	} else {
		c.totalSize += op.size
		c.pending[op.id] = op
		c.queue = append(c.queue, op.id)
	}
	c.mu.Unlock()
	c.cond.Broadcast()
}

// worker drains the queue one inode at a time, applying each coalesced
// operation to the underlying catalog. Mirrors processOnWorkerThread's
// swap-then-process loop, minus the C++ version's indirect-memory
// accounting (Go's GC makes that bookkeeping unnecessary here).
func (c *BufferedCatalog) worker() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.stopped {
			c.cond.Wait()
		}
		if len(c.queue) == 0 && c.stopped {
			c.mu.Unlock()
			return
		}
		// The id stays at the head of the queue until its op has been
		// applied, so Flush does not return while a write is in flight.
		id := c.queue[0]
		op := c.pending[id]
		delete(c.pending, id)
		c.totalSize -= op.size
		c.mu.Unlock()
		c.cond.Broadcast()

		var err error
		if op.remove {
			err = c.underlying.RemoveDir(op.id)
		} else {
			err = c.underlying.SaveDir(op.id, op.dir)
		}
		if err != nil {
			logging.Warn().Err(err).Str(logging.FieldID, op.id.String()).Msg("buffered catalog write failed")
		}

		c.mu.Lock()
		c.queue = c.queue[1:]
		c.mu.Unlock()
		c.cond.Broadcast()
	}
}

// Flush blocks until every currently queued operation has been applied.
func (c *BufferedCatalog) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.queue) != 0 {
		c.cond.Wait()
	}
}

func (c *BufferedCatalog) Init(createIfMissing bool) (*ids.InodeId, error) {
	return c.underlying.Init(createIfMissing)
}

// Close flushes all queued writes before delegating to the underlying
// catalog's Close, matching the C++ close()'s "stop the thread here to
// flush all queued writes so they complete before the overlay is closed."
func (c *BufferedCatalog) Close(nextInodeID ids.InodeId) error {
	c.Flush()
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.cond.Broadcast()
	<-c.done
	return c.underlying.Close(nextInodeID)
}

func (c *BufferedCatalog) LoadDir(id ids.InodeId) (*OverlayDir, error) {
	c.mu.Lock()
	if op, ok := c.pending[id]; ok {
		defer c.mu.Unlock()
		if op.remove {
			return nil, nil
		}
		dir := op.dir
		return &dir, nil
	}
	c.mu.Unlock()
	return c.underlying.LoadDir(id)
}

func (c *BufferedCatalog) LoadAndRemoveDir(id ids.InodeId) (*OverlayDir, error) {
	dir, err := c.LoadDir(id)
	if err != nil || dir == nil {
		return dir, err
	}
	c.enqueue(&bufferedOp{id: id, remove: true, size: estimateOpSize(OverlayDir{})})
	return dir, nil
}

func (c *BufferedCatalog) SaveDir(id ids.InodeId, dir OverlayDir) error {
	c.enqueue(&bufferedOp{id: id, dir: dir, size: estimateOpSize(dir)})
	return nil
}

func (c *BufferedCatalog) RemoveDir(id ids.InodeId) error {
	c.enqueue(&bufferedOp{id: id, remove: true, size: estimateOpSize(OverlayDir{})})
	return nil
}

func (c *BufferedCatalog) HasDir(id ids.InodeId) (bool, error) {
	c.mu.Lock()
	if op, ok := c.pending[id]; ok {
		defer c.mu.Unlock()
		return !op.remove, nil
	}
	c.mu.Unlock()
	return c.underlying.HasDir(id)
}

func (c *BufferedCatalog) NextInodeNumber() (ids.InodeId, error) {
	return c.underlying.NextInodeNumber()
}

func (c *BufferedCatalog) AllParentInodeNumbers() ([]ids.InodeId, error) {
	c.Flush()
	return c.underlying.AllParentInodeNumbers()
}
