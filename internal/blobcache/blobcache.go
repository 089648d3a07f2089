// Package blobcache implements BlobCache (spec §4.3): a bounded-by-bytes
// cache mapping ObjectId to shared blob contents, with interest handles
// and a short LRU retention window for recently accessed large blobs.
//
// Bookkeeping is grounded on Auriora-OneMount's
// internal/fs/content_cache.go LoopbackCache (entriesM/entries/
// totalSize/maxCacheSize, sort-oldest-first eviction); no example repo
// carries a real (non-test-only) LRU+interest-handle cache library to
// wire in instead — see DESIGN.md.
package blobcache

import (
	"sort"
	"sync"
	"time"

	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
)

// Interest is a scoped retention hint attached to a Get (spec §4.3).
type Interest int

const (
	// LikelyNeededAgain is normal retention: eligible for the usual
	// byte-budget/LRU-window eviction like any other entry.
	LikelyNeededAgain Interest = iota
	// WantHandle is retained at least until the returned Handle is
	// released, regardless of byte budget.
	WantHandle
	// UnlikelyNeededAgain is admitted but eligible for eviction
	// immediately after the requester releases its Handle.
	UnlikelyNeededAgain
)

// Handle is a scoped interest token returned by Get. Release must be
// called exactly once when the caller no longer needs the blob pinned.
type Handle struct {
	cache *BlobCache
	id    string
}

func (h Handle) Release() {
	if h.cache == nil {
		return
	}
	h.cache.release(h.id)
}

type entry struct {
	id           string
	blob         []byte
	lastAccessed time.Time
	pins         int  // outstanding WantHandle/UnlikelyNeededAgain handles
	evictOnPins0 bool // true once an UnlikelyNeededAgain handle was issued
}

// BlobCache is the process-global cache the spec's design notes call
// out alongside the inode-id allocator (spec §9): one instance serves
// every mount in the process.
type BlobCache struct {
	mu           sync.Mutex
	entries      map[string]*entry
	order        []string // insertion/access order, oldest first
	totalSize    int64
	maxSize      int64
	lruWindow    time.Duration
	recentWindow map[string]time.Time // entries within the LRU retention window, exempt from budget eviction
}

// NewBlobCache creates a cache bounded to maxSizeBytes, with entries
// accessed within lruWindow exempted from byte-budget eviction (spec
// §4.3: "a short LRU window for 'recently accessed' large blobs
// overriding the byte budget for that window length").
func NewBlobCache(maxSizeBytes int64, lruWindow time.Duration) *BlobCache {
	return &BlobCache{
		entries:      make(map[string]*entry),
		maxSize:      maxSizeBytes,
		lruWindow:    lruWindow,
		recentWindow: make(map[string]time.Time),
	}
}

// Get consults the cache for id. A miss (ok=false) is the caller's
// responsibility to fetch via the backing store and Insert (spec §4.3).
func (c *BlobCache) Get(id ids.ObjectId, interest Interest) (blob []byte, ok bool, h Handle) {
	key := id.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, found := c.entries[key]
	if !found {
		return nil, false, Handle{}
	}

	e.lastAccessed = time.Now()
	c.recentWindow[key] = e.lastAccessed
	c.touch(key)

	switch interest {
	case WantHandle:
		e.pins++
		return e.blob, true, Handle{cache: c, id: key}
	case UnlikelyNeededAgain:
		e.pins++
		e.evictOnPins0 = true
		return e.blob, true, Handle{cache: c, id: key}
	}
	return e.blob, true, Handle{}
}

func (c *BlobCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return
	}
	if e.pins > 0 {
		e.pins--
	}
	if e.pins == 0 && e.evictOnPins0 {
		c.remove(key)
	}
}

// Insert admits blob under id, evicting older entries if the byte
// budget is exceeded and the LRU window has lapsed for them.
func (c *BlobCache) Insert(id ids.ObjectId, blob []byte) {
	key := id.String()
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.totalSize -= int64(len(existing.blob))
		existing.blob = blob
		existing.lastAccessed = time.Now()
		c.totalSize += int64(len(blob))
		c.touch(key)
		c.recentWindow[key] = existing.lastAccessed
		c.evictIfNeeded()
		return
	}

	e := &entry{id: key, blob: blob, lastAccessed: time.Now()}
	c.entries[key] = e
	c.order = append(c.order, key)
	c.totalSize += int64(len(blob))
	c.recentWindow[key] = e.lastAccessed
	c.evictIfNeeded()
}

func (c *BlobCache) touch(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append(c.order, key)
}

// evictIfNeeded drops oldest-first entries until under budget, skipping
// pinned entries and entries still inside the LRU retention window.
func (c *BlobCache) evictIfNeeded() {
	if c.maxSize <= 0 {
		return
	}
	now := time.Now()
	for c.totalSize > c.maxSize {
		victim := c.pickVictim(now)
		if victim == "" {
			logging.Debug().Int64(logging.FieldSize, c.totalSize).Int64("maxSize", c.maxSize).
				Msg("blob cache over budget but every entry is pinned or within its LRU window")
			return
		}
		c.remove(victim)
	}
}

func (c *BlobCache) pickVictim(now time.Time) string {
	candidates := append([]string(nil), c.order...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return c.entries[candidates[i]].lastAccessed.Before(c.entries[candidates[j]].lastAccessed)
	})
	for _, key := range candidates {
		e, ok := c.entries[key]
		if !ok || e.pins > 0 {
			continue
		}
		if seen, ok := c.recentWindow[key]; ok && now.Sub(seen) < c.lruWindow {
			continue
		}
		return key
	}
	return ""
}

func (c *BlobCache) remove(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	c.totalSize -= int64(len(e.blob))
	delete(c.entries, key)
	delete(c.recentWindow, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// Len reports the number of entries currently cached, for tests and
// the mount's operation-counter surface (spec §9 supplemented stats).
func (c *BlobCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TotalSize reports the current aggregate byte size of cached blobs.
func (c *BlobCache) TotalSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSize
}
