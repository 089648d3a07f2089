// Package overlay implements the directory-shaped half of the overlay:
// OverlayDir/DirEntry/DirContents, their on-disk compact-binary encoding
// (spec §6), and the InodeCatalog contract with its pluggable backends
// (spec §4.1).
package overlay

import (
	"sort"

	"github.com/auriora/vfsoverlay/internal/ids"
)

// EntryMode is a POSIX-ish mode tag. On systems with full POSIX modes
// this carries the real mode bits; the low bits double as the restricted
// dir/regular/executable/symlink tag spec §3 allows for systems without
// POSIX modes.
type EntryMode uint32

const (
	ModeRegular    EntryMode = 0100644
	ModeExecutable EntryMode = 0100755
	ModeDirectory  EntryMode = 0040755
	ModeSymlink    EntryMode = 0120777
)

func (m EntryMode) IsDir() bool     { return m&0170000 == 0040000 }
func (m EntryMode) IsSymlink() bool { return m&0170000 == 0120000 }
func (m EntryMode) IsRegular() bool { return m&0170000 == 0100000 }

// DirEntry is a single named child of a directory (spec §3).
type DirEntry struct {
	Mode     EntryMode
	InodeID  ids.InodeId
	ObjectID ids.ObjectId // present iff non-materialized
}

// IsMaterialized reports whether this entry has been locally modified
// and decoupled from its source-control object.
func (e DirEntry) IsMaterialized() bool {
	return e.ObjectID.IsZero()
}

// DirContents is an ordered map from name to DirEntry. Iteration order
// matches on-disk encoding (lexicographic by name) so that two sorted
// walks — as CheckoutEngine and DiffEngine both require — can be merged
// in a single pass.
type DirContents struct {
	caseSensitive bool
	entries       map[string]DirEntry
	// order caches the sorted key list; invalidated (set nil) on mutation.
	order []string
}

func NewDirContents(caseSensitive bool) *DirContents {
	return &DirContents{caseSensitive: caseSensitive, entries: make(map[string]DirEntry)}
}

func (d *DirContents) normalize(name string) string {
	if d.caseSensitive {
		return name
	}
	return toLowerASCII(name)
}

// toLowerASCII avoids importing strings just for this; kept tiny and
// dependency-free like the rest of this low-level package.
func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func (d *DirContents) Get(name string) (DirEntry, bool) {
	e, ok := d.entries[d.normalize(name)]
	return e, ok
}

// Set inserts or overwrites the entry for name. The key stored is the
// normalized name; case-insensitive mounts therefore store the
// ASCII-lowercased name, and the caller's original casing is not kept.
func (d *DirContents) Set(name string, e DirEntry) {
	key := d.normalize(name)
	if _, existed := d.entries[key]; !existed {
		d.order = nil
	}
	d.entries[key] = e
}

func (d *DirContents) Remove(name string) {
	key := d.normalize(name)
	if _, ok := d.entries[key]; ok {
		delete(d.entries, key)
		d.order = nil
	}
}

func (d *DirContents) Len() int { return len(d.entries) }

// SortedNames returns names in on-disk iteration order (lexicographic).
func (d *DirContents) SortedNames() []string {
	if d.order != nil {
		return d.order
	}
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	d.order = names
	return names
}

// AllNonMaterialized reports whether every entry is non-materialized
// (has an object_id), used by the dematerialization pass (spec §4.7 step
// 8) and invariant 2 (spec §8): "if D is non-materialized then every
// child entry in D has object_id set."
func (d *DirContents) AllNonMaterialized() bool {
	for _, e := range d.entries {
		if e.IsMaterialized() {
			return false
		}
	}
	return true
}

// AnyMaterialized reports whether at least one entry has been locally
// modified and decoupled from its source-control object.
func (d *DirContents) AnyMaterialized() bool {
	for _, e := range d.entries {
		if e.IsMaterialized() {
			return true
		}
	}
	return false
}

// Clone makes a deep-enough copy (DirEntry is a value type) for callers
// that need to snapshot a directory listing under a lock and release it
// before long-running work, matching the "pre-enumerate under lock,
// release, then recurse" idiom spec §4.7/§4.8 require.
func (d *DirContents) Clone() *DirContents {
	out := NewDirContents(d.caseSensitive)
	for k, v := range d.entries {
		out.entries[k] = v
	}
	return out
}

// OverlayDir is the serializable directory record persisted by the
// InodeCatalog: a name -> DirEntry map plus, for a non-materialized
// directory, the tree object id it mirrors (spec §3's TreeInode state,
// persisted form).
type OverlayDir struct {
	Contents     *DirContents
	TreeObjectID ids.ObjectId // empty iff materialized
}

func (d OverlayDir) IsMaterialized() bool {
	return d.TreeObjectID.IsZero()
}
