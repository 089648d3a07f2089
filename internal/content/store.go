// Package content implements FileContentStore (spec §4.2): durable
// random-access byte storage keyed by InodeId, with sharded-file, bbolt
// KV, and ephemeral backends.
package content

import "github.com/auriora/vfsoverlay/internal/ids"

// FileContentStore is durable random-access byte storage keyed by
// InodeId (spec §4.2). create is atomic via temp-file + rename on
// backends that write to a filesystem; pwrite and truncate never
// partial-update on error.
type FileContentStore interface {
	Create(id ids.InodeId, data []byte) error
	Open(id ids.InodeId) error
	Pread(id ids.InodeId, offset int64, length int) ([]byte, error)
	Pwrite(id ids.InodeId, data []byte, offset int64) (int, error)
	Truncate(id ids.InodeId, length int64) error

	// Allocate implements posix_fallocate semantics: zero-fills the
	// extension, is not guaranteed sparse on all backends, but must
	// preserve existing data (spec §4.2).
	Allocate(id ids.InodeId, offset, length int64) error

	Size(id ids.InodeId) (int64, error)
	Remove(id ids.InodeId) error
	Has(id ids.InodeId) (bool, error)
}
