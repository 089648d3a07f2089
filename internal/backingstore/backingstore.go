// Package backingstore defines the contract the inode subsystem consumes
// from the external content-addressed object store (spec §6: "Interfaces
// consumed from the object store"), plus an in-memory test double.
package backingstore

import (
	"context"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

// Tree is a source-control tree object: an ordered set of named entries,
// each pointing at a child tree or blob by ObjectId.
type Tree struct {
	Entries []TreeEntry
}

type TreeEntry struct {
	Name     string
	Mode     uint32
	ObjectID ids.ObjectId
}

// Blob is a source-control file object.
type Blob struct {
	Data []byte
}

// Sha1 is a 20-byte SHA-1 digest.
type Sha1 [20]byte

// Store is the contract consumed from the backing object store (spec
// §6). The store is assumed content-addressed and immutable: the same
// ObjectId always resolves to the same bytes, so callers may cache
// results indefinitely (see internal/blobcache).
type Store interface {
	GetTree(ctx context.Context, id ids.ObjectId) (Tree, error)
	GetBlob(ctx context.Context, id ids.ObjectId) (Blob, error)
	GetBlobSHA1(ctx context.Context, id ids.ObjectId) (Sha1, error)
	GetBlobSize(ctx context.Context, id ids.ObjectId) (uint64, error)
	CompareObjectsByID(ctx context.Context, a, b ids.ObjectId) (ids.ObjectComparison, error)
}

// MemoryStore is an in-memory test double for Store, letting
// internal/inode, internal/checkout, and internal/diff tests construct
// fixture trees without a real backing-store dependency.
type MemoryStore struct {
	Trees map[string]Tree
	Blobs map[string]Blob
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{Trees: make(map[string]Tree), Blobs: make(map[string]Blob)}
}

func (s *MemoryStore) PutTree(id ids.ObjectId, t Tree) { s.Trees[id.String()] = t }
func (s *MemoryStore) PutBlob(id ids.ObjectId, b Blob) { s.Blobs[id.String()] = b }

func (s *MemoryStore) GetTree(_ context.Context, id ids.ObjectId) (Tree, error) {
	t, ok := s.Trees[id.String()]
	if !ok {
		return Tree{}, vferrors.BackingStoreUnavailable(id.String(), vferrors.NotFound(id.String()))
	}
	return t, nil
}

func (s *MemoryStore) GetBlob(_ context.Context, id ids.ObjectId) (Blob, error) {
	b, ok := s.Blobs[id.String()]
	if !ok {
		return Blob{}, vferrors.BackingStoreUnavailable(id.String(), vferrors.NotFound(id.String()))
	}
	return b, nil
}

func (s *MemoryStore) GetBlobSHA1(ctx context.Context, id ids.ObjectId) (Sha1, error) {
	b, err := s.GetBlob(ctx, id)
	if err != nil {
		return Sha1{}, err
	}
	return sha1Sum(b.Data), nil
}

func (s *MemoryStore) GetBlobSize(ctx context.Context, id ids.ObjectId) (uint64, error) {
	b, err := s.GetBlob(ctx, id)
	if err != nil {
		return 0, err
	}
	return uint64(len(b.Data)), nil
}

// CompareObjectsByID reports Identical/Different for ids it recognizes,
// Unknown for anything it cannot resolve — matching the contract's
// three-way result instead of treating an unknown id as an error.
func (s *MemoryStore) CompareObjectsByID(_ context.Context, a, b ids.ObjectId) (ids.ObjectComparison, error) {
	if a.Equal(b) {
		return ids.ComparisonIdentical, nil
	}
	_, aOK := s.Blobs[a.String()]
	_, bOK := s.Blobs[b.String()]
	if !aOK || !bOK {
		return ids.ComparisonUnknown, nil
	}
	return ids.ComparisonDifferent, nil
}
