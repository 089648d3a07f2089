package content

import (
	"encoding/binary"

	bolt "go.etcd.io/bbolt"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

var bucketContent = []byte("content")

// BboltStore is the KV FileContentStore variant (spec §4.2: "key/value
// backends store payload only and ignore the header parameter on
// open"), grounded on Auriora-OneMount's internal/fs/cache.go bucketed
// bbolt layout.
type BboltStore struct {
	db *bolt.DB
}

func NewBboltStore(db *bolt.DB) (*BboltStore, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketContent)
		return err
	}); err != nil {
		return nil, vferrors.Io("content store db", err)
	}
	return &BboltStore{db: db}, nil
}

func contentKey(id ids.InodeId) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func (s *BboltStore) Create(id ids.InodeId, data []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContent).Put(contentKey(id), data)
	})
}

// Open is a no-op for the KV backend: bbolt values are read/written
// wholesale under a transaction, there is no persistent fd to cache.
func (s *BboltStore) Open(id ids.InodeId) error { return nil }

func (s *BboltStore) read(id ids.InodeId) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketContent).Get(contentKey(id))
		if v == nil {
			return vferrors.NotFound(id.String())
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (s *BboltStore) Pread(id ids.InodeId, offset int64, length int) ([]byte, error) {
	data, err := s.read(id)
	if err != nil {
		return nil, err
	}
	if offset >= int64(len(data)) {
		return nil, nil
	}
	end := offset + int64(length)
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return data[offset:end], nil
}

func (s *BboltStore) Pwrite(id ids.InodeId, data []byte, offset int64) (int, error) {
	return len(data), s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContent)
		existing := append([]byte(nil), b.Get(contentKey(id))...)
		needed := int(offset) + len(data)
		if len(existing) < needed {
			grown := make([]byte, needed)
			copy(grown, existing)
			existing = grown
		}
		copy(existing[offset:], data)
		return b.Put(contentKey(id), existing)
	})
}

func (s *BboltStore) Truncate(id ids.InodeId, length int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContent)
		existing := append([]byte(nil), b.Get(contentKey(id))...)
		resized := make([]byte, length)
		copy(resized, existing)
		return b.Put(contentKey(id), resized)
	})
}

func (s *BboltStore) Allocate(id ids.InodeId, offset, length int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketContent)
		existing := append([]byte(nil), b.Get(contentKey(id))...)
		needed := offset + length
		if int64(len(existing)) >= needed {
			return nil
		}
		grown := make([]byte, needed)
		copy(grown, existing)
		return b.Put(contentKey(id), grown)
	})
}

func (s *BboltStore) Size(id ids.InodeId) (int64, error) {
	data, err := s.read(id)
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func (s *BboltStore) Remove(id ids.InodeId) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContent).Delete(contentKey(id))
	})
}

func (s *BboltStore) Has(id ids.InodeId) (bool, error) {
	var has bool
	err := s.db.View(func(tx *bolt.Tx) error {
		has = tx.Bucket(bucketContent).Get(contentKey(id)) != nil
		return nil
	})
	return has, err
}
