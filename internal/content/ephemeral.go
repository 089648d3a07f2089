package content

import (
	"sync"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

// EphemeralStore is the non-durable FileContentStore variant (spec
// §4.2: "An ephemeral variant omits durability"), used for
// scratch/test mounts where overlay bytes need not survive a restart.
type EphemeralStore struct {
	mu    sync.RWMutex
	files map[ids.InodeId][]byte
}

func NewEphemeralStore() *EphemeralStore {
	return &EphemeralStore{files: make(map[ids.InodeId][]byte)}
}

func (s *EphemeralStore) Create(id ids.InodeId, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[id] = append([]byte(nil), data...)
	return nil
}

func (s *EphemeralStore) Open(id ids.InodeId) error { return nil }

func (s *EphemeralStore) Pread(id ids.InodeId, offset int64, length int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[id]
	if !ok {
		return nil, vferrors.NotFound(id.String())
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

func (s *EphemeralStore) Pwrite(id ids.InodeId, data []byte, offset int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.files[id]
	needed := int(offset) + len(data)
	if len(existing) < needed {
		grown := make([]byte, needed)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)
	s.files[id] = existing
	return len(data), nil
}

func (s *EphemeralStore) Truncate(id ids.InodeId, length int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	resized := make([]byte, length)
	copy(resized, s.files[id])
	s.files[id] = resized
	return nil
}

func (s *EphemeralStore) Allocate(id ids.InodeId, offset, length int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.files[id]
	needed := offset + length
	if int64(len(existing)) >= needed {
		return nil
	}
	grown := make([]byte, needed)
	copy(grown, existing)
	s.files[id] = grown
	return nil
}

func (s *EphemeralStore) Size(id ids.InodeId) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[id]
	if !ok {
		return 0, vferrors.NotFound(id.String())
	}
	return int64(len(data)), nil
}

func (s *EphemeralStore) Remove(id ids.InodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, id)
	return nil
}

func (s *EphemeralStore) Has(id ids.InodeId) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[id]
	return ok, nil
}
