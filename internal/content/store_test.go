package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	bolt "go.etcd.io/bbolt"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

func writeCorruptFile(path string) error {
	return os.WriteFile(path, []byte("not a valid header at all, too short"), 0600)
}

func contentStores(t *testing.T) map[string]FileContentStore {
	t.Helper()

	shardRoot := t.TempDir()
	sharded := NewShardedFileStore(shardRoot)

	db, err := bolt.Open(filepath.Join(t.TempDir(), "content.db"), 0600, nil)
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	kv, err := NewBboltStore(db)
	assert.NoError(t, err)

	return map[string]FileContentStore{
		"sharded-file": sharded,
		"bbolt":        kv,
		"ephemeral":    NewEphemeralStore(),
	}
}

func TestUT_CS_01_Create_ThenPread_RoundTrips(t *testing.T) {
	for name, store := range contentStores(t) {
		t.Run(name, func(t *testing.T) {
			id := ids.InodeId(10)
			assert.NoError(t, store.Create(id, []byte("hello world")))

			got, err := store.Pread(id, 0, 11)
			assert.NoError(t, err)
			assert.Equal(t, []byte("hello world"), got)
		})
	}
}

func TestUT_CS_02_Pwrite_ExtendsAndOverwrites(t *testing.T) {
	for name, store := range contentStores(t) {
		t.Run(name, func(t *testing.T) {
			id := ids.InodeId(11)
			assert.NoError(t, store.Create(id, []byte("aaaaaaaaaa")))

			n, err := store.Pwrite(id, []byte("BBB"), 2)
			assert.NoError(t, err)
			assert.Equal(t, 3, n)

			got, err := store.Pread(id, 0, 10)
			assert.NoError(t, err)
			assert.Equal(t, []byte("aaBBBaaaaa"), got)
		})
	}
}

func TestUT_CS_03_Truncate_ShrinksAndGrows(t *testing.T) {
	for name, store := range contentStores(t) {
		t.Run(name, func(t *testing.T) {
			id := ids.InodeId(12)
			assert.NoError(t, store.Create(id, []byte("0123456789")))

			assert.NoError(t, store.Truncate(id, 4))
			size, err := store.Size(id)
			assert.NoError(t, err)
			assert.Equal(t, int64(4), size)

			assert.NoError(t, store.Truncate(id, 8))
			size, err = store.Size(id)
			assert.NoError(t, err)
			assert.Equal(t, int64(8), size)
		})
	}
}

func TestUT_CS_04_Allocate_PreservesExistingData(t *testing.T) {
	for name, store := range contentStores(t) {
		t.Run(name, func(t *testing.T) {
			id := ids.InodeId(13)
			assert.NoError(t, store.Create(id, []byte("data")))

			assert.NoError(t, store.Allocate(id, 0, 20))
			size, err := store.Size(id)
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, size, int64(20))

			got, err := store.Pread(id, 0, 4)
			assert.NoError(t, err)
			assert.Equal(t, []byte("data"), got)
		})
	}
}

func TestUT_CS_05_Remove_ThenHas_IsFalse(t *testing.T) {
	for name, store := range contentStores(t) {
		t.Run(name, func(t *testing.T) {
			id := ids.InodeId(14)
			assert.NoError(t, store.Create(id, []byte("x")))
			assert.NoError(t, store.Remove(id))

			has, err := store.Has(id)
			assert.NoError(t, err)
			assert.False(t, has)
		})
	}
}

func TestUT_CS_06_ShardedFileStore_RejectsBadHeader(t *testing.T) {
	root := t.TempDir()
	store := NewShardedFileStore(root)
	id := ids.InodeId(15)
	assert.NoError(t, store.ensureDirs(id))
	assert.NoError(t, writeCorruptFile(store.path(id)))

	_, err := store.Pread(id, 0, 4)
	assert.True(t, vferrors.IsDataCorruption(err))
}
