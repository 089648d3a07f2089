package overlay

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
	"github.com/auriora/vfsoverlay/internal/logging"
)

// bbolt bucket layout: one bucket per concern, mirroring Auriora-OneMount
// cache.go's bucketContent/bucketMetadata/bucketDelta/bucketVersion split.
var (
	bucketDirs     = []byte("dirs")
	bucketChildren = []byte("children") // parent-id || name -> DirEntry, for SemanticChildCatalog
	bucketMeta     = []byte("meta")
)

const metaKeyNextInodeNumber = "next-inode-number"

// BboltCatalog is the bbolt-backed KV InodeCatalog variant (spec §4.1
// variant 2), grounded on Auriora-OneMount internal/fs/cache.go's
// exponential-backoff bolt.Open retry loop and bucket-per-concern
// layout. Unlike the teacher's single shared db, this catalog owns its
// own file dedicated to overlay state.
type BboltCatalog struct {
	db            *bolt.DB
	caseSensitive bool
}

func NewBboltCatalog(caseSensitive bool) *BboltCatalog {
	return &BboltCatalog{caseSensitive: caseSensitive}
}

// Open opens (creating if necessary) the bbolt file at path, retrying
// with exponential backoff if another process currently holds the file
// lock — the same pattern the teacher uses to open its shared onemount.db.
func (c *BboltCatalog) Open(path string) error {
	maxRetries := 10
	initialBackoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var db *bolt.DB
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		backoff := initialBackoff * time.Duration(1<<uint(attempt))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}

		db, err = bolt.Open(path, 0600, &bolt.Options{
			Timeout:        10 * time.Second,
			NoFreelistSync: true,
		})
		if err == nil {
			break
		}
		if attempt == maxRetries-1 {
			logging.Error().Err(err).Int(logging.FieldRetries, maxRetries).Msg("could not open overlay catalog db")
			return vferrors.CatalogLocked(path)
		}
		logging.Warn().Err(err).Int(logging.FieldRetries, attempt+1).Dur("backoff", backoff).Msg("failed to open overlay catalog db, retrying")
		time.Sleep(backoff)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDirs); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketChildren); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	}); err != nil {
		db.Close()
		return vferrors.Io(path, err)
	}

	c.db = db
	return nil
}

func dirKey(id ids.InodeId) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

func childKey(parent ids.InodeId, name string) []byte {
	key := make([]byte, 8+len(name))
	binary.BigEndian.PutUint64(key[:8], uint64(parent))
	copy(key[8:], name)
	return key
}

func (c *BboltCatalog) Init(createIfMissing bool) (*ids.InodeId, error) {
	var next *ids.InodeId
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get([]byte(metaKeyNextInodeNumber))
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return vferrors.DataCorruption(metaKeyNextInodeNumber, vferrors.New("bad next-inode-number record"))
		}
		n := ids.InodeId(binary.BigEndian.Uint64(v))
		next = &n
		return nil
	})
	return next, err
}

func (c *BboltCatalog) Close(nextInodeID ids.InodeId) error {
	err := c.db.Update(func(tx *bolt.Tx) error {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(nextInodeID))
		return tx.Bucket(bucketMeta).Put([]byte(metaKeyNextInodeNumber), b[:])
	})
	if err != nil {
		return vferrors.Io("overlay catalog", err)
	}
	return vferrors.Wrap(c.db.Close(), "closing overlay catalog db")
}

func (c *BboltCatalog) LoadDir(id ids.InodeId) (*OverlayDir, error) {
	var dir *OverlayDir
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDirs).Get(dirKey(id))
		if v == nil {
			return nil
		}
		decoded, err := DecodeDir(v, c.caseSensitive, id.String())
		if err != nil {
			return err
		}
		dir = &decoded
		return nil
	})
	return dir, err
}

func (c *BboltCatalog) LoadAndRemoveDir(id ids.InodeId) (*OverlayDir, error) {
	var dir *OverlayDir
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDirs)
		v := b.Get(dirKey(id))
		if v == nil {
			return nil
		}
		decoded, err := DecodeDir(v, c.caseSensitive, id.String())
		if err != nil {
			return err
		}
		dir = &decoded
		return b.Delete(dirKey(id))
	})
	return dir, err
}

func (c *BboltCatalog) SaveDir(id ids.InodeId, dir OverlayDir) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDirs).Put(dirKey(id), EncodeDir(dir))
	})
}

func (c *BboltCatalog) RemoveDir(id ids.InodeId) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDirs)
		v := b.Get(dirKey(id))
		if v == nil {
			return nil
		}
		decoded, err := DecodeDir(v, c.caseSensitive, id.String())
		if err != nil {
			return err
		}
		if decoded.Contents.Len() > 0 {
			return vferrors.DirectoryNotEmpty(id.String())
		}
		return b.Delete(dirKey(id))
	})
}

func (c *BboltCatalog) HasDir(id ids.InodeId) (bool, error) {
	var has bool
	err := c.db.View(func(tx *bolt.Tx) error {
		has = tx.Bucket(bucketDirs).Get(dirKey(id)) != nil
		return nil
	})
	return has, err
}

func (c *BboltCatalog) NextInodeNumber() (ids.InodeId, error) {
	return 0, vferrors.InvalidArgument("bbolt catalog", "bbolt catalog allocates ids via the mount's shared allocator")
}

func (c *BboltCatalog) AllParentInodeNumbers() ([]ids.InodeId, error) {
	var out []ids.InodeId
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDirs).ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return nil
			}
			out = append(out, ids.InodeId(binary.BigEndian.Uint64(k)))
			return nil
		})
	})
	return out, err
}

// AddChild implements SemanticChildCatalog by mutating the parent's
// full record and mirroring the child into bucketChildren for O(1)
// HasChild lookups without decoding the parent.
func (c *BboltCatalog) AddChild(parent ids.InodeId, name string, entry DirEntry) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		dirs := tx.Bucket(bucketDirs)
		v := dirs.Get(dirKey(parent))
		if v == nil {
			return vferrors.NotFound(parent.String())
		}
		dir, err := DecodeDir(v, c.caseSensitive, parent.String())
		if err != nil {
			return err
		}
		dir.Contents.Set(name, entry)
		if err := dirs.Put(dirKey(parent), EncodeDir(dir)); err != nil {
			return err
		}
		return tx.Bucket(bucketChildren).Put(childKey(parent, name), []byte{1})
	})
}

func (c *BboltCatalog) RemoveChild(parent ids.InodeId, name string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		dirs := tx.Bucket(bucketDirs)
		v := dirs.Get(dirKey(parent))
		if v == nil {
			return vferrors.NotFound(parent.String())
		}
		dir, err := DecodeDir(v, c.caseSensitive, parent.String())
		if err != nil {
			return err
		}
		dir.Contents.Remove(name)
		if err := dirs.Put(dirKey(parent), EncodeDir(dir)); err != nil {
			return err
		}
		return tx.Bucket(bucketChildren).Delete(childKey(parent, name))
	})
}

func (c *BboltCatalog) HasChild(parent ids.InodeId, name string) (bool, error) {
	var has bool
	err := c.db.View(func(tx *bolt.Tx) error {
		has = tx.Bucket(bucketChildren).Get(childKey(parent, name)) != nil
		return nil
	})
	return has, err
}

func (c *BboltCatalog) RenameChild(srcParent, dstParent ids.InodeId, srcName, dstName string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		dirs := tx.Bucket(bucketDirs)
		children := tx.Bucket(bucketChildren)

		srcV := dirs.Get(dirKey(srcParent))
		if srcV == nil {
			return vferrors.NotFound(srcParent.String())
		}
		srcDir, err := DecodeDir(srcV, c.caseSensitive, srcParent.String())
		if err != nil {
			return err
		}
		entry, ok := srcDir.Contents.Get(srcName)
		if !ok {
			return vferrors.NotFound(fmt.Sprintf("%s/%s", srcParent, srcName))
		}
		srcDir.Contents.Remove(srcName)
		if err := dirs.Put(dirKey(srcParent), EncodeDir(srcDir)); err != nil {
			return err
		}
		if err := children.Delete(childKey(srcParent, srcName)); err != nil {
			return err
		}

		dstDirRec := srcDir
		if dstParent != srcParent {
			dstV := dirs.Get(dirKey(dstParent))
			if dstV == nil {
				return vferrors.NotFound(dstParent.String())
			}
			decoded, err := DecodeDir(dstV, c.caseSensitive, dstParent.String())
			if err != nil {
				return err
			}
			dstDirRec = decoded
		}
		dstDirRec.Contents.Set(dstName, entry)
		if err := dirs.Put(dirKey(dstParent), EncodeDir(dstDirRec)); err != nil {
			return err
		}
		return children.Put(childKey(dstParent, dstName), []byte{1})
	})
}
