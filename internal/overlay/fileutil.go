package overlay

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// lockFile is an exclusive advisory lock on a catalog's "info" file,
// grounded on Auriora-OneMount's cache.go bbolt-open lock-file idiom
// (spec §4.1: "holds an exclusive lock on the catalog directory/handle
// for the process's lifetime").
type lockFile struct {
	f *os.File
}

// infoFileMagic/infoFileVersion are the catalog info file's fixed
// contents (spec §6: "4-byte magic 0xED 0xE0 0x00 0x01 followed by
// u32_be version=1").
var infoFileMagic = [4]byte{0xED, 0xE0, 0x00, 0x01}

const infoFileVersion uint32 = 1

func acquireLockFile(path string) (*lockFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("catalog already locked: %s", path)
		}
		return nil, err
	}
	var body [8]byte
	copy(body[0:4], infoFileMagic[:])
	binary.BigEndian.PutUint32(body[4:8], infoFileVersion)
	if _, err := f.Write(body[:]); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &lockFile{f: f}, nil
}

func (l *lockFile) release() {
	path := l.f.Name()
	l.f.Close()
	os.Remove(path)
}

// atomicWriteFile writes data to a temp file under tmpDir and commits it
// to finalPath via rename, optionally fdatasync'ing first (spec §4.1:
// "Writes go to a per-shard tmp/ file and are committed by rename; the
// root inode's write is additionally fdatasync'd before rename").
func atomicWriteFile(tmpDir, finalPath string, data []byte, sync bool) error {
	tmp, err := os.CreateTemp(tmpDir, "rec-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if sync {
		if err := tmp.Sync(); err != nil {
			tmp.Close()
			os.Remove(tmpPath)
			return err
		}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0700); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, finalPath)
}

func leBytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func leUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// encodeHeader renders the fixed 64-byte dir-record header as bytes, for
// backends that build the full record (header + body) as one buffer
// before a single atomic write.
func encodeHeader() []byte {
	var buf bytes.Buffer
	// WriteDirRecordHeader never errors against a bytes.Buffer.
	_ = WriteDirRecordHeader(&buf)
	return buf.Bytes()
}

// byteReader adapts a byte slice to io.Reader for ReadDirRecordHeader.
func byteReader(b []byte) io.Reader {
	return bytes.NewReader(b)
}
