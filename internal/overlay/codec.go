package overlay

import (
	"bytes"
	"encoding/binary"
	"io"

	vferrors "github.com/auriora/vfsoverlay/internal/errors"
	"github.com/auriora/vfsoverlay/internal/ids"
)

// DirRecordMagic and DirRecordVersion identify a sharded inode record's
// 64-byte header (spec §6: "64 bytes header 'OVDR' || u32_be version=1 ||
// 48 bytes zero").
var DirRecordMagic = [4]byte{'O', 'V', 'D', 'R'}

const DirRecordVersion uint32 = 1
const dirRecordHeaderSize = 64

// WriteDirRecordHeader writes the fixed 64-byte header.
func WriteDirRecordHeader(w io.Writer) error {
	var header [dirRecordHeaderSize]byte
	copy(header[0:4], DirRecordMagic[:])
	binary.BigEndian.PutUint32(header[4:8], DirRecordVersion)
	_, err := w.Write(header[:])
	return err
}

// ReadDirRecordHeader validates and consumes the fixed header, returning
// a DataCorruption error on magic/version mismatch (spec §4.1 bullet 2).
func ReadDirRecordHeader(r io.Reader, path string) error {
	var header [dirRecordHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return vferrors.DataCorruption(path, err)
	}
	if !bytes.Equal(header[0:4], DirRecordMagic[:]) {
		return vferrors.DataCorruption(path, vferrors.New("bad overlay dir magic"))
	}
	version := binary.BigEndian.Uint32(header[4:8])
	if version != DirRecordVersion {
		return vferrors.DataCorruption(path, vferrors.New("unsupported overlay dir version"))
	}
	return nil
}

// EncodeDir serializes an OverlayDir's entries map, matching spec §6:
// "compact-binary serialized OverlayDir {entries: map<string, {mode: u32,
// inode_number: i64, hash: optional<bytes>}>}". Encoding is
// deterministic (entries written in sorted-name order) so that
// save_dir(id, d); load_dir(id) round-trips byte-for-byte (spec §8).
func EncodeDir(dir OverlayDir) []byte {
	var buf bytes.Buffer

	isMaterialized := dir.IsMaterialized()
	flags := byte(0)
	if !isMaterialized {
		flags = 1
	}
	buf.WriteByte(flags)

	writeBytesField(&buf, dir.TreeObjectID)

	names := dir.Contents.SortedNames()
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(names)))
	buf.Write(countBuf[:])

	for _, name := range names {
		entry, _ := dir.Contents.Get(name)
		writeStringField(&buf, name)

		var modeBuf [4]byte
		binary.BigEndian.PutUint32(modeBuf[:], uint32(entry.Mode))
		buf.Write(modeBuf[:])

		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], uint64(entry.InodeID))
		buf.Write(idBuf[:])

		writeBytesField(&buf, entry.ObjectID)
	}

	return buf.Bytes()
}

func writeBytesField(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func writeStringField(buf *bytes.Buffer, s string) {
	writeBytesField(buf, []byte(s))
}

// DecodeDir is the inverse of EncodeDir. caseSensitive must match the
// mount's policy so the decoded DirContents normalizes names the same
// way they were normalized at encode time.
func DecodeDir(data []byte, caseSensitive bool, path string) (OverlayDir, error) {
	r := bytes.NewReader(data)

	flags, err := r.ReadByte()
	if err != nil {
		return OverlayDir{}, vferrors.DataCorruption(path, err)
	}

	treeObjectID, err := readBytesField(r)
	if err != nil {
		return OverlayDir{}, vferrors.DataCorruption(path, err)
	}
	if flags == 0 {
		treeObjectID = nil
	}

	var countBuf [4]byte
	if _, err := io.ReadFull(r, countBuf[:]); err != nil {
		return OverlayDir{}, vferrors.DataCorruption(path, err)
	}
	count := binary.BigEndian.Uint32(countBuf[:])

	contents := NewDirContents(caseSensitive)
	for i := uint32(0); i < count; i++ {
		nameBytes, err := readBytesField(r)
		if err != nil {
			return OverlayDir{}, vferrors.DataCorruption(path, err)
		}

		var modeBuf [4]byte
		if _, err := io.ReadFull(r, modeBuf[:]); err != nil {
			return OverlayDir{}, vferrors.DataCorruption(path, err)
		}

		var idBuf [8]byte
		if _, err := io.ReadFull(r, idBuf[:]); err != nil {
			return OverlayDir{}, vferrors.DataCorruption(path, err)
		}

		objectID, err := readBytesField(r)
		if err != nil {
			return OverlayDir{}, vferrors.DataCorruption(path, err)
		}

		contents.Set(string(nameBytes), DirEntry{
			Mode:     EntryMode(binary.BigEndian.Uint32(modeBuf[:])),
			InodeID:  ids.InodeId(binary.BigEndian.Uint64(idBuf[:])),
			ObjectID: objectID,
		})
	}

	return OverlayDir{Contents: contents, TreeObjectID: treeObjectID}, nil
}

func readBytesField(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
