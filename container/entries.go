package container

import "encoding/binary"

// DirectoryEntryStride is the fixed on-disk size of one DirectoryEntry record.
const DirectoryEntryStride = 4 + 2 + DirNameInlineMax + 8 + 8 + 4

// FileEntryStride is the fixed on-disk size of one FileEntry record.
const FileEntryStride = 4 + 2 + FileNameInlineMax + 8 + 8 + 4 + 4 + 8 + 8 + 8 + 8 + 1

// FileFlagStored marks a FileEntry whose blob is stored raw (uncompressed)
// because compression did not shrink it, per the "always attempt, keep raw
// if larger" rule in packer/compress.go. Without this bit the runner cannot
// tell a raw blob from a compressed one whose size happens to match.
const FileFlagStored uint8 = 1 << 0

// SymlinkEntryStride is the fixed on-disk size of one SymlinkEntry record.
const SymlinkEntryStride = 4 + 2 + SymlinkNameInlineMax + 8 + 8 + 4 + 1 + 2 + SymlinkTargetInlineMax + 8

// DirectoryEntry describes one directory in the unpack forest.
type DirectoryEntry struct {
	// Parent is the index of the containing directory, or RootIndex for the forest root.
	Parent uint32
	// Name is the directory's own path segment (not a full path).
	Name string
	// ModTime is the directory's recorded modification time.
	ModTimeSec  int64
	ModTimeNsec uint32
}

// FileEntry describes one regular file's metadata and payload location.
type FileEntry struct {
	Parent           uint32
	Name             string
	ModTimeSec       int64
	ModTimeNsec      uint32
	Mode             uint32 // POSIX permission + executable bits
	UncompressedSize uint64
	CompressedSize   uint64
	Offset           uint64 // absolute byte offset of compressed payload in the packed image
	Hash             uint64 // xxHash64 of uncompressed content
	Flags            uint8  // bitmask, see FileFlagStored
}

// Stored reports whether e's blob is raw (uncompressed) rather than zstd-framed.
func (e FileEntry) Stored() bool {
	return e.Flags&FileFlagStored != 0
}

// LinkKind distinguishes file-target from directory-target symlinks (Windows needs this).
type LinkKind uint8

// Link kinds.
const (
	LinkKindFile LinkKind = iota
	LinkKindDir
)

// SymlinkEntry describes one symlink's link site and recorded (not followed) target.
type SymlinkEntry struct {
	Parent      uint32
	Name        string
	ModTimeSec  int64
	ModTimeNsec uint32
	Kind        LinkKind
	Target      string // slash-delimited, stored verbatim as packed
}

// EncodeDirectoryEntry returns the fixed-stride record for e, appending the
// name to strTab when it exceeds DirNameInlineMax and recording its 1-based
// string-table offset (see packString) in the record's overflow field.
func EncodeDirectoryEntry(e DirectoryEntry, strTab *[]byte, strTabBase uint64) ([]byte, error) {
	buf := make([]byte, DirectoryEntryStride)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], e.Parent)
	off += 4

	nameLen, overflowOff, err := packString(e.Name, DirNameInlineMax, buf[off+2:off+2+DirNameInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], nameLen)
	off += 2 + DirNameInlineMax
	binary.LittleEndian.PutUint64(buf[off:], overflowOff)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], uint64(e.ModTimeSec))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], e.ModTimeNsec)
	off += 4

	return buf, nil
}

// DecodeDirectoryEntry reads one fixed-stride record from buf, resolving any
// overflow name from strTab.
func DecodeDirectoryEntry(buf []byte, strTab []byte) (DirectoryEntry, error) {
	if len(buf) < DirectoryEntryStride {
		return DirectoryEntry{}, ErrTruncated
	}

	var e DirectoryEntry
	off := 0
	e.Parent = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	nameLen := binary.LittleEndian.Uint16(buf[off:])
	inline := buf[off+2 : off+2+DirNameInlineMax]
	off += 2 + DirNameInlineMax
	overflowOff := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	name, err := unpackString(nameLen, inline, overflowOff, strTab)
	if err != nil {
		return DirectoryEntry{}, err
	}
	e.Name = name

	e.ModTimeSec = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	e.ModTimeNsec = binary.LittleEndian.Uint32(buf[off:])

	return e, nil
}

// EncodeFileEntry returns the fixed-stride record for e.
func EncodeFileEntry(e FileEntry, strTab *[]byte, strTabBase uint64) ([]byte, error) {
	buf := make([]byte, FileEntryStride)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], e.Parent)
	off += 4

	nameLen, overflowOff, err := packString(e.Name, FileNameInlineMax, buf[off+2:off+2+FileNameInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], nameLen)
	off += 2 + FileNameInlineMax
	binary.LittleEndian.PutUint64(buf[off:], overflowOff)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], uint64(e.ModTimeSec))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], e.ModTimeNsec)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.Mode)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], e.UncompressedSize)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.CompressedSize)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.Offset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], e.Hash)
	off += 8
	buf[off] = e.Flags

	return buf, nil
}

// DecodeFileEntry reads one fixed-stride record from buf.
func DecodeFileEntry(buf []byte, strTab []byte) (FileEntry, error) {
	if len(buf) < FileEntryStride {
		return FileEntry{}, ErrTruncated
	}

	var e FileEntry
	off := 0
	e.Parent = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	nameLen := binary.LittleEndian.Uint16(buf[off:])
	inline := buf[off+2 : off+2+FileNameInlineMax]
	off += 2 + FileNameInlineMax
	overflowOff := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	name, err := unpackString(nameLen, inline, overflowOff, strTab)
	if err != nil {
		return FileEntry{}, err
	}
	e.Name = name

	e.ModTimeSec = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	e.ModTimeNsec = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.Mode = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	e.UncompressedSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.CompressedSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Offset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Hash = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	e.Flags = buf[off]

	return e, nil
}

// EncodeSymlinkEntry returns the fixed-stride record for e.
func EncodeSymlinkEntry(e SymlinkEntry, strTab *[]byte, strTabBase uint64) ([]byte, error) {
	buf := make([]byte, SymlinkEntryStride)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], e.Parent)
	off += 4

	nameLen, nameOverflowOff, err := packString(e.Name, SymlinkNameInlineMax, buf[off+2:off+2+SymlinkNameInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], nameLen)
	off += 2 + SymlinkNameInlineMax
	binary.LittleEndian.PutUint64(buf[off:], nameOverflowOff)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], uint64(e.ModTimeSec))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], e.ModTimeNsec)
	off += 4

	buf[off] = byte(e.Kind)
	off++

	targetLen, targetOverflowOff, err := packString(e.Target, SymlinkTargetInlineMax, buf[off+2:off+2+SymlinkTargetInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], targetLen)
	off += 2 + SymlinkTargetInlineMax
	binary.LittleEndian.PutUint64(buf[off:], targetOverflowOff)

	return buf, nil
}

// DecodeSymlinkEntry reads one fixed-stride record from buf.
func DecodeSymlinkEntry(buf []byte, strTab []byte) (SymlinkEntry, error) {
	if len(buf) < SymlinkEntryStride {
		return SymlinkEntry{}, ErrTruncated
	}

	var e SymlinkEntry
	off := 0
	e.Parent = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	nameLen := binary.LittleEndian.Uint16(buf[off:])
	inlineName := buf[off+2 : off+2+SymlinkNameInlineMax]
	off += 2 + SymlinkNameInlineMax
	nameOverflowOff := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	name, err := unpackString(nameLen, inlineName, nameOverflowOff, strTab)
	if err != nil {
		return SymlinkEntry{}, err
	}
	e.Name = name

	e.ModTimeSec = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	e.ModTimeNsec = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	e.Kind = LinkKind(buf[off])
	off++

	targetLen := binary.LittleEndian.Uint16(buf[off:])
	inlineTarget := buf[off+2 : off+2+SymlinkTargetInlineMax]
	off += 2 + SymlinkTargetInlineMax
	targetOverflowOff := binary.LittleEndian.Uint64(buf[off:])

	target, err := unpackString(targetLen, inlineTarget, targetOverflowOff, strTab)
	if err != nil {
		return SymlinkEntry{}, err
	}
	e.Target = target

	return e, nil
}

// packString writes s into inline (zero-padded) when it fits, otherwise
// appends it to *strTab and returns the encoded length and a 1-based overflow
// offset (relative to strTabBase, +1 so that 0 unambiguously means "inline").
// The entry encoders pass strTabBase 0; packer/pack.go encodes the footer
// with a nonzero base (the length of the entry tables' string table) so the
// footer's overflow strings are addressed after those bytes.
func packString(s string, inlineMax int, inline []byte, strTab *[]byte, strTabBase uint64) (uint16, uint64, error) {
	if len(s) > 0xFFFF {
		return 0, 0, ErrStringTooLong
	}

	for i := range inline {
		inline[i] = 0
	}

	if len(s) <= inlineMax {
		copy(inline, s)
		return uint16(len(s)), 0, nil
	}

	offset := strTabBase + uint64(len(*strTab)) + 1
	*strTab = append(*strTab, s...)

	return uint16(len(s)), offset, nil
}

// unpackString resolves a string encoded by packString: inline when it fit
// at encode time, otherwise read from strTab at overflowOff (relative to
// strTab's own first byte — the table-level decoder is responsible for
// passing the string table sliced to its own start, with strTabBase 0).
func unpackString(length uint16, inline []byte, overflowOff uint64, strTab []byte) (string, error) {
	if overflowOff == 0 {
		if int(length) > len(inline) {
			return "", ErrTruncated
		}
		return string(inline[:length]), nil
	}

	start := overflowOff - 1
	end := start + uint64(length)
	if end > uint64(len(strTab)) || end < start {
		return "", ErrOffsetOutOfRange
	}

	return string(strTab[start:end]), nil
}
