package container

import (
	"bytes"
	"encoding/binary"
)

// Located bundles a validated StartInfo together with the byte ranges the
// runner needs to read out the metadata tables without re-parsing the image.
type Located struct {
	Info StartInfo

	DirTable    []byte
	FileTable   []byte
	LinkTable   []byte
	StringTable []byte
	Dict        []byte
	BlobStart   uint64
}

// Locate scans the tail of a packed image for the magic anchor, decodes the
// StartInfo footer immediately preceding it, and slices out the metadata
// tables. image is expected to be the full on-disk image (typically a
// memory-mapped read-only view of the running executable).
func Locate(image []byte) (Located, error) {
	if len(image) < MagicSize+StartInfoSize {
		return Located{}, ErrTruncated
	}

	tail := image[len(image)-MagicSize:]
	if !bytes.Equal(tail, []byte(Magic)) {
		return Located{}, ErrBadMagic
	}

	footerStart := len(image) - MagicSize - StartInfoSize
	footerBuf := image[footerStart : footerStart+StartInfoSize]

	// Overflowing footer strings live in the string table, whose position is
	// itself recorded in the footer. So the fixed prefix (FormatVersion and
	// the string table offset/length) is read by hand first, and the full
	// footer is decoded only once the real table has been sliced out.
	prelim, err := decodeStartInfoPrefix(footerBuf)
	if err != nil {
		return Located{}, err
	}

	strTab, err := sliceRange(image, prelim.StringTableOffset, prelim.StringTableLength)
	if err != nil {
		return Located{}, err
	}

	info, err := DecodeStartInfo(footerBuf, strTab)
	if err != nil {
		return Located{}, err
	}

	dirTable, err := sliceRange(image, info.DirTableOffset, uint64(info.DirCount)*DirectoryEntryStride)
	if err != nil {
		return Located{}, err
	}
	fileTable, err := sliceRange(image, info.FileTableOffset, uint64(info.FileCount)*FileEntryStride)
	if err != nil {
		return Located{}, err
	}
	linkTable, err := sliceRange(image, info.LinkTableOffset, uint64(info.LinkCount)*SymlinkEntryStride)
	if err != nil {
		return Located{}, err
	}

	var dict []byte
	if info.DictLength > 0 {
		dict, err = sliceRange(image, info.DictOffset, info.DictLength)
		if err != nil {
			return Located{}, err
		}
	}

	if info.BlobStart > info.DirTableOffset {
		return Located{}, ErrOverlap
	}

	return Located{
		Info:        info,
		DirTable:    dirTable,
		FileTable:   fileTable,
		LinkTable:   linkTable,
		StringTable: strTab,
		Dict:        dict,
		BlobStart:   info.BlobStart,
	}, nil
}

// startInfoStringTableFieldOffset is the byte offset of StringTableOffset
// within the encoded StartInfo footer (see the field layout comment on
// StartInfo): FormatVersion, DirCount, FileCount, LinkCount, BlobStart,
// DictOffset, DictLength, DirTableOffset, FileTableOffset, LinkTableOffset.
const startInfoStringTableFieldOffset = 4 + 4 + 4 + 4 + 8 + 8 + 8 + 8 + 8 + 8

// prelimStartInfo holds just enough of the footer to find the string table,
// decoded without resolving any overflow strings (which themselves may live
// in that table).
type prelimStartInfo struct {
	FormatVersion     uint32
	StringTableOffset uint64
	StringTableLength uint64
	DirTableOffset    uint64
}

// decodeStartInfoPrefix reads the fixed-position fields of the footer needed
// to locate the string table and directory table, without touching any
// inline/overflow string field.
func decodeStartInfoPrefix(buf []byte) (prelimStartInfo, error) {
	if len(buf) < StartInfoSize {
		return prelimStartInfo{}, ErrTruncated
	}

	var p prelimStartInfo
	p.FormatVersion = binary.LittleEndian.Uint32(buf[0:])
	if p.FormatVersion != FormatVersion {
		return prelimStartInfo{}, ErrVersionMismatch
	}

	p.DirTableOffset = binary.LittleEndian.Uint64(buf[40:])
	p.StringTableOffset = binary.LittleEndian.Uint64(buf[startInfoStringTableFieldOffset:])
	p.StringTableLength = binary.LittleEndian.Uint64(buf[startInfoStringTableFieldOffset+8:])

	return p, nil
}

// sliceRange returns image[offset : offset+length], validating bounds.
func sliceRange(image []byte, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if offset > uint64(len(image)) {
		return nil, ErrOffsetOutOfRange
	}
	end := offset + length
	if end > uint64(len(image)) || end < offset {
		return nil, ErrOffsetOutOfRange
	}
	return image[offset:end], nil
}
