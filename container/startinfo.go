package container

import "encoding/binary"

// StartInfo is the fixed-size footer written immediately before the magic
// anchor. It is the single entry point the runner needs to locate every
// other structure in the container: the metadata tables, the optional
// dictionary, and the blob region. Offsets below are absolute byte offsets
// into the packed image (i.e. relative to the start of the runner's own
// on-disk file), not relative to the footer.
//
// Field layout (little-endian, offsets relative to the start of the encoded
// footer itself):
//
//	0   u32  FormatVersion
//	4   u32  DirCount
//	8   u32  FileCount
//	12  u32  LinkCount
//	16  u64  BlobStart
//	24  u64  DictOffset
//	32  u64  DictLength
//	40  u64  DirTableOffset
//	48  u64  FileTableOffset
//	56  u64  LinkTableOffset
//	64  u64  StringTableOffset
//	72  u64  StringTableLength
//	80  [16]byte VersionID
//	96  [8]byte  VersionString
//	104 u64  TotalUncompressedSize
//	112 u8   UnpackTarget
//	113 u16  UnpackDirLen
//	115 [64]byte UnpackDirInline
//	179 u64  UnpackDirOverflow
//	187 u8   Versioning
//	188 u8   Verification
//	189 u8   Console
//	190 u8   CurrentDir
//	191 u8   Cleanup (bool as 0/1)
//	192 u8   Once (bool as 0/1)
//	193 u8   ShowInformation
//	194 u8   SubsystemHint
//	195 u32  CommandPathIndex
//	199 u16  CommandSuffixLen
//	201 [128]byte CommandSuffixInline
//	329 u64  CommandSuffixOverflow
//	337       (StartInfoSize)
type StartInfo struct {
	FormatVersion uint32

	DirCount  uint32
	FileCount uint32
	LinkCount uint32

	BlobStart uint64

	DictOffset uint64
	DictLength uint64

	DirTableOffset  uint64
	FileTableOffset uint64
	LinkTableOffset uint64

	StringTableOffset uint64
	StringTableLength uint64

	VersionID     [VersionIDLen]byte
	VersionString [VersionStringLen]byte

	TotalUncompressedSize uint64

	UnpackTarget    UnpackTarget
	UnpackDirectory string

	Versioning      Versioning
	Verification    Verification
	Console         Console
	CurrentDir      CurrentDir
	Cleanup         bool
	Once            bool
	ShowInformation ShowInformation
	SubsystemHint   Subsystem

	CommandPathIndex    uint32
	CommandLineSuffix string
}

// StartInfoSize is the fixed encoded size of StartInfo in bytes.
const StartInfoSize = 4 + 4 + 4 + 4 + // FormatVersion, DirCount, FileCount, LinkCount
	8 + // BlobStart
	8 + 8 + // DictOffset, DictLength
	8 + 8 + 8 + // table offsets
	8 + 8 + // string table offset/length
	VersionIDLen + VersionStringLen +
	8 + // TotalUncompressedSize
	1 + 2 + UnpackDirInlineMax + 8 + // UnpackTarget + inline unpack dir + overflow
	1 + 1 + 1 + 1 + 1 + 1 + 1 + 1 + // Versioning..SubsystemHint
	4 + // CommandPathIndex
	2 + CommandSuffixInlineMax + 8 // CommandLineSuffix inline + overflow

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Encode serializes s into a StartInfoSize-byte footer, appending any
// overflow strings (UnpackDirectory, CommandLineSuffix) to strTab. strTab is
// relative to wherever the caller will ultimately place it on disk; pass a
// fresh empty slice with strTabBase 0 when the footer's string table is
// independent, or a nonzero strTabBase when overflow bytes are being
// appended after an already-sized shared string table (see
// packer/pack.go, which shares one on-disk string table between the entry
// tables and the footer).
func (s StartInfo) Encode(strTab *[]byte, strTabBase uint64) ([]byte, error) {
	buf := make([]byte, StartInfoSize)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], s.FormatVersion)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], s.DirCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], s.FileCount)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], s.LinkCount)
	off += 4

	binary.LittleEndian.PutUint64(buf[off:], s.BlobStart)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], s.DictOffset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.DictLength)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], s.DirTableOffset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.FileTableOffset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.LinkTableOffset)
	off += 8

	binary.LittleEndian.PutUint64(buf[off:], s.StringTableOffset)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], s.StringTableLength)
	off += 8

	copy(buf[off:off+VersionIDLen], s.VersionID[:])
	off += VersionIDLen
	copy(buf[off:off+VersionStringLen], s.VersionString[:])
	off += VersionStringLen

	binary.LittleEndian.PutUint64(buf[off:], s.TotalUncompressedSize)
	off += 8

	buf[off] = byte(s.UnpackTarget)
	off++

	dirLen, dirOverflow, err := packString(s.UnpackDirectory, UnpackDirInlineMax, buf[off+2:off+2+UnpackDirInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], dirLen)
	off += 2 + UnpackDirInlineMax
	binary.LittleEndian.PutUint64(buf[off:], dirOverflow)
	off += 8

	buf[off] = byte(s.Versioning)
	off++
	buf[off] = byte(s.Verification)
	off++
	buf[off] = byte(s.Console)
	off++
	buf[off] = byte(s.CurrentDir)
	off++
	buf[off] = boolByte(s.Cleanup)
	off++
	buf[off] = boolByte(s.Once)
	off++
	buf[off] = byte(s.ShowInformation)
	off++
	buf[off] = byte(s.SubsystemHint)
	off++

	binary.LittleEndian.PutUint32(buf[off:], s.CommandPathIndex)
	off += 4

	suffixLen, suffixOverflow, err := packString(s.CommandLineSuffix, CommandSuffixInlineMax, buf[off+2:off+2+CommandSuffixInlineMax], strTab, strTabBase)
	if err != nil {
		return nil, err
	}
	binary.LittleEndian.PutUint16(buf[off:], suffixLen)
	off += 2 + CommandSuffixInlineMax
	binary.LittleEndian.PutUint64(buf[off:], suffixOverflow)

	return buf, nil
}

// DecodeStartInfo reads a StartInfoSize-byte footer, resolving overflow
// strings from strTab (the region described by StringTableOffset/Length,
// already sliced by the caller to start at its own offset 0).
func DecodeStartInfo(buf []byte, strTab []byte) (StartInfo, error) {
	if len(buf) < StartInfoSize {
		return StartInfo{}, ErrTruncated
	}

	var s StartInfo
	off := 0

	s.FormatVersion = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	if s.FormatVersion != FormatVersion {
		return StartInfo{}, ErrVersionMismatch
	}

	s.DirCount = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	s.FileCount = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	s.LinkCount = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	s.BlobStart = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	s.DictOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.DictLength = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	s.DirTableOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.FileTableOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.LinkTableOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	s.StringTableOffset = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	s.StringTableLength = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	copy(s.VersionID[:], buf[off:off+VersionIDLen])
	off += VersionIDLen
	copy(s.VersionString[:], buf[off:off+VersionStringLen])
	off += VersionStringLen

	s.TotalUncompressedSize = binary.LittleEndian.Uint64(buf[off:])
	off += 8

	s.UnpackTarget = UnpackTarget(buf[off])
	off++

	dirLen := binary.LittleEndian.Uint16(buf[off:])
	dirInline := buf[off+2 : off+2+UnpackDirInlineMax]
	off += 2 + UnpackDirInlineMax
	dirOverflow := binary.LittleEndian.Uint64(buf[off:])
	off += 8

	dir, err := unpackString(dirLen, dirInline, dirOverflow, strTab)
	if err != nil {
		return StartInfo{}, err
	}
	s.UnpackDirectory = dir

	s.Versioning = Versioning(buf[off])
	off++
	s.Verification = Verification(buf[off])
	off++
	s.Console = Console(buf[off])
	off++
	s.CurrentDir = CurrentDir(buf[off])
	off++
	s.Cleanup = buf[off] != 0
	off++
	s.Once = buf[off] != 0
	off++
	s.ShowInformation = ShowInformation(buf[off])
	off++
	s.SubsystemHint = Subsystem(buf[off])
	off++

	s.CommandPathIndex = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	suffixLen := binary.LittleEndian.Uint16(buf[off:])
	suffixInline := buf[off+2 : off+2+CommandSuffixInlineMax]
	off += 2 + CommandSuffixInlineMax
	suffixOverflow := binary.LittleEndian.Uint64(buf[off:])

	suffix, err := unpackString(suffixLen, suffixInline, suffixOverflow, strTab)
	if err != nil {
		return StartInfo{}, err
	}
	s.CommandLineSuffix = suffix

	return s, nil
}
