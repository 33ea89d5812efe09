// Package container defines the on-disk payload layout shared by the packer
// and the runner: fixed-stride metadata structs, the trailing StartInfo
// footer, and the anchor magic. All multi-byte integers are little-endian.
// Readers slice the metadata tables straight out of the mapped image without
// copying, then decode each fixed-stride record field by field into a Go
// struct; records are not cast in place.
package container

import "errors"

// Magic is the 8-byte anchor written as the very last bytes of a packed
// binary. Its presence (and nothing after it) identifies a wrappe artifact.
const Magic = "wrappe\x00\x00"

// MagicSize is the length of Magic in bytes.
const MagicSize = 8

// FormatVersion is the container layout version this build produces and
// accepts. The runner refuses any StartInfo whose FormatVersion differs.
const FormatVersion uint32 = 1

// Size limits for fixed-stride inline fields. Names/targets/command lines
// longer than their inline budget spill into the string table.
const (
	DirNameInlineMax       = 200
	FileNameInlineMax      = 200
	SymlinkNameInlineMax   = 200
	SymlinkTargetInlineMax = 256
	UnpackDirInlineMax     = 64
	CommandSuffixInlineMax = 128
	VersionStringLen       = 8
	VersionIDLen           = 16
)

// RootIndex is the sentinel parent index identifying the synthetic forest root.
const RootIndex uint32 = 0xFFFFFFFF

// DictRawID tags the raw (untrained) zstd content dictionary wrappe embeds.
// It must match between packer's encoder and the runner's decoder, both of
// which use klauspost/compress/zstd's raw-content dictionary API rather than
// the trained-dictionary format (see DESIGN.md).
const DictRawID uint32 = 1

// UnpackTarget selects the base directory family for the unpack destination.
type UnpackTarget uint8

// Unpack target policies.
const (
	UnpackTargetTemp UnpackTarget = iota
	UnpackTargetLocal
	UnpackTargetCWD
)

// Versioning selects how concurrent/historical unpacks of distinct version_ids coexist.
type Versioning uint8

// Versioning policies.
const (
	VersioningSideBySide Versioning = iota
	VersioningReplace
	VersioningNone
)

// Verification selects the skip-decision strategy described in spec §4.6.
type Verification uint8

// Verification policies.
const (
	VerificationExistence Verification = iota
	VerificationChecksum
	VerificationNone
)

// Console selects how the runner manages a Windows console for the child.
type Console uint8

// Console policies.
const (
	ConsoleAuto Console = iota
	ConsoleAlways
	ConsoleNever
	ConsoleAttach
)

// CurrentDir selects the child process's working directory policy.
type CurrentDir uint8

// Current-directory policies.
const (
	CurrentDirInherit CurrentDir = iota
	CurrentDirUnpack
	CurrentDirRunner
	CurrentDirCommand
)

// ShowInformation selects runner output verbosity.
type ShowInformation uint8

// Show-information levels.
const (
	ShowInformationTitle ShowInformation = iota
	ShowInformationVerbose
	ShowInformationNone
)

// Subsystem records whether the packed command is a console or GUI program,
// used to pick console policy defaults under ConsoleAuto.
type Subsystem uint8

// Subsystem hints.
const (
	SubsystemConsole Subsystem = iota
	SubsystemGUI
)

// Sentinel errors for container validation. Use errors.Is in callers.
var (
	// ErrBadMagic means the trailing anchor bytes do not match Magic.
	ErrBadMagic = errors.New("container: not a packed binary (bad magic)")
	// ErrVersionMismatch means StartInfo.FormatVersion differs from FormatVersion.
	ErrVersionMismatch = errors.New("container: format version mismatch")
	// ErrTruncated means the mapped image is too short to hold a valid footer.
	ErrTruncated = errors.New("container: image too short for footer")
	// ErrOffsetOutOfRange means a stored offset/length falls outside the image.
	ErrOffsetOutOfRange = errors.New("container: offset out of range")
	// ErrOverlap means the blob region overlaps the metadata arrays.
	ErrOverlap = errors.New("container: blob region overlaps metadata")
	// ErrStringTooLong means a name/target exceeds the string-table encoding limits.
	ErrStringTooLong = errors.New("container: string exceeds encoding limit")
	// ErrInvalidEnum means an enum byte has no known meaning.
	ErrInvalidEnum = errors.New("container: invalid enum value")
)
