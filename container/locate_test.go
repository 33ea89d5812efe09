package container

import (
	"errors"
	"testing"
)

// buildImage assembles a minimal valid container tail onto a fake runner
// image prefix, mirroring the layout documented in layout.go.
func buildImage(t *testing.T, runnerSize int) []byte {
	t.Helper()

	runner := make([]byte, runnerSize)
	blob := []byte("hello world, compressed-ish payload")

	dirs := []DirectoryEntry{{Parent: RootIndex, Name: "bin"}}
	files := []FileEntry{{
		Parent:           0,
		Name:             "app",
		UncompressedSize: uint64(len(blob)),
		CompressedSize:   uint64(len(blob)),
		Offset:           uint64(len(runner)),
		Hash:             0x1122334455667788,
	}}
	var links []SymlinkEntry

	var strTab []byte
	dirTable, err := EncodeDirectoryTable(dirs, &strTab)
	if err != nil {
		t.Fatalf("EncodeDirectoryTable: %v", err)
	}
	fileTable, err := EncodeFileTable(files, &strTab)
	if err != nil {
		t.Fatalf("EncodeFileTable: %v", err)
	}
	linkTable, err := EncodeSymlinkTable(links, &strTab)
	if err != nil {
		t.Fatalf("EncodeSymlinkTable: %v", err)
	}

	dirTableOffset := uint64(len(runner) + len(blob))
	fileTableOffset := dirTableOffset + uint64(len(dirTable))
	linkTableOffset := fileTableOffset + uint64(len(fileTable))
	stringTableOffset := linkTableOffset + uint64(len(linkTable))

	info := StartInfo{
		FormatVersion:     FormatVersion,
		DirCount:          uint32(len(dirs)),
		FileCount:         uint32(len(files)),
		LinkCount:         uint32(len(links)),
		BlobStart:         uint64(len(runner)),
		DirTableOffset:    dirTableOffset,
		FileTableOffset:   fileTableOffset,
		LinkTableOffset:   linkTableOffset,
		StringTableOffset: stringTableOffset,
		StringTableLength: uint64(len(strTab)),
		UnpackTarget:      UnpackTargetTemp,
		UnpackDirectory:   "demo",
		Versioning:        VersioningSideBySide,
		Verification:      VerificationChecksum,
	}

	var footerStrTab []byte
	footer, err := info.Encode(&footerStrTab, 0)
	if err != nil {
		t.Fatalf("Encode StartInfo: %v", err)
	}
	// UnpackDirectory above fits inline, so footerStrTab stays empty; assert
	// that to catch a layout regression early.
	if len(footerStrTab) != 0 {
		t.Fatalf("unexpected footer overflow: %d bytes", len(footerStrTab))
	}

	var image []byte
	image = append(image, runner...)
	image = append(image, blob...)
	image = append(image, dirTable...)
	image = append(image, fileTable...)
	image = append(image, linkTable...)
	image = append(image, strTab...)
	image = append(image, footer...)
	image = append(image, []byte(Magic)...)

	return image
}

func TestLocate_RoundTrip(t *testing.T) {
	image := buildImage(t, 4096)

	loc, err := Locate(image)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}

	dirs, err := DecodeDirectoryTable(loc.DirTable, loc.StringTable)
	if err != nil {
		t.Fatalf("DecodeDirectoryTable: %v", err)
	}
	if len(dirs) != 1 || dirs[0].Name != "bin" {
		t.Fatalf("unexpected dirs: %+v", dirs)
	}

	files, err := DecodeFileTable(loc.FileTable, loc.StringTable)
	if err != nil {
		t.Fatalf("DecodeFileTable: %v", err)
	}
	if len(files) != 1 || files[0].Name != "app" {
		t.Fatalf("unexpected files: %+v", files)
	}

	if loc.Info.UnpackDirectory != "demo" {
		t.Fatalf("UnpackDirectory: got %q", loc.Info.UnpackDirectory)
	}
	if loc.BlobStart != 4096 {
		t.Fatalf("BlobStart: got %d, want 4096", loc.BlobStart)
	}
}

func TestLocate_BadMagic(t *testing.T) {
	image := buildImage(t, 128)
	image[len(image)-1] ^= 0xFF

	_, err := Locate(image)
	if !errors.Is(err, ErrBadMagic) {
		t.Fatalf("expected ErrBadMagic, got %v", err)
	}
}

func TestLocate_Truncated(t *testing.T) {
	_, err := Locate(make([]byte, 4))
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestLocate_VersionMismatch(t *testing.T) {
	image := buildImage(t, 128)
	footerStart := len(image) - MagicSize - StartInfoSize
	image[footerStart] = 0xFF // corrupt FormatVersion low byte

	_, err := Locate(image)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}
