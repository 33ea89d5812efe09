package container

import (
	"errors"
	"testing"
)

func TestDirectoryEntryRoundTrip_Inline(t *testing.T) {
	var strTab []byte
	e := DirectoryEntry{Parent: RootIndex, Name: "bin", ModTimeSec: 1700000000, ModTimeNsec: 123}

	rec, err := EncodeDirectoryEntry(e, &strTab, 0)
	if err != nil {
		t.Fatalf("EncodeDirectoryEntry: %v", err)
	}
	if len(rec) != DirectoryEntryStride {
		t.Fatalf("len(rec)=%d, want %d", len(rec), DirectoryEntryStride)
	}

	got, err := DecodeDirectoryEntry(rec, strTab)
	if err != nil {
		t.Fatalf("DecodeDirectoryEntry: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestDirectoryEntryRoundTrip_Overflow(t *testing.T) {
	var strTab []byte
	longName := make([]byte, DirNameInlineMax+50)
	for i := range longName {
		longName[i] = 'a' + byte(i%26)
	}
	e := DirectoryEntry{Parent: 3, Name: string(longName), ModTimeSec: 42}

	rec, err := EncodeDirectoryEntry(e, &strTab, 0)
	if err != nil {
		t.Fatalf("EncodeDirectoryEntry: %v", err)
	}
	if len(strTab) != len(longName) {
		t.Fatalf("len(strTab)=%d, want %d", len(strTab), len(longName))
	}

	got, err := DecodeDirectoryEntry(rec, strTab)
	if err != nil {
		t.Fatalf("DecodeDirectoryEntry: %v", err)
	}
	if got.Name != e.Name {
		t.Fatalf("Name mismatch: got %q, want %q", got.Name, e.Name)
	}
}

func TestFileEntryRoundTrip(t *testing.T) {
	var strTab []byte
	e := FileEntry{
		Parent:           7,
		Name:             "payload.bin",
		ModTimeSec:       1700000001,
		ModTimeNsec:      999,
		Mode:             0o644,
		UncompressedSize: 4096,
		CompressedSize:   1024,
		Offset:           8192,
		Hash:             0xdeadbeefcafef00d,
		Flags:            FileFlagStored,
	}

	rec, err := EncodeFileEntry(e, &strTab, 0)
	if err != nil {
		t.Fatalf("EncodeFileEntry: %v", err)
	}

	got, err := DecodeFileEntry(rec, strTab)
	if err != nil {
		t.Fatalf("DecodeFileEntry: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
	if !got.Stored() {
		t.Fatalf("Stored() = false, want true for FileFlagStored entry")
	}

	e.Flags = 0
	rec, err = EncodeFileEntry(e, &strTab, 0)
	if err != nil {
		t.Fatalf("EncodeFileEntry: %v", err)
	}
	got, err = DecodeFileEntry(rec, strTab)
	if err != nil {
		t.Fatalf("DecodeFileEntry: %v", err)
	}
	if got.Stored() {
		t.Fatalf("Stored() = true, want false when Flags is 0")
	}
}

func TestSymlinkEntryRoundTrip(t *testing.T) {
	var strTab []byte
	e := SymlinkEntry{
		Parent:      0,
		Name:        "current",
		ModTimeSec:  123,
		ModTimeNsec: 456,
		Kind:        LinkKindDir,
		Target:      "releases/v3",
	}

	rec, err := EncodeSymlinkEntry(e, &strTab, 0)
	if err != nil {
		t.Fatalf("EncodeSymlinkEntry: %v", err)
	}

	got, err := DecodeSymlinkEntry(rec, strTab)
	if err != nil {
		t.Fatalf("DecodeSymlinkEntry: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, e)
	}
}

func TestEntryNameTooLong(t *testing.T) {
	var strTab []byte
	huge := make([]byte, 1<<16+1)
	_, _, err := packString(string(huge), DirNameInlineMax, make([]byte, DirNameInlineMax), &strTab, 0)
	if !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

func TestDecodeDirectoryEntry_Truncated(t *testing.T) {
	_, err := DecodeDirectoryEntry(make([]byte, DirectoryEntryStride-1), nil)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDirectoryTableRoundTrip(t *testing.T) {
	entries := []DirectoryEntry{
		{Parent: RootIndex, Name: "bin"},
		{Parent: RootIndex, Name: "lib"},
		{Parent: 1, Name: "plugins"},
	}

	var strTab []byte
	table, err := EncodeDirectoryTable(entries, &strTab)
	if err != nil {
		t.Fatalf("EncodeDirectoryTable: %v", err)
	}
	if len(table) != len(entries)*DirectoryEntryStride {
		t.Fatalf("len(table)=%d, want %d", len(table), len(entries)*DirectoryEntryStride)
	}

	got, err := DecodeDirectoryTable(table, strTab)
	if err != nil {
		t.Fatalf("DecodeDirectoryTable: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("len(got)=%d, want %d", len(got), len(entries))
	}
	for i := range entries {
		if got[i] != entries[i] {
			t.Fatalf("entry %d mismatch: got %+v, want %+v", i, got[i], entries[i])
		}
	}
}
