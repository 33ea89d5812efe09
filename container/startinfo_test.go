package container

import (
	"errors"
	"testing"
)

func sampleStartInfo() StartInfo {
	var s StartInfo
	s.FormatVersion = FormatVersion
	s.DirCount = 2
	s.FileCount = 5
	s.LinkCount = 1
	s.BlobStart = 4096
	s.DictOffset = 0
	s.DictLength = 0
	s.DirTableOffset = 2_000_000
	s.FileTableOffset = 2_001_000
	s.LinkTableOffset = 2_002_000
	copy(s.VersionID[:], []byte("0123456789abcdef"))
	copy(s.VersionString[:], []byte("v0000001"))
	s.TotalUncompressedSize = 123456
	s.UnpackTarget = UnpackTargetLocal
	s.UnpackDirectory = "myapp"
	s.Versioning = VersioningSideBySide
	s.Verification = VerificationChecksum
	s.Console = ConsoleAuto
	s.CurrentDir = CurrentDirUnpack
	s.Cleanup = true
	s.Once = false
	s.ShowInformation = ShowInformationTitle
	s.SubsystemHint = SubsystemConsole
	s.CommandPathIndex = 3
	s.CommandLineSuffix = "--flag value"
	return s
}

func TestStartInfoRoundTrip(t *testing.T) {
	s := sampleStartInfo()

	var strTab []byte
	buf, err := s.Encode(&strTab, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(buf) != StartInfoSize {
		t.Fatalf("len(buf)=%d, want %d", len(buf), StartInfoSize)
	}

	got, err := DecodeStartInfo(buf, strTab)
	if err != nil {
		t.Fatalf("DecodeStartInfo: %v", err)
	}

	if got.UnpackDirectory != s.UnpackDirectory {
		t.Fatalf("UnpackDirectory: got %q, want %q", got.UnpackDirectory, s.UnpackDirectory)
	}
	if got.CommandLineSuffix != s.CommandLineSuffix {
		t.Fatalf("CommandLineSuffix: got %q, want %q", got.CommandLineSuffix, s.CommandLineSuffix)
	}
	if got.Cleanup != s.Cleanup || got.Once != s.Once {
		t.Fatalf("Cleanup/Once mismatch: got %v/%v, want %v/%v", got.Cleanup, got.Once, s.Cleanup, s.Once)
	}
	if got.VersionID != s.VersionID || got.VersionString != s.VersionString {
		t.Fatalf("version identifiers mismatch")
	}
	if got.DirCount != s.DirCount || got.FileCount != s.FileCount || got.LinkCount != s.LinkCount {
		t.Fatalf("counts mismatch: got %+v", got)
	}
}

func TestStartInfoRoundTrip_OverflowUnpackDirectory(t *testing.T) {
	s := sampleStartInfo()
	long := make([]byte, UnpackDirInlineMax+10)
	for i := range long {
		long[i] = 'x'
	}
	s.UnpackDirectory = string(long)

	var strTab []byte
	buf, err := s.Encode(&strTab, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := DecodeStartInfo(buf, strTab)
	if err != nil {
		t.Fatalf("DecodeStartInfo: %v", err)
	}
	if got.UnpackDirectory != s.UnpackDirectory {
		t.Fatalf("UnpackDirectory mismatch after overflow round trip")
	}
}

func TestDecodeStartInfo_VersionMismatch(t *testing.T) {
	s := sampleStartInfo()
	s.FormatVersion = FormatVersion + 1

	var strTab []byte
	buf, err := s.Encode(&strTab, 0)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	_, err = DecodeStartInfo(buf, strTab)
	if !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestDecodeStartInfo_Truncated(t *testing.T) {
	_, err := DecodeStartInfo(make([]byte, StartInfoSize-1), nil)
	if !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}
