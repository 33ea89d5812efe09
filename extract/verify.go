package extract

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"github.com/wrappe/wrappe/container"
)

// markerFileName records the version_id of the last successful extraction
// into a destination, letting a later run skip re-extraction entirely.
const markerFileName = ".wrappe.marker"

// ShouldSkip implements the skip-decision matrix from spec.md §4.6. destRoot
// is the resolved, locked unpack directory; paths gives each FileEntry's
// already-resolved destination path (see FilePaths in materialize.go),
// aligned by index with files.
func ShouldSkip(destRoot string, info container.StartInfo, files []container.FileEntry, paths []string) (bool, error) {
	if info.Versioning == container.VersioningNone {
		return false, nil
	}

	switch info.Verification {
	case container.VerificationNone:
		return markerMatches(destRoot, info)
	case container.VerificationExistence:
		return allFilesExist(files, paths)
	case container.VerificationChecksum:
		return allHashesMatch(files, paths)
	default:
		return false, nil
	}
}

func destMarkerPath(destRoot string) string {
	return filepath.Join(destRoot, markerFileName)
}

// markerMatches reads the marker in destRoot and compares it to info's version_id.
func markerMatches(destRoot string, info container.StartInfo) (bool, error) {
	data, err := os.ReadFile(destMarkerPath(destRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return bytes.Equal(data, info.VersionID[:]), nil
}

func allFilesExist(files []container.FileEntry, paths []string) (bool, error) {
	for i, f := range files {
		st, err := os.Stat(paths[i])
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if st.IsDir() || uint64(st.Size()) != f.UncompressedSize {
			return false, nil
		}
	}
	return true, nil
}

func allHashesMatch(files []container.FileEntry, paths []string) (bool, error) {
	for i, f := range files {
		data, err := os.ReadFile(paths[i])
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, err
		}
		if xxhash.Sum64(data) != f.Hash {
			return false, nil
		}
	}
	return true, nil
}

// WriteMarker records version_id as having successfully completed
// extraction into destRoot, enabling future fast-path skips.
func WriteMarker(destRoot string, info container.StartInfo) error {
	return os.WriteFile(destMarkerPath(destRoot), info.VersionID[:], 0o644)
}

// PruneStale removes files and directories present under destRoot but
// absent from the manifest, implementing the `replace` versioning clause of
// spec.md §4.6. keep is the set of absolute paths (files, dirs, and the
// lock/marker files) that must survive the sweep. The sweep recurses into
// every kept directory, since a directory that's still in the manifest can
// itself contain stale entries nested below it.
func PruneStale(destRoot string, keep map[string]struct{}) error {
	entries, err := os.ReadDir(destRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, ent := range entries {
		full := filepath.Join(destRoot, ent.Name())
		_, kept := keep[full]
		if !kept {
			if err := os.RemoveAll(full); err != nil {
				return err
			}
			continue
		}
		if ent.IsDir() {
			if err := PruneStale(full, keep); err != nil {
				return err
			}
		}
	}
	return nil
}
