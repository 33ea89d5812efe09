package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wrappe/wrappe/container"
)

// ErrSymlinkEscape means a symlink's resolved target would fall outside the
// unpack root, which spec.md §4.7 requires refusing.
var ErrSymlinkEscape = errors.New("extract: symlink target escapes unpack root")

// ErrReservedName means an entry name collides with a reserved DOS/Windows
// device name, which would silently misbehave if materialized verbatim.
var ErrReservedName = errors.New("extract: reserved device name in packed tree")

// reservedDOSNames mirrors the teacher's device-name guard: names that are
// magic devices on Windows regardless of extension or case.
var reservedDOSNames = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// maxPathSegmentLen bounds one path segment, matching common filesystem limits.
const maxPathSegmentLen = 240

func isReservedDeviceName(name string) bool {
	base := strings.ToLower(name)
	if dot := strings.IndexByte(base, '.'); dot >= 0 {
		base = base[:dot]
	}
	_, ok := reservedDOSNames[base]
	return ok
}

func checkSegment(name string) error {
	if isReservedDeviceName(name) {
		return fmt.Errorf("%w: %q", ErrReservedName, name)
	}
	if len(name) > maxPathSegmentLen {
		return fmt.Errorf("extract: path segment %q exceeds %d bytes", name, maxPathSegmentLen)
	}
	return nil
}

// DirPaths resolves every DirectoryEntry to its absolute destination path by
// chasing the parent-index chain. dirs must be in topological (parent-
// before-child) order, as manifest.Walk and the container tables guarantee.
// Index i of the result corresponds to dirs[i]; container.RootIndex maps to destRoot.
func DirPaths(dirs []container.DirectoryEntry, destRoot string) ([]string, error) {
	paths := make([]string, len(dirs))
	for i, d := range dirs {
		if err := checkSegment(d.Name); err != nil {
			return nil, err
		}
		parent := destRoot
		if d.Parent != container.RootIndex {
			if int(d.Parent) >= i {
				return nil, fmt.Errorf("extract: directory %d has forward parent reference %d", i, d.Parent)
			}
			parent = paths[d.Parent]
		}
		paths[i] = filepath.Join(parent, d.Name)
	}
	return paths, nil
}

// resolveParentPath returns destRoot (for container.RootIndex) or dirPaths[parent].
func resolveParentPath(parent uint32, dirPaths []string, destRoot string) (string, error) {
	if parent == container.RootIndex {
		return destRoot, nil
	}
	if int(parent) >= len(dirPaths) {
		return "", fmt.Errorf("extract: parent index %d out of range", parent)
	}
	return dirPaths[parent], nil
}

// FilePaths resolves every FileEntry to its absolute destination path.
func FilePaths(files []container.FileEntry, dirPaths []string, destRoot string) ([]string, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		if err := checkSegment(f.Name); err != nil {
			return nil, err
		}
		parent, err := resolveParentPath(f.Parent, dirPaths, destRoot)
		if err != nil {
			return nil, err
		}
		paths[i] = filepath.Join(parent, f.Name)
	}
	return paths, nil
}

// MaterializeDirs creates every directory in dirPaths (already resolved by
// DirPaths) and sets its mtime last, per spec.md §4.7. Pre-existing
// directories are not an error (the `replace` versioning case).
func MaterializeDirs(dirs []container.DirectoryEntry, dirPaths []string) error {
	for i := range dirs {
		if err := os.MkdirAll(dirPaths[i], 0o755); err != nil {
			return fmt.Errorf("extract: create dir %s: %w", dirPaths[i], err)
		}
	}
	for i, d := range dirs {
		mtime := time.Unix(d.ModTimeSec, int64(d.ModTimeNsec))
		if err := os.Chtimes(dirPaths[i], mtime, mtime); err != nil {
			return fmt.Errorf("extract: set mtime on %s: %w", dirPaths[i], err)
		}
	}
	return nil
}

// MaterializeSymlinks creates every SymlinkEntry under its resolved link
// site, refusing any whose resolved target would escape destRoot.
func MaterializeSymlinks(links []container.SymlinkEntry, dirPaths []string, destRoot string, replace bool) error {
	absRoot, err := filepath.Abs(destRoot)
	if err != nil {
		return fmt.Errorf("extract: resolve unpack root: %w", err)
	}

	for _, l := range links {
		if err := checkSegment(l.Name); err != nil {
			return err
		}
		parent, err := resolveParentPath(l.Parent, dirPaths, destRoot)
		if err != nil {
			return err
		}
		linkPath := filepath.Join(parent, l.Name)

		if err := checkSymlinkEscape(linkPath, l.Target, absRoot); err != nil {
			return err
		}

		if _, statErr := os.Lstat(linkPath); statErr == nil {
			if !replace {
				return fmt.Errorf("extract: %s already exists and versioning is not replace", linkPath)
			}
			if err := os.RemoveAll(linkPath); err != nil {
				return fmt.Errorf("extract: remove stale entry %s: %w", linkPath, err)
			}
		}

		target := filepath.FromSlash(l.Target)
		if err := os.Symlink(target, linkPath); err != nil {
			return fmt.Errorf("extract: create symlink %s -> %s: %w", linkPath, l.Target, err)
		}
	}
	return nil
}

// checkSymlinkEscape refuses any symlink whose target, resolved relative to
// its own link site, would fall outside absRoot. Absolute targets the user
// explicitly packed (e.g. system libraries) are allowed through verbatim,
// matching spec.md §4.7's "not an absolute system path the user explicitly
// packed" carve-out.
func checkSymlinkEscape(linkPath, target, absRoot string) error {
	if filepath.IsAbs(filepath.FromSlash(target)) {
		return nil
	}

	resolved := filepath.Join(filepath.Dir(linkPath), filepath.FromSlash(target))
	resolved, err := filepath.Abs(resolved)
	if err != nil {
		return fmt.Errorf("extract: resolve symlink target: %w", err)
	}

	rel, err := filepath.Rel(absRoot, resolved)
	if err != nil {
		return fmt.Errorf("extract: resolve symlink target: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s -> %s", ErrSymlinkEscape, linkPath, target)
	}
	return nil
}
