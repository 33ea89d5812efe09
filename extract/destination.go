package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/wrappe/wrappe/container"
)

// lockFileName is the per-destination lock, held for the whole extraction
// phase and released before the child is spawned (spec.md §4.5).
const lockFileName = ".wrappe.lock"

// ResolveDestination computes the unpack directory for info, per spec.md
// §3.2 and §4.5: {unpack_target}/{unpack_directory}[/{version_string}].
// launchDir is the runner's cwd at startup, used when UnpackTarget is cwd.
func ResolveDestination(info container.StartInfo, launchDir string) (string, error) {
	base, err := unpackBase(info.UnpackTarget, launchDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(base, info.UnpackDirectory)
	if info.Versioning == container.VersioningSideBySide {
		dir = filepath.Join(dir, versionString(info))
	}
	return dir, nil
}

// versionString trims trailing NULs from the fixed-size VersionString array.
func versionString(info container.StartInfo) string {
	raw := info.VersionString[:]
	n := len(raw)
	for n > 0 && raw[n-1] == 0 {
		n--
	}
	return string(raw[:n])
}

func unpackBase(target container.UnpackTarget, launchDir string) (string, error) {
	switch target {
	case container.UnpackTargetTemp:
		return os.TempDir(), nil
	case container.UnpackTargetCWD:
		if launchDir != "" {
			return launchDir, nil
		}
		return os.Getwd()
	case container.UnpackTargetLocal:
		return localAppDataDir()
	default:
		return "", fmt.Errorf("extract: unknown unpack target %d", target)
	}
}

// localAppDataDir returns a per-user application data directory, following
// platform convention (os.UserCacheDir on POSIX lands under ~/.cache, which
// is the closest stdlib equivalent of Windows' LOCALAPPDATA).
func localAppDataDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("extract: resolve local app data dir: %w", err)
	}
	return dir, nil
}

// EnsureDir creates dir and all missing ancestors with standard permissions.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("extract: create unpack dir %s: %w", dir, err)
	}
	return nil
}

// AcquireLock opens and exclusively, blockingly locks the per-destination
// lock file, serializing concurrent runners targeting the same directory.
// The caller must Unlock (and typically Close) once extraction completes.
func AcquireLock(dir string) (*flock.Flock, error) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("extract: acquire lock in %s: %w", dir, err)
	}
	return lock, nil
}

// TryAcquireLock attempts a non-blocking lock, used by the cleanup step to
// detect whether another runner instance is still using dir.
func TryAcquireLock(dir string) (*flock.Flock, bool, error) {
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("extract: try-lock %s: %w", dir, err)
	}
	return lock, ok, nil
}
