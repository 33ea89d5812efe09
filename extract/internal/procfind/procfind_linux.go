//go:build linux

// Package procfind implements the platform-specific half of the `once`
// policy (spec.md §4.9): finding a running process whose executable matches
// a canonicalized absolute path.
package procfind

import (
	"os"
	"path/filepath"
	"strconv"
)

// FindByExecutable returns the pid of a running process (other than the
// caller) whose executable resolves to target, or 0 if none is found.
func FindByExecutable(target string) (int, error) {
	target = filepath.Clean(target)
	self := os.Getpid()

	entries, err := os.ReadDir("/proc")
	if err != nil {
		return 0, err
	}

	for _, ent := range entries {
		pid, err := strconv.Atoi(ent.Name())
		if err != nil || pid == self {
			continue
		}

		exe, err := os.Readlink(filepath.Join("/proc", ent.Name(), "exe"))
		if err != nil {
			continue // process exited, or we lack permission; not a match
		}

		if filepath.Clean(exe) == target {
			return pid, nil
		}
	}

	return 0, nil
}
