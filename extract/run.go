package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/wrappe/wrappe/container"
)

// Result reports what Run actually did, for a caller that wants to print a
// summary. Neither Run nor cmd/startpe acts on StartInfo.ShowInformation.
type Result struct {
	Destination string
	Skipped     bool
	ExitCode    int
}

// Run drives the full self-extraction lifecycle: locate the appended
// container in the running binary, resolve and lock the destination, skip
// re-extraction when the skip-decision matrix says the prior unpack is
// still good, otherwise materialize directories/symlinks/files, then spawn
// the packed command and wait for it. It is the single entrypoint
// cmd/startpe calls.
func Run(ctx context.Context, extraArgs []string) (Result, error) {
	img, err := OpenSelf()
	if err != nil {
		return Result{}, err
	}
	defer img.Close()

	info := img.Located.Info

	launchDir, err := os.Getwd()
	if err != nil {
		return Result{}, fmt.Errorf("extract: resolve launch dir: %w", err)
	}

	selfPath, err := os.Executable()
	if err != nil {
		return Result{}, fmt.Errorf("extract: resolve runner path: %w", err)
	}

	destRoot, err := ResolveDestination(info, launchDir)
	if err != nil {
		return Result{}, err
	}
	if err := EnsureDir(destRoot); err != nil {
		return Result{}, err
	}

	dirs, err := container.DecodeDirectoryTable(img.Located.DirTable, img.Located.StringTable)
	if err != nil {
		return Result{}, fmt.Errorf("extract: decode directory table: %w", err)
	}
	files, err := container.DecodeFileTable(img.Located.FileTable, img.Located.StringTable)
	if err != nil {
		return Result{}, fmt.Errorf("extract: decode file table: %w", err)
	}
	links, err := container.DecodeSymlinkTable(img.Located.LinkTable, img.Located.StringTable)
	if err != nil {
		return Result{}, fmt.Errorf("extract: decode symlink table: %w", err)
	}

	dirPaths, err := DirPaths(dirs, destRoot)
	if err != nil {
		return Result{}, err
	}
	filePaths, err := FilePaths(files, dirPaths, destRoot)
	if err != nil {
		return Result{}, err
	}

	commandPath, err := commandPathFromIndex(info.CommandPathIndex, files, filePaths)
	if err != nil {
		return Result{}, err
	}

	already, err := AlreadyRunning(SpawnOptions{Info: info, CommandPath: commandPath})
	if err != nil {
		fmt.Fprintf(os.Stderr, "wrappe: once-policy check failed: %v\n", err)
	}
	if already {
		return Result{Destination: destRoot, Skipped: true}, nil
	}

	lock, err := AcquireLock(destRoot)
	if err != nil {
		return Result{}, err
	}

	skip, err := ShouldSkip(destRoot, info, files, filePaths)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wrappe: skip check failed, re-extracting: %v\n", err)
		skip = false
	}

	if !skip {
		if err := MaterializeDirs(dirs, dirPaths); err != nil {
			_ = lock.Unlock()
			return Result{}, err
		}
		if err := MaterializeSymlinks(links, dirPaths, destRoot, info.Versioning == container.VersioningReplace); err != nil {
			_ = lock.Unlock()
			return Result{}, err
		}
		if err := ExtractFiles(ctx, img.mapping, files, filePaths, img.Located.Dict, nil); err != nil {
			_ = lock.Unlock()
			return Result{}, err
		}
		if err := WriteMarker(destRoot, info); err != nil {
			fmt.Fprintf(os.Stderr, "wrappe: write marker failed: %v\n", err)
		}
		if info.Versioning == container.VersioningReplace {
			keep := map[string]struct{}{
				destMarkerPath(destRoot):              {},
				filepath.Join(destRoot, lockFileName): {},
			}
			for _, p := range dirPaths {
				keep[p] = struct{}{}
			}
			for _, p := range filePaths {
				keep[p] = struct{}{}
			}
			for _, l := range links {
				if parent, err := resolveParentPath(l.Parent, dirPaths, destRoot); err == nil {
					keep[filepath.Join(parent, l.Name)] = struct{}{}
				}
			}
			if err := PruneStale(destRoot, keep); err != nil {
				fmt.Fprintf(os.Stderr, "wrappe: prune stale entries failed: %v\n", err)
			}
		}
	}

	if err := lock.Unlock(); err != nil {
		fmt.Fprintf(os.Stderr, "wrappe: release lock failed: %v\n", err)
	}

	cmd, err := Spawn(SpawnOptions{
		Info:        info,
		CommandPath: commandPath,
		UnpackDir:   destRoot,
		LaunchDir:   launchDir,
		RunnerPath:  selfPath,
		ExtraArgs:   extraArgs,
	})
	if err != nil {
		return Result{Destination: destRoot}, err
	}

	waitErr := cmd.Wait()
	exitCode := exitCodeOf(waitErr)

	if info.Cleanup {
		CleanupIfIdle(destRoot)
	}

	return Result{Destination: destRoot, ExitCode: exitCode}, nil
}

func commandPathFromIndex(idx uint32, files []container.FileEntry, paths []string) (string, error) {
	if int(idx) >= len(files) {
		return "", fmt.Errorf("extract: command path index %d out of range", idx)
	}
	return paths[idx], nil
}

// exitCodeOf extracts the child's exit code from cmd.Wait's error, treating
// an unstarted/killed process as exit code 1.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
