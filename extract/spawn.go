package extract

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wrappe/wrappe/container"
	"github.com/wrappe/wrappe/extract/internal/procfind"
)

// SpawnOptions carries the pieces of the resolved environment Spawn needs
// beyond what StartInfo already encodes.
type SpawnOptions struct {
	Info        container.StartInfo
	CommandPath string // absolute path to the packed command, via command-path index
	UnpackDir   string
	LaunchDir   string // runner's cwd at startup
	RunnerPath  string // absolute path to the running runner binary
	ExtraArgs   []string
}

// AlreadyRunning implements the `once` policy: if a process with the same
// canonicalized executable path as CommandPath is already running, the
// caller should skip extraction/spawn entirely and exit 0.
func AlreadyRunning(opts SpawnOptions) (bool, error) {
	if !opts.Info.Once {
		return false, nil
	}
	target, err := filepath.Abs(opts.CommandPath)
	if err != nil {
		return false, err
	}
	pid, err := procfind.FindByExecutable(target)
	if err != nil {
		return false, err
	}
	return pid != 0, nil
}

// Spawn launches the packed command per spec.md §4.9: command line is the
// command path plus the packed argv suffix plus the runner's own argv, env
// inherits the parent's with WRAPPE_UNPACK_DIR/WRAPPE_LAUNCH_DIR injected,
// and the working directory follows the current-dir policy.
func Spawn(opts SpawnOptions) (*exec.Cmd, error) {
	args := buildArgs(opts.Info.CommandLineSuffix, opts.ExtraArgs)

	cmd := exec.Command(opts.CommandPath, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	cwd, err := workingDir(opts)
	if err != nil {
		return nil, err
	}
	cmd.Dir = cwd

	cmd.Env = append(os.Environ(),
		"WRAPPE_UNPACK_DIR="+opts.UnpackDir,
		"WRAPPE_LAUNCH_DIR="+opts.LaunchDir,
	)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("extract: spawn %s: %w", opts.CommandPath, err)
	}
	return cmd, nil
}

// buildArgs splits the packed command-line suffix (space-joined at pack
// time by cmd/wrappe) and appends the runner's own passed-through argv.
func buildArgs(suffix string, extra []string) []string {
	var args []string
	if suffix != "" {
		args = append(args, strings.Fields(suffix)...)
	}
	return append(args, extra...)
}

func workingDir(opts SpawnOptions) (string, error) {
	switch opts.Info.CurrentDir {
	case container.CurrentDirUnpack:
		return opts.UnpackDir, nil
	case container.CurrentDirRunner:
		return filepath.Dir(opts.RunnerPath), nil
	case container.CurrentDirCommand:
		return filepath.Dir(opts.CommandPath), nil
	case container.CurrentDirInherit:
		return "", nil
	default:
		return "", fmt.Errorf("extract: unknown current-dir policy %d", opts.Info.CurrentDir)
	}
}

// CleanupIfIdle removes the unpack directory tree if no other runner
// instance currently holds its lock, per spec.md §4.9's best-effort,
// non-fatal cleanup.
func CleanupIfIdle(unpackDir string) {
	lock, acquired, err := TryAcquireLock(unpackDir)
	if err != nil || !acquired {
		return // another instance is using this directory; skip cleanup
	}
	defer func() { _ = lock.Unlock() }()
	_ = os.RemoveAll(unpackDir)
}
