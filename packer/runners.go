package packer

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
)

//go:embed runners/*
var runnerAssets embed.FS

// runnerRegistry maps a target triple (e.g. "linux-amd64",
// "windows-amd64") to the bytes of a prebuilt startpe runner image. A real
// cross-compilation pipeline would populate runnerAssets at build time with
// one stub per supported target (out of scope here, see SPEC_FULL.md §1).
// This build embeds no runner images, so in practice only "native"
// resolves: a startpe binary found next to the running packer via
// os.Executable(), or the explicit path the registry was built with.
type runnerRegistry struct {
	nativePath string
}

// newRunnerRegistry builds a registry rooted at the given native runner path
// (normally the startpe binary shipped alongside the packer, or the file
// given as Options.RunnerPath).
func newRunnerRegistry(nativeRunnerPath string) (*runnerRegistry, error) {
	if nativeRunnerPath == "" {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("packer: locate native runner: %w", err)
		}
		nativeRunnerPath = filepath.Join(filepath.Dir(self), defaultRunnerName())
	}
	return &runnerRegistry{nativePath: nativeRunnerPath}, nil
}

// defaultRunnerName is the conventional startpe binary name alongside the
// packer binary for local/dev builds.
func defaultRunnerName() string {
	if os.PathSeparator == '\\' {
		return "startpe.exe"
	}
	return "startpe"
}

// Resolve returns the runner image bytes for target. "native" (or "") reads
// the native runner file; any other target is read from runners/<target> in
// the embedded assets, and fails with a descriptive error when no such file
// is embedded, rather than silently falling back to the wrong architecture.
func (r *runnerRegistry) Resolve(target string) ([]byte, error) {
	if target != "" && target != "native" {
		data, err := runnerAssets.ReadFile("runners/" + target)
		if err != nil {
			return nil, fmt.Errorf("packer: no embedded runner for target %q (cross-compilation pipeline out of scope; only \"native\" resolves in this build)", target)
		}
		return data, nil
	}

	data, err := os.ReadFile(r.nativePath)
	if err != nil {
		return nil, fmt.Errorf("packer: read native runner %s: %w", r.nativePath, err)
	}
	return data, nil
}
