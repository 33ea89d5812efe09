package packer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wrappe/wrappe/container"
)

// buildSourceTree lays out a small tree with a subdirectory and a handful of
// files of varying compressibility (no symlinks), then returns its root and
// the path to the file that should be launched.
func buildSourceTree(t *testing.T) (root, commandPath string) {
	t.Helper()
	root = t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(root, "app.bin"), []byte("#!/bin/sh\necho hi\n"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "repeat.txt"), []byte(repeatString("abc123", 2000)), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "small.txt"), []byte("x"), 0o644))

	return root, filepath.Join(root, "app.bin")
}

func repeatString(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func writeFakeRunner(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "startpe")
	require.NoError(t, os.WriteFile(path, []byte("FAKE-RUNNER-STUB"), 0o755))
	return path
}

func TestPack_RoundTrip(t *testing.T) {
	root, commandPath := buildSourceTree(t)
	runnerPath := writeFakeRunner(t)
	outputPath := filepath.Join(t.TempDir(), "out.bin")

	opts := Options{
		RootDir:          root,
		OutputPath:       outputPath,
		CommandPath:      commandPath,
		RunnerPath:       runnerPath,
		CompressionLevel: 6,
		UnpackTarget:     container.UnpackTargetLocal,
		UnpackDirectory:  "myapp",
		Versioning:       container.VersioningSideBySide,
		Verification:     container.VerificationChecksum,
	}

	var progressed []EntryProgress
	opts.OnEntryDone = func(p EntryProgress) {
		progressed = append(progressed, p)
	}

	result, err := Pack(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 1, result.DirCount)
	require.Equal(t, 3, result.FileCount)
	require.Equal(t, 0, result.LinkCount)
	require.Len(t, progressed, 3)

	image, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	require.True(t, len(image) > len("FAKE-RUNNER-STUB"))

	located, err := container.Locate(image)
	require.NoError(t, err)
	require.EqualValues(t, 1, located.Info.DirCount)
	require.EqualValues(t, 3, located.Info.FileCount)
	require.Equal(t, "myapp", located.Info.UnpackDirectory)
	require.Equal(t, container.UnpackTargetLocal, located.Info.UnpackTarget)
	require.Equal(t, container.VerificationChecksum, located.Info.Verification)

	dirs, err := container.DecodeDirectoryTable(located.DirTable, located.StringTable)
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	require.Equal(t, "data", dirs[0].Name)
	require.Equal(t, container.RootIndex, dirs[0].Parent)

	files, err := container.DecodeFileTable(located.FileTable, located.StringTable)
	require.NoError(t, err)
	require.Len(t, files, 3)

	var sawApp bool
	for _, f := range files {
		if f.Name == "app.bin" {
			sawApp = true
			require.EqualValues(t, int(located.Info.CommandPathIndex), indexOf(files, f))
		}
	}
	require.True(t, sawApp)
}

func indexOf(files []container.FileEntry, target container.FileEntry) int {
	for i, f := range files {
		if f.Name == target.Name && f.Parent == target.Parent {
			return i
		}
	}
	return -1
}

func TestPack_RequiresCoreOptions(t *testing.T) {
	_, err := Pack(context.Background(), Options{})
	require.Error(t, err)
}

func TestPack_RejectsCommandPathOutsideTree(t *testing.T) {
	root, _ := buildSourceTree(t)
	runnerPath := writeFakeRunner(t)

	_, err := Pack(context.Background(), Options{
		RootDir:     root,
		OutputPath:  filepath.Join(t.TempDir(), "out.bin"),
		CommandPath: filepath.Join(t.TempDir(), "elsewhere.bin"),
		RunnerPath:  runnerPath,
	})
	require.Error(t, err)
}
