package manifest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"testing"
)

func mustMkdir(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("MkdirAll(%q): %v", path, err)
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}

func TestWalk_BasicTree(t *testing.T) {
	root := t.TempDir()
	mustMkdir(t, filepath.Join(root, "bin"))
	mustMkdir(t, filepath.Join(root, "lib", "plugins"))
	mustWriteFile(t, filepath.Join(root, "readme.txt"), "hello")
	mustWriteFile(t, filepath.Join(root, "bin", "app"), "binary-ish")
	mustWriteFile(t, filepath.Join(root, "lib", "plugins", "a.so"), "plugin")

	tree, err := Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(tree.Dirs) != 3 {
		t.Fatalf("len(Dirs)=%d, want 3: %+v", len(tree.Dirs), tree.Dirs)
	}
	if len(tree.Files) != 3 {
		t.Fatalf("len(Files)=%d, want 3: %+v", len(tree.Files), tree.Files)
	}

	// plugins must appear after lib (topological order).
	var libIdx, pluginsIdx = -2, -2
	for i, d := range tree.Dirs {
		switch d.Name {
		case "lib":
			libIdx = i
		case "plugins":
			pluginsIdx = i
		}
	}
	if libIdx < 0 || pluginsIdx < 0 {
		t.Fatalf("expected lib and plugins dirs, got %+v", tree.Dirs)
	}
	if pluginsIdx <= libIdx {
		t.Fatalf("plugins (%d) must come after lib (%d)", pluginsIdx, libIdx)
	}
	if tree.Dirs[pluginsIdx].Parent != libIdx {
		t.Fatalf("plugins.Parent=%d, want %d", tree.Dirs[pluginsIdx].Parent, libIdx)
	}
}

func TestWalk_SymlinkRecordedNotFollowed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink creation requires elevated privileges on windows CI")
	}

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "target.txt"), "content")
	if err := os.Symlink("target.txt", filepath.Join(root, "link.txt")); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	tree, err := Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(tree.Symlinks) != 1 {
		t.Fatalf("len(Symlinks)=%d, want 1", len(tree.Symlinks))
	}
	if tree.Symlinks[0].Target != "target.txt" {
		t.Fatalf("Target=%q, want %q", tree.Symlinks[0].Target, "target.txt")
	}
	// Only the real file should be counted among Files, not the symlink.
	if len(tree.Files) != 1 {
		t.Fatalf("len(Files)=%d, want 1", len(tree.Files))
	}
}

func TestWalk_DeterministicOrder(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "b.txt"), "b")
	mustWriteFile(t, filepath.Join(root, "a.txt"), "a")
	mustWriteFile(t, filepath.Join(root, "c.txt"), "c")

	tree, err := Walk(context.Background(), root)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(tree.Files) != 3 {
		t.Fatalf("len(Files)=%d, want 3", len(tree.Files))
	}
	for i := 1; i < len(tree.Files); i++ {
		if tree.Files[i-1].Name >= tree.Files[i].Name {
			t.Fatalf("files not sorted: %q >= %q", tree.Files[i-1].Name, tree.Files[i].Name)
		}
	}
}

func TestWalk_SkipsSpecialFilesWithWarning(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fifos are a POSIX-only concept")
	}

	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "regular.txt"), "kept")
	fifoPath := filepath.Join(root, "a.fifo")
	if err := syscall.Mkfifo(fifoPath, 0o644); err != nil {
		t.Fatalf("Mkfifo(%q): %v", fifoPath, err)
	}

	var warnings []string
	tree, err := Walk(context.Background(), root, func(msg string) {
		warnings = append(warnings, msg)
	})
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}

	if len(tree.Files) != 1 || tree.Files[0].Name != "regular.txt" {
		t.Fatalf("unexpected files: %+v", tree.Files)
	}
	if len(warnings) != 1 {
		t.Fatalf("len(warnings)=%d, want 1: %+v", len(warnings), warnings)
	}
}

func TestWalk_RootMustBeDirectory(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "notadir")
	mustWriteFile(t, file, "x")

	_, err := Walk(context.Background(), file)
	if err == nil {
		t.Fatal("expected error for non-directory root")
	}
}
