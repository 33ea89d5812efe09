// Package manifest walks a source directory tree into the deterministic,
// parent-indexed forest that the container package's fixed-stride tables
// expect: directories before their children, entries within a directory in
// lexicographic order, symlinks recorded (never followed).
package manifest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/wrappe/wrappe/container"
)

// Dir is one directory node in the walked forest, parent-indexed into Tree.Dirs.
type Dir struct {
	Parent int // index into Tree.Dirs, or -1 for the root
	Name   string
	Path   string // absolute source path
	ModSec int64
	ModNs  uint32
}

// File is one regular file, with its content accessible via Open.
type File struct {
	Parent int // index into Tree.Dirs, or -1 for the root
	Name   string
	Path   string // absolute source path
	Mode   uint32
	Size   int64
	ModSec int64
	ModNs  uint32
}

// Symlink is one symlink, recorded with its raw (unresolved) target.
type Symlink struct {
	Parent int // index into Tree.Dirs, or -1 for the root
	Name   string
	Target string
	Kind   container.LinkKind
	ModSec int64
	ModNs  uint32
}

// Tree is a walked source tree, ready for container-table encoding by the
// packer's assembly stage. Dirs is in topological (parent-before-child)
// order; Files and Symlinks are sorted by (parent, name).
type Tree struct {
	Dirs     []Dir
	Files    []File
	Symlinks []Symlink
}

// dirResult is the per-directory output of a single walk worker.
type dirResult struct {
	path     string
	parent   int
	children []string // subdirectory absolute paths discovered here, for further fan-out
	files    []File
	symlinks []Symlink
}

// Walk walks root and returns the deterministic forest describing it. Walking
// fans out across subdirectories with an errgroup, one goroutine per
// directory of the current breadth-first level (no concurrency limit is set),
// mirroring the
// concurrent-tree-walk pattern common across the retrieval pack; merging the
// per-directory results back into one deterministic order happens after all
// workers complete.
//
// onWarning, if given, is called once per skipped special file (devices,
// sockets, fifos) per spec.md §4.1: those are skipped with a warning rather
// than aborting the walk.
func Walk(ctx context.Context, root string, onWarning ...func(string)) (*Tree, error) {
	warn := func(string) {}
	if len(onWarning) > 0 && onWarning[0] != nil {
		warn = onWarning[0]
	}

	root = filepath.Clean(root)
	info, err := os.Lstat(root)
	if err != nil {
		return nil, fmt.Errorf("manifest: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("manifest: root %q is not a directory", root)
	}

	tree := &Tree{}
	// dirIndex maps an absolute directory path to its assigned index in
	// tree.Dirs, populated strictly in parent-before-child order as the
	// breadth-first frontier advances.
	dirIndex := map[string]int{root: -1}

	// frontier holds (path, assignedParentIndex) pairs whose immediate
	// children still need to be read. Processing happens level by level so
	// that every directory's index is known before its children are queued,
	// preserving the topological invariant the container format requires.
	type queued struct {
		path   string
		parent int
	}
	frontier := []queued{{path: root, parent: -1}}

	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		results := make([]dirResult, len(frontier))

		for i, q := range frontier {
			i, q := i, q
			g.Go(func() error {
				res, err := readOneDir(gctx, q.path, q.parent, warn)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		var next []queued
		for _, res := range results {
			parentIdx := res.parent
			if res.path != root {
				name := filepath.Base(res.path)
				info, err := os.Lstat(res.path)
				if err != nil {
					return nil, fmt.Errorf("manifest: stat %q: %w", res.path, err)
				}
				sec, ns := modTime(info)
				tree.Dirs = append(tree.Dirs, Dir{
					Parent: res.parent,
					Name:   name,
					Path:   res.path,
					ModSec: sec,
					ModNs:  ns,
				})
				parentIdx = len(tree.Dirs) - 1
				dirIndex[res.path] = parentIdx
			}

			for i := range res.files {
				res.files[i].Parent = parentIdx
			}
			for i := range res.symlinks {
				res.symlinks[i].Parent = parentIdx
			}
			tree.Files = append(tree.Files, res.files...)
			tree.Symlinks = append(tree.Symlinks, res.symlinks...)

			for _, child := range res.children {
				next = append(next, queued{path: child, parent: parentIdx})
			}
		}

		sort.Slice(next, func(i, j int) bool { return next[i].path < next[j].path })
		frontier = next
	}

	sort.SliceStable(tree.Files, func(i, j int) bool {
		if tree.Files[i].Parent != tree.Files[j].Parent {
			return tree.Files[i].Parent < tree.Files[j].Parent
		}
		return tree.Files[i].Name < tree.Files[j].Name
	})
	sort.SliceStable(tree.Symlinks, func(i, j int) bool {
		if tree.Symlinks[i].Parent != tree.Symlinks[j].Parent {
			return tree.Symlinks[i].Parent < tree.Symlinks[j].Parent
		}
		return tree.Symlinks[i].Name < tree.Symlinks[j].Name
	})

	return tree, nil
}

// readOneDir reads the immediate children of dir, classifying each into a
// subdirectory (returned for further fan-out), a file, or a symlink.
// Anything else (sockets, devices, named pipes) is skipped with a call to
// warn rather than aborting the walk.
func readOneDir(ctx context.Context, dir string, parent int, warn func(string)) (dirResult, error) {
	if err := ctx.Err(); err != nil {
		return dirResult{}, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return dirResult{}, fmt.Errorf("manifest: read dir %q: %w", dir, err)
	}

	res := dirResult{path: dir, parent: parent}

	for _, ent := range entries {
		full := filepath.Join(dir, ent.Name())

		info, err := os.Lstat(full)
		if err != nil {
			return dirResult{}, fmt.Errorf("manifest: lstat %q: %w", full, err)
		}

		sec, ns := modTime(info)

		switch {
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(full)
			if err != nil {
				return dirResult{}, fmt.Errorf("manifest: readlink %q: %w", full, err)
			}
			kind := container.LinkKindFile
			if targetInfo, statErr := os.Stat(full); statErr == nil && targetInfo.IsDir() {
				kind = container.LinkKindDir
			}
			res.symlinks = append(res.symlinks, Symlink{
				Name:   ent.Name(),
				Target: target,
				Kind:   kind,
				ModSec: sec,
				ModNs:  ns,
			})

		case info.IsDir():
			res.children = append(res.children, full)

		case info.Mode().IsRegular():
			res.files = append(res.files, File{
				Name:   ent.Name(),
				Path:   full,
				Mode:   uint32(info.Mode().Perm()),
				Size:   info.Size(),
				ModSec: sec,
				ModNs:  ns,
			})

		default:
			warn(fmt.Sprintf("manifest: skipping special file %q (mode %s)", full, info.Mode()))
		}
	}

	return res, nil
}

func modTime(info os.FileInfo) (sec int64, nsec uint32) {
	t := info.ModTime()
	return t.Unix(), uint32(t.Nanosecond())
}
