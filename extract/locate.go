// Package extract implements the runner side of the container format: it
// locates the payload appended to its own executable, resolves and locks a
// destination directory, decides whether a previous unpack can be reused,
// materializes the tree, and spawns the packed command. It deliberately
// stays dependency-light (no logging framework, minimal third-party
// surface) the same way the teacher's core package carries no logging
// dependency anywhere.
package extract

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"

	"github.com/wrappe/wrappe/container"
)

// ErrNotPacked means the running executable has no container payload appended.
var ErrNotPacked = errors.New("extract: not a packed binary")

// Image is a memory-mapped view of the running executable together with its
// decoded container metadata. Close unmaps the view; it must outlive every
// use of Located's byte slices, which alias the mapping directly.
type Image struct {
	mapping mmap.MMap
	file    *os.File

	Located container.Located
}

// OpenSelf memory-maps the currently running executable and locates its
// container payload, mirroring the teacher's read-only mmap-backed Reader
// but sourced from the process's own image rather than an opened archive.
func OpenSelf() (*Image, error) {
	selfPath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("extract: locate self: %w", err)
	}

	f, err := os.Open(selfPath)
	if err != nil {
		return nil, fmt.Errorf("extract: open self %s: %w", selfPath, err)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("extract: mmap self %s: %w", selfPath, err)
	}

	located, err := container.Locate(m)
	if err != nil {
		_ = m.Unmap()
		_ = f.Close()
		if errors.Is(err, container.ErrBadMagic) {
			return nil, ErrNotPacked
		}
		return nil, fmt.Errorf("extract: locate payload: %w", err)
	}

	return &Image{mapping: m, file: f, Located: located}, nil
}

// Close unmaps and closes the self-image. Subsequent use of Located's byte
// slices is undefined after Close.
func (img *Image) Close() error {
	var first error
	if err := img.mapping.Unmap(); err != nil {
		first = err
	}
	if err := img.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
