package packer

import (
	"context"
	"encoding/base32"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wrappe/wrappe/container"
	"github.com/wrappe/wrappe/manifest"
)

// Pack walks opts.RootDir, compresses its content, and writes a
// self-extracting binary to opts.OutputPath built from the selected runner
// image plus the container payload described in container/startinfo.go.
//
// The write order follows the container layout exactly: runner image, then
// compressed blobs (written by a GOMAXPROCS-sized worker pool as each
// file finishes compressing, via concurrent os.File.WriteAt calls into
// disjoint regions), then the optional dictionary, then the metadata
// tables, then the footer and magic. Unlike the teacher's single
// bufio.Writer + seek-back-and-patch approach (suited to PBO's small,
// numerous, sequentially-written entries), payload offsets here are handed
// out from a mutex-guarded cursor as each worker finishes, and each
// worker then writes its own section independently — parallel writes
// into the output file (which grows as regions are written), not a
// backfilled placeholder table, since
// wrappe's metadata tables live entirely after the blob region and never
// need patching once the offsets are known.
func Pack(ctx context.Context, opts Options) (*Result, error) {
	log := opts.logger()
	started := time.Now()

	if opts.RootDir == "" || opts.OutputPath == "" || opts.CommandPath == "" {
		return nil, fmt.Errorf("packer: RootDir, OutputPath, and CommandPath are required")
	}

	tree, err := manifest.Walk(ctx, opts.RootDir, func(msg string) {
		log.Warn(msg)
	})
	if err != nil {
		return nil, err
	}
	log.Infow("walked source tree", "dirs", len(tree.Dirs), "files", len(tree.Files), "symlinks", len(tree.Symlinks))

	commandIndex, err := findCommandIndex(tree, opts.CommandPath)
	if err != nil {
		return nil, err
	}

	registry, err := newRunnerRegistry(opts.RunnerPath)
	if err != nil {
		return nil, err
	}
	runnerImage, err := registry.Resolve(opts.RunnerTarget)
	if err != nil {
		return nil, err
	}

	subsystem := container.SubsystemConsole
	pe := newPECollaborator(log)
	if detected, err := pe.DetectSubsystem(opts.CommandPath); err != nil {
		log.Warnw("subsystem detection failed, defaulting to console", "error", err)
	} else {
		subsystem = detected
	}
	if err := pe.TransferResources(opts.CommandPath, opts.RunnerPath); err != nil {
		log.Warnw("resource transfer failed", "error", err)
	}

	out, err := os.OpenFile(opts.OutputPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return nil, fmt.Errorf("packer: create output: %w", err)
	}
	defer func() { _ = out.Close() }()

	if _, err := out.Write(runnerImage); err != nil {
		return nil, fmt.Errorf("packer: write runner image: %w", err)
	}
	blobStart := uint64(len(runnerImage))

	var dict []byte
	if opts.BuildDictionary {
		paths := make([]string, len(tree.Files))
		for i, f := range tree.Files {
			paths[i] = f.Path
		}
		dict, err = buildDictionary(paths)
		if err != nil {
			return nil, err
		}
		if dict != nil {
			log.Infow("built shared dictionary", "bytes", len(dict))
		}
	}

	pool := newEncoderPool(zstdLevelFromInt(opts.CompressionLevel), dict)

	fileEntries := make([]container.FileEntry, len(tree.Files))
	var totalUncompressed uint64

	cursor := blobStart
	var cursorMu sync.Mutex

	g, gctx := errgroupWithLimit(ctx, workerCount())
	for i := range tree.Files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			payload, err := compressFile(tree.Files[i].Path, pool)
			if err != nil {
				return err
			}

			cursorMu.Lock()
			offset := cursor
			cursor += uint64(len(payload.Data))
			cursorMu.Unlock()

			if _, err := out.WriteAt(payload.Data, int64(offset)); err != nil {
				return fmt.Errorf("packer: write blob for %s: %w", tree.Files[i].Path, err)
			}

			compressedSize := uint64(len(payload.Data))
			var flags uint8
			if !payload.Compressed {
				flags = container.FileFlagStored
			}

			fileEntries[i] = container.FileEntry{
				Parent:           parentIndex(tree.Files[i].Parent),
				Name:             tree.Files[i].Name,
				ModTimeSec:       tree.Files[i].ModSec,
				ModTimeNsec:      tree.Files[i].ModNs,
				Mode:             tree.Files[i].Mode,
				UncompressedSize: payload.UncompressedSize,
				CompressedSize:   compressedSize,
				Offset:           offset,
				Hash:             payload.Hash,
				Flags:            flags,
			}

			if opts.OnEntryDone != nil {
				opts.OnEntryDone(EntryProgress{
					Path:             tree.Files[i].Path,
					UncompressedSize: payload.UncompressedSize,
					CompressedSize:   compressedSize,
					Compressed:       payload.Compressed,
				})
			}

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fe := range fileEntries {
		totalUncompressed += fe.UncompressedSize
	}

	var dictOffset, dictLength uint64
	if len(dict) > 0 {
		dictOffset = cursor
		dictLength = uint64(len(dict))
		if _, err := out.WriteAt(dict, int64(cursor)); err != nil {
			return nil, fmt.Errorf("packer: write dictionary: %w", err)
		}
		cursor += dictLength
	}

	dirEntries := make([]container.DirectoryEntry, len(tree.Dirs))
	for i, d := range tree.Dirs {
		dirEntries[i] = container.DirectoryEntry{
			Parent:      parentIndex(d.Parent),
			Name:        d.Name,
			ModTimeSec:  d.ModSec,
			ModTimeNsec: d.ModNs,
		}
	}

	linkEntries := make([]container.SymlinkEntry, len(tree.Symlinks))
	for i, l := range tree.Symlinks {
		linkEntries[i] = container.SymlinkEntry{
			Parent:      parentIndex(l.Parent),
			Name:        l.Name,
			ModTimeSec:  l.ModSec,
			ModTimeNsec: l.ModNs,
			Kind:        l.Kind,
			Target:      l.Target,
		}
	}

	var mainStrTab []byte
	dirTable, err := container.EncodeDirectoryTable(dirEntries, &mainStrTab)
	if err != nil {
		return nil, err
	}
	fileTable, err := container.EncodeFileTable(fileEntries, &mainStrTab)
	if err != nil {
		return nil, err
	}
	linkTable, err := container.EncodeSymlinkTable(linkEntries, &mainStrTab)
	if err != nil {
		return nil, err
	}

	dirTableOffset := cursor
	cursor += uint64(len(dirTable))
	fileTableOffset := cursor
	cursor += uint64(len(fileTable))
	linkTableOffset := cursor
	cursor += uint64(len(linkTable))
	stringTableOffset := cursor

	versionID := uuid.New()
	versionString := opts.VersionString
	if versionString == "" {
		versionString = deriveVersionString(versionID)
	}

	info := container.StartInfo{
		FormatVersion:         container.FormatVersion,
		DirCount:              uint32(len(dirEntries)),
		FileCount:             uint32(len(fileEntries)),
		LinkCount:             uint32(len(linkEntries)),
		BlobStart:             blobStart,
		DictOffset:            dictOffset,
		DictLength:            dictLength,
		DirTableOffset:        dirTableOffset,
		FileTableOffset:       fileTableOffset,
		LinkTableOffset:       linkTableOffset,
		StringTableOffset:     stringTableOffset,
		TotalUncompressedSize: totalUncompressed,
		UnpackTarget:          opts.UnpackTarget,
		UnpackDirectory:       opts.UnpackDirectory,
		Versioning:            opts.Versioning,
		Verification:          opts.Verification,
		Console:               opts.Console,
		CurrentDir:            opts.CurrentDir,
		Cleanup:               opts.Cleanup,
		Once:                  opts.Once,
		ShowInformation:       opts.ShowInformation,
		SubsystemHint:         subsystem,
		CommandPathIndex:      uint32(commandIndex),
		CommandLineSuffix:     opts.CommandLineSuffix,
	}
	copy(info.VersionID[:], versionID[:])
	copy(info.VersionString[:], versionString)

	footerStrTabBase := uint64(len(mainStrTab))
	var footerStrTab []byte
	footer, err := info.Encode(&footerStrTab, footerStrTabBase)
	if err != nil {
		return nil, err
	}
	info.StringTableLength = uint64(len(mainStrTab)) + uint64(len(footerStrTab))

	// StringTableLength changed after Encode computed overflow bytes, so the
	// footer must be re-encoded once with the final length recorded.
	footerStrTab = footerStrTab[:0]
	footer, err = info.Encode(&footerStrTab, footerStrTabBase)
	if err != nil {
		return nil, err
	}

	fullStrTab := append(mainStrTab, footerStrTab...)

	if _, err := out.WriteAt(dirTable, int64(dirTableOffset)); err != nil {
		return nil, fmt.Errorf("packer: write directory table: %w", err)
	}
	if _, err := out.WriteAt(fileTable, int64(fileTableOffset)); err != nil {
		return nil, fmt.Errorf("packer: write file table: %w", err)
	}
	if _, err := out.WriteAt(linkTable, int64(linkTableOffset)); err != nil {
		return nil, fmt.Errorf("packer: write symlink table: %w", err)
	}
	if _, err := out.WriteAt(fullStrTab, int64(stringTableOffset)); err != nil {
		return nil, fmt.Errorf("packer: write string table: %w", err)
	}
	footerOffset := stringTableOffset + uint64(len(fullStrTab))
	if _, err := out.WriteAt(footer, int64(footerOffset)); err != nil {
		return nil, fmt.Errorf("packer: write footer: %w", err)
	}
	if _, err := out.WriteAt([]byte(container.Magic), int64(footerOffset)+container.StartInfoSize); err != nil {
		return nil, fmt.Errorf("packer: write magic: %w", err)
	}

	if err := out.Truncate(int64(footerOffset) + container.StartInfoSize + container.MagicSize); err != nil {
		return nil, fmt.Errorf("packer: truncate output: %w", err)
	}

	if err := out.Sync(); err != nil {
		return nil, fmt.Errorf("packer: sync output: %w", err)
	}

	return &Result{
		OutputPath:            opts.OutputPath,
		DirCount:              len(dirEntries),
		FileCount:             len(fileEntries),
		LinkCount:             len(linkEntries),
		TotalUncompressedSize: totalUncompressed,
		TotalCompressedSize:   cursor - blobStart,
		VersionID:             info.VersionID,
		VersionString:         versionString,
		Duration:              time.Since(started),
	}, nil
}

// findCommandIndex locates the file entry matching the absolute command
// path, returning its index in tree.Files (the packed FileEntry order).
func findCommandIndex(tree *manifest.Tree, commandPath string) (int, error) {
	clean := filepath.Clean(commandPath)
	for i, f := range tree.Files {
		if filepath.Clean(f.Path) == clean {
			return i, nil
		}
	}
	return 0, fmt.Errorf("packer: command path %q not found under the packed tree", commandPath)
}

// parentIndex converts manifest's -1-rooted parent indices to the
// container's RootIndex sentinel scheme.
func parentIndex(p int) uint32 {
	if p < 0 {
		return container.RootIndex
	}
	return uint32(p)
}

// deriveVersionString projects a generated version UUID into an 8-character
// printable identifier for StartInfo.VersionString, since the full 128-bit
// id is not suitable for display in progress output or logs.
func deriveVersionString(id uuid.UUID) string {
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(id[:])
	if len(enc) > container.VersionStringLen {
		enc = enc[:container.VersionStringLen]
	}
	return enc
}
