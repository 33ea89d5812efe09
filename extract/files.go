package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/wrappe/wrappe/container"
)

// decoderPool hands out per-worker reusable zstd decoders, mirroring
// packer/compress.go's encoderPool on the extraction side, per spec.md
// §4.8's "thread-local decompressor, reused across files" requirement.
type decoderPool struct {
	dict []byte
	pool sync.Pool
}

func newDecoderPool(dict []byte) *decoderPool {
	p := &decoderPool{dict: dict}
	p.pool.New = func() any {
		opts := []zstd.DOption{}
		if len(dict) > 0 {
			// The embedded dictionary is raw sample content (see
			// packer/dictionary.go), not a trained dictionary, so it must be
			// loaded with the raw-content decoder API using the same id the
			// packer tagged it with, not WithDecoderDicts (which expects a
			// real trained dictionary and rejects raw bytes with
			// ErrMagicMismatch).
			opts = append(opts, zstd.WithDecoderDictRaw(container.DictRawID, dict))
		}
		dec, err := zstd.NewReader(nil, opts...)
		if err != nil {
			panic(fmt.Sprintf("extract: build zstd decoder: %v", err))
		}
		return dec
	}
	return p
}

func (p *decoderPool) get() *zstd.Decoder {
	return p.pool.Get().(*zstd.Decoder)
}

func (p *decoderPool) put(dec *zstd.Decoder) {
	p.pool.Put(dec)
}

// Progress is delivered once per completed file, letting a caller sample
// periodic counters the way spec.md §4.8 describes.
type Progress struct {
	Path  string
	Bytes uint64
}

// ExtractFiles decompresses every FileEntry's blob from image directly into
// its resolved destination path. Directory/symlink materialization must
// already be complete (spec.md §4.8's barrier); ExtractFiles does not create
// parent directories. Workers are capped at GOMAXPROCS.
func ExtractFiles(ctx context.Context, image []byte, files []container.FileEntry, paths []string, dict []byte, onDone func(Progress)) error {
	if len(files) == 0 {
		return nil
	}

	pool := newDecoderPool(dict)
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range files {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := extractOne(image, files[i], paths[i], pool)
			if err != nil {
				return err
			}
			if onDone != nil {
				onDone(Progress{Path: paths[i], Bytes: n})
			}
			return nil
		})
	}
	return g.Wait()
}

func extractOne(image []byte, entry container.FileEntry, path string, pool *decoderPool) (uint64, error) {
	start := entry.Offset
	end := start + entry.CompressedSize
	if end > uint64(len(image)) || end < start {
		return 0, fmt.Errorf("extract: blob for %s out of range", path)
	}
	blob := image[start:end]

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("extract: open %s: %w", path, err)
	}

	var written int64
	if entry.Stored() {
		written, err = io.Copy(out, bytes.NewReader(blob))
	} else {
		dec := pool.get()
		defer pool.put(dec)
		if resetErr := dec.Reset(bytes.NewReader(blob)); resetErr != nil {
			_ = out.Close()
			return 0, fmt.Errorf("extract: reset decoder for %s: %w", path, resetErr)
		}
		written, err = io.Copy(out, dec)
	}
	if err != nil {
		_ = out.Close()
		return 0, fmt.Errorf("extract: decompress %s: %w", path, err)
	}

	if err := applyFileMetadata(out, path, entry); err != nil {
		_ = out.Close()
		return 0, err
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("extract: close %s: %w", path, err)
	}
	return uint64(written), nil
}

func applyFileMetadata(out *os.File, path string, entry container.FileEntry) error {
	if entry.Mode != 0 {
		if err := out.Chmod(os.FileMode(entry.Mode)); err != nil {
			return fmt.Errorf("extract: chmod %s: %w", path, err)
		}
	}
	mtime := time.Unix(entry.ModTimeSec, int64(entry.ModTimeNsec))
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		return fmt.Errorf("extract: set mtime on %s: %w", path, err)
	}
	return nil
}
