package packer

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/wrappe/wrappe/container"
)

// compressedPayload is the result of compressing one file's content: either
// the zstd-compressed bytes (Compressed true) or the raw bytes unchanged,
// whichever was smaller, following the teacher's "always attempt, keep raw
// if larger" rule.
type compressedPayload struct {
	Data             []byte
	Compressed       bool
	UncompressedSize uint64
	Hash             uint64
}

// encoderPool hands out per-worker reusable zstd encoders, mirroring the
// teacher's sync.Pool-based buffer reuse in writer.go.
type encoderPool struct {
	level zstd.EncoderLevel
	dict  []byte
	pool  sync.Pool
}

func newEncoderPool(level zstd.EncoderLevel, dict []byte) *encoderPool {
	p := &encoderPool{level: level, dict: dict}
	p.pool.New = func() any {
		opts := []zstd.EOption{zstd.WithEncoderLevel(level)}
		if len(dict) > 0 {
			// buildDictionary produces raw sample content, not a trained
			// dictionary (no magic 0xEC30A437 header), so it must go through
			// the raw-content dictionary API rather than WithEncoderDict,
			// which expects and validates a real trained dictionary.
			opts = append(opts, zstd.WithEncoderDictRaw(container.DictRawID, dict))
		}
		enc, err := zstd.NewWriter(nil, opts...)
		if err != nil {
			// zstd.NewWriter only fails on invalid option combinations, which
			// newEncoderPool's fixed option set never produces.
			panic(fmt.Sprintf("packer: build zstd encoder: %v", err))
		}
		return enc
	}
	return p
}

func (p *encoderPool) get() *zstd.Encoder {
	return p.pool.Get().(*zstd.Encoder)
}

func (p *encoderPool) put(enc *zstd.Encoder) {
	p.pool.Put(enc)
}

// compressFile streams path's content through a pooled encoder and an
// xxHash64 hasher in one pass (spec.md §4.2's "streamed ... to avoid loading
// entire files in memory"), rather than reading the whole file into a
// buffer up front. Only when compression fails to shrink the content does
// it re-read the file to produce the raw fallback payload, matching the
// teacher's "attempt, compare, keep the smaller of the two" shape without
// paying for two full in-memory copies on the common (compressible) path.
func compressFile(path string, pool *encoderPool) (compressedPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return compressedPayload{}, fmt.Errorf("packer: open %s: %w", path, err)
	}
	defer f.Close()

	enc := pool.get()
	defer pool.put(enc)

	var compressedBuf bytes.Buffer
	enc.Reset(&compressedBuf)

	hasher := xxhash.New()
	written, err := io.Copy(io.MultiWriter(hasher, enc), f)
	if err != nil {
		return compressedPayload{}, fmt.Errorf("packer: stream %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return compressedPayload{}, fmt.Errorf("packer: finalize compression of %s: %w", path, err)
	}

	hash := hasher.Sum64()

	if compressedBuf.Len() >= int(written) {
		raw, err := os.ReadFile(path)
		if err != nil {
			return compressedPayload{}, fmt.Errorf("packer: read %s: %w", path, err)
		}
		return compressedPayload{
			Data:             raw,
			Compressed:       false,
			UncompressedSize: uint64(len(raw)),
			Hash:             hash,
		}, nil
	}

	return compressedPayload{
		Data:             compressedBuf.Bytes(),
		Compressed:       true,
		UncompressedSize: uint64(written),
		Hash:             hash,
	}, nil
}

// workerCount returns the number of parallel compression workers to run,
// matching GOMAXPROCS per spec.md §5.
func workerCount() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		return 1
	}
	return n
}

// zstdLevelFromInt quantizes the CLI's 0-22 compression level (matching the
// spec's flag range) down to zstd's four encoder-level tiers.
func zstdLevelFromInt(level int) zstd.EncoderLevel {
	switch {
	case level <= 0:
		return zstd.SpeedFastest
	case level <= 9:
		return zstd.SpeedDefault
	case level <= 18:
		return zstd.SpeedBetterCompression
	default:
		return zstd.SpeedBestCompression
	}
}
