// Package packer builds a self-extracting binary: it walks a source tree
// (via the manifest package), compresses its content, and assembles the
// result onto a runner image as the container payload the extract package
// knows how to read back.
package packer

import (
	"time"

	"go.uber.org/zap"

	"github.com/wrappe/wrappe/container"
)

// EntryProgress contains one completed file's compression/write event,
// mirroring the teacher's PackEntryProgress callback shape.
type EntryProgress struct {
	Path             string
	UncompressedSize uint64
	CompressedSize   uint64
	Compressed       bool
}

// Options configures one Pack invocation. It is the plain Go surface the
// packer core exposes; cmd/wrappe/main.go is the only place that translates
// CLI flags into this struct, so the core never imports the CLI framework.
type Options struct {
	// RootDir is the source tree to package.
	RootDir string
	// OutputPath is where the assembled self-extracting binary is written.
	OutputPath string
	// CommandPath is the absolute path (within RootDir) of the executable
	// the runner launches after extraction.
	CommandPath string
	// CommandLineSuffix is appended to CommandPath's invocation at runtime.
	CommandLineSuffix string

	// RunnerTarget selects a runner image from the embedded registry
	// ("native" or "" for the locally-built startpe). RunnerPath, if set,
	// replaces the file used for the "native" entry; other targets are still
	// looked up in the embedded registry.
	RunnerTarget string
	RunnerPath   string

	// CompressionLevel is 0-22, quantized internally to a zstd encoder tier.
	CompressionLevel int
	// BuildDictionary enables the shared-dictionary heuristic in dictionary.go.
	BuildDictionary bool

	UnpackTarget    container.UnpackTarget
	UnpackDirectory string
	Versioning      container.Versioning
	Verification    container.Verification
	// VersionString overrides the generated 8-byte version string when set.
	VersionString string

	Console         container.Console
	CurrentDir      container.CurrentDir
	Cleanup         bool
	Once            bool
	ShowInformation container.ShowInformation

	// OnEntryDone is called after each file is compressed and written.
	OnEntryDone func(EntryProgress)

	Logger *zap.SugaredLogger
}

// Result contains pack output statistics.
type Result struct {
	OutputPath            string
	DirCount              int
	FileCount             int
	LinkCount             int
	TotalUncompressedSize uint64
	TotalCompressedSize   uint64
	VersionID             [container.VersionIDLen]byte
	VersionString         string
	Duration              time.Duration
}

func (o *Options) logger() *zap.SugaredLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop().Sugar()
}
