// Command wrappe packs a directory tree into a single self-extracting
// binary. See packer.Options for the semantics behind each flag.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/wrappe/wrappe/container"
	"github.com/wrappe/wrappe/packer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses argv and executes the pack, returning the process exit code:
// 0 success, 1 fatal packer error, 2 usage error.
func run(argv []string) int {
	app := kingpin.New("wrappe", "Pack a directory into a self-extracting binary.")
	app.UsageTemplate(kingpin.CompactUsageTemplate)

	var (
		runnerTarget    string
		compression     int
		unpackTarget    string
		unpackDirectory string
		versioning      string
		verification    string
		versionString   string
		showInformation string
		console         string
		currentDir      string
		cleanup         bool
		once            bool
		buildDictionary bool
		listRunners     bool

		inputDir    string
		commandRel  string
		outputPath  string
		commandArgs []string
	)

	app.Flag("runner", "runner image target triple, or \"native\"").Default("native").StringVar(&runnerTarget)
	app.Flag("compression", "zstd compression level, 0-22").Default("8").IntVar(&compression)
	app.Flag("unpack-target", "base directory family for the unpack destination").
		Default("temp").EnumVar(&unpackTarget, "temp", "local", "cwd")
	app.Flag("unpack-directory", "unpack directory name (default: derived from input)").StringVar(&unpackDirectory)
	app.Flag("versioning", "how concurrent unpacks of distinct versions coexist").
		Default("sidebyside").EnumVar(&versioning, "sidebyside", "replace", "none")
	app.Flag("verification", "skip-decision strategy for a pre-existing unpack").
		Default("existence").EnumVar(&verification, "existence", "checksum", "none")
	app.Flag("version-string", "8-char printable version string (default: random)").StringVar(&versionString)
	app.Flag("show-information", "runner output verbosity").
		Default("title").EnumVar(&showInformation, "title", "verbose", "none")
	app.Flag("console", "Windows console handling for the child process").
		Default("auto").EnumVar(&console, "auto", "always", "never", "attach")
	app.Flag("current-dir", "child process working directory policy").
		Default("inherit").EnumVar(&currentDir, "inherit", "unpack", "runner", "command")
	app.Flag("cleanup", "remove the unpack directory after the child exits").BoolVar(&cleanup)
	app.Flag("once", "skip launch if an instance of this version is already running").BoolVar(&once)
	app.Flag("build-dictionary", "build a shared zstd dictionary from the packed tree").BoolVar(&buildDictionary)
	app.Flag("list-runners", "print available runner targets and exit").BoolVar(&listRunners)

	app.Arg("input", "directory to pack").StringVar(&inputDir)
	app.Arg("command", "path to the executable to launch, relative to input").StringVar(&commandRel)
	app.Arg("output", "output binary path (default: derived from input)").StringVar(&outputPath)
	app.Arg("args", "arguments appended to the child's command line").StringsVar(&commandArgs)

	if _, err := app.Parse(argv); err != nil {
		fmt.Fprintf(os.Stderr, "wrappe: %v\n", err)
		return 2
	}

	if listRunners {
		for _, name := range listEmbeddedRunners() {
			fmt.Println(name)
		}
		return 0
	}

	if inputDir == "" || commandRel == "" {
		fmt.Fprintln(os.Stderr, "wrappe: input and command are required (see --help)")
		return 2
	}

	if outputPath == "" {
		outputPath = deriveOutputPath(inputDir)
	}

	opts := packer.Options{
		RootDir:           inputDir,
		OutputPath:        outputPath,
		CommandPath:       filepath.Join(inputDir, commandRel),
		CommandLineSuffix: strings.Join(commandArgs, " "),
		RunnerTarget:      runnerTarget,
		CompressionLevel:  compression,
		BuildDictionary:   buildDictionary,
		UnpackTarget:      parseUnpackTarget(unpackTarget),
		UnpackDirectory:   unpackDirectory,
		Versioning:        parseVersioning(versioning),
		Verification:      parseVerification(verification),
		VersionString:     versionString,
		Console:           parseConsole(console),
		CurrentDir:        parseCurrentDir(currentDir),
		Cleanup:           cleanup,
		Once:              once,
		ShowInformation:   parseShowInformation(showInformation),
		Logger:            newLogger().Sugar(),
	}
	if opts.UnpackDirectory == "" {
		opts.UnpackDirectory = filepath.Base(filepath.Clean(inputDir))
	}

	opts.OnEntryDone = func(p packer.EntryProgress) {
		if showInformation == "verbose" {
			fmt.Printf("packed %s (%d -> %d bytes)\n", p.Path, p.UncompressedSize, p.CompressedSize)
		}
	}

	result, err := packer.Pack(context.Background(), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "wrappe: %v\n", err)
		return 1
	}

	if showInformation != "none" {
		fmt.Printf("packed %d dirs, %d files, %d symlinks into %s (%d -> %d bytes) in %s\n",
			result.DirCount, result.FileCount, result.LinkCount, result.OutputPath,
			result.TotalUncompressedSize, result.TotalCompressedSize, result.Duration)
	}

	return 0
}

func newLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func deriveOutputPath(inputDir string) string {
	base := filepath.Base(filepath.Clean(inputDir))
	if base == "." || base == string(filepath.Separator) {
		base = "wrappe-output"
	}
	return base
}

func parseUnpackTarget(v string) container.UnpackTarget {
	switch v {
	case "local":
		return container.UnpackTargetLocal
	case "cwd":
		return container.UnpackTargetCWD
	default:
		return container.UnpackTargetTemp
	}
}

func parseVersioning(v string) container.Versioning {
	switch v {
	case "replace":
		return container.VersioningReplace
	case "none":
		return container.VersioningNone
	default:
		return container.VersioningSideBySide
	}
}

func parseVerification(v string) container.Verification {
	switch v {
	case "checksum":
		return container.VerificationChecksum
	case "none":
		return container.VerificationNone
	default:
		return container.VerificationExistence
	}
}

func parseShowInformation(v string) container.ShowInformation {
	switch v {
	case "verbose":
		return container.ShowInformationVerbose
	case "none":
		return container.ShowInformationNone
	default:
		return container.ShowInformationTitle
	}
}

func parseConsole(v string) container.Console {
	switch v {
	case "always":
		return container.ConsoleAlways
	case "never":
		return container.ConsoleNever
	case "attach":
		return container.ConsoleAttach
	default:
		return container.ConsoleAuto
	}
}

func parseCurrentDir(v string) container.CurrentDir {
	switch v {
	case "unpack":
		return container.CurrentDirUnpack
	case "runner":
		return container.CurrentDirRunner
	case "command":
		return container.CurrentDirCommand
	default:
		return container.CurrentDirInherit
	}
}

// listEmbeddedRunners reports the runner targets this build can resolve.
// Only "native" is truly backed today; see packer/runners.go.
func listEmbeddedRunners() []string {
	names := []string{"native"}
	sort.Strings(names)
	return names
}
