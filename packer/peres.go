package packer

import (
	"fmt"

	"github.com/saferwall/pe"
	"go.uber.org/zap"

	"github.com/wrappe/wrappe/container"
)

// Windows PE subsystem identifiers relevant to runner selection. Values match
// the IMAGE_SUBSYSTEM_* constants from the PE format.
const (
	imageSubsystemWindowsGUI = 2
	imageSubsystemWindowsCUI = 3
)

// peCollaborator is the narrow PE-introspection surface the packer core
// depends on; it never imports PE binary-format details directly, per
// spec.md §4.3's "external collaborator" framing for resource transfer.
type peCollaborator interface {
	DetectSubsystem(path string) (container.Subsystem, error)
	TransferResources(srcPath, dstPath string) error
}

// saferwallPE is the default peCollaborator, backed by github.com/saferwall/pe.
type saferwallPE struct {
	log *zap.SugaredLogger
}

func newPECollaborator(log *zap.SugaredLogger) peCollaborator {
	return &saferwallPE{log: log}
}

// DetectSubsystem inspects the PE optional header's Subsystem field of the
// command executable to decide whether the runner should default to a
// visible console (ConsoleAuto policy, spec.md §4.9).
func (s *saferwallPE) DetectSubsystem(path string) (container.Subsystem, error) {
	f, err := pe.New(path, &pe.Options{})
	if err != nil {
		return container.SubsystemConsole, fmt.Errorf("packer: open PE %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Parse(); err != nil {
		return container.SubsystemConsole, fmt.Errorf("packer: parse PE %s: %w", path, err)
	}

	subsystem := optionalHeaderSubsystem(f)
	if subsystem == imageSubsystemWindowsGUI {
		return container.SubsystemGUI, nil
	}
	return container.SubsystemConsole, nil
}

// optionalHeaderSubsystem extracts the Subsystem field from whichever of the
// 32-bit/64-bit optional header variants saferwall/pe decoded.
func optionalHeaderSubsystem(f *pe.File) uint16 {
	switch oh := f.NtHeader.OptionalHeader.(type) {
	case pe.ImageOptionalHeader32:
		return oh.Subsystem
	case pe.ImageOptionalHeader64:
		return oh.Subsystem
	default:
		return imageSubsystemWindowsCUI
	}
}

// TransferResources copies icon/version-info resources from srcPath (the
// original command executable) onto dstPath (the assembled runner image).
// saferwall/pe is an introspection library; it does not implement resource
// writing, so this degrades to a no-op with a warning, matching spec.md
// §4.3's documented "pack still succeeds, warning emitted" failure mode
// rather than silently pretending the transfer happened.
func (s *saferwallPE) TransferResources(srcPath, dstPath string) error {
	if s.log != nil {
		s.log.Warnw("resource transfer skipped: no PE resource writer available",
			"source", srcPath, "runner", dstPath)
	}
	return nil
}
