//go:build !linux

package procfind

// FindByExecutable is unimplemented outside Linux: Windows needs a toolhelp
// snapshot + module base name walk (spec.md §4.9), and Darwin needs its own
// sysctl-based process table walk. Both are real OS-specific syscalls this
// module has no grounded reference implementation for in the retrieval
// pack, so `once` degrades to "never found a match" on those platforms
// rather than guessing at an unverified syscall sequence.
func FindByExecutable(target string) (int, error) {
	return 0, nil
}
