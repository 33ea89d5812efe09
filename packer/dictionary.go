package packer

import (
	"fmt"
	"os"
	"sort"
)

// minDictionarySamples is the minimum number of files a dictionary is built
// from; below this, a shared dictionary has too little in common to be
// worthwhile, so dictionary building is skipped entirely per spec.md §4.2.
const minDictionarySamples = 8

// maxDictionarySize bounds the dictionary blob written into the container.
const maxDictionarySize = 112 * 1024

// buildDictionary assembles a shared zstd dictionary from the given sample
// file paths. klauspost/compress/zstd can consume a prebuilt dictionary
// (WithEncoderDict/WithDecoderDicts) but does not itself implement a
// dictionary-training algorithm (no ZDICT_trainFromBuffer equivalent), so
// this builds the simplest honest substitute: concatenate the smallest
// sample files, which tend to be the most repetitive/templated content in a
// typical installed tree, up to maxDictionarySize. This is a heuristic, not
// a trained dictionary; see DESIGN.md.
//
// Returns nil, nil when there are too few samples to bother with.
func buildDictionary(paths []string) ([]byte, error) {
	if len(paths) < minDictionarySamples {
		return nil, nil
	}

	type sized struct {
		path string
		size int64
	}
	ordered := make([]sized, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("packer: stat dictionary sample %s: %w", p, err)
		}
		ordered = append(ordered, sized{path: p, size: info.Size()})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].size < ordered[j].size })

	dict := make([]byte, 0, maxDictionarySize)
	for _, s := range ordered {
		if len(dict) >= maxDictionarySize {
			break
		}
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, fmt.Errorf("packer: read dictionary sample %s: %w", s.path, err)
		}
		remaining := maxDictionarySize - len(dict)
		if len(data) > remaining {
			data = data[:remaining]
		}
		dict = append(dict, data...)
	}

	if len(dict) == 0 {
		return nil, nil
	}

	return dict, nil
}
