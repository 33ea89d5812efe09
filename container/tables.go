package container

// DecodeDirectoryTable decodes a contiguous DirectoryEntry array.
func DecodeDirectoryTable(table, strTab []byte) ([]DirectoryEntry, error) {
	if len(table)%DirectoryEntryStride != 0 {
		return nil, ErrTruncated
	}
	n := len(table) / DirectoryEntryStride
	out := make([]DirectoryEntry, n)
	for i := 0; i < n; i++ {
		rec := table[i*DirectoryEntryStride : (i+1)*DirectoryEntryStride]
		e, err := DecodeDirectoryEntry(rec, strTab)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// DecodeFileTable decodes a contiguous FileEntry array.
func DecodeFileTable(table, strTab []byte) ([]FileEntry, error) {
	if len(table)%FileEntryStride != 0 {
		return nil, ErrTruncated
	}
	n := len(table) / FileEntryStride
	out := make([]FileEntry, n)
	for i := 0; i < n; i++ {
		rec := table[i*FileEntryStride : (i+1)*FileEntryStride]
		e, err := DecodeFileEntry(rec, strTab)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// DecodeSymlinkTable decodes a contiguous SymlinkEntry array.
func DecodeSymlinkTable(table, strTab []byte) ([]SymlinkEntry, error) {
	if len(table)%SymlinkEntryStride != 0 {
		return nil, ErrTruncated
	}
	n := len(table) / SymlinkEntryStride
	out := make([]SymlinkEntry, n)
	for i := 0; i < n; i++ {
		rec := table[i*SymlinkEntryStride : (i+1)*SymlinkEntryStride]
		e, err := DecodeSymlinkEntry(rec, strTab)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

// EncodeDirectoryTable encodes entries in order, appending overflow names to
// strTab. Callers must have already sorted entries into parent-before-child
// (topological) order; this function does not validate that invariant — see
// manifest.Walk, which is responsible for producing it.
func EncodeDirectoryTable(entries []DirectoryEntry, strTab *[]byte) ([]byte, error) {
	out := make([]byte, 0, len(entries)*DirectoryEntryStride)
	for _, e := range entries {
		rec, err := EncodeDirectoryEntry(e, strTab, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

// EncodeFileTable encodes entries in order, appending overflow names to strTab.
func EncodeFileTable(entries []FileEntry, strTab *[]byte) ([]byte, error) {
	out := make([]byte, 0, len(entries)*FileEntryStride)
	for _, e := range entries {
		rec, err := EncodeFileEntry(e, strTab, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

// EncodeSymlinkTable encodes entries in order, appending overflow
// names/targets to strTab.
func EncodeSymlinkTable(entries []SymlinkEntry, strTab *[]byte) ([]byte, error) {
	out := make([]byte, 0, len(entries)*SymlinkEntryStride)
	for _, e := range entries {
		rec, err := EncodeSymlinkEntry(e, strTab, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}
