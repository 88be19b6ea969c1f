package pagestore

import "encoding/binary"

// tableDirPageKind tags the table directory page, distinct from the
// btree's leaf(1)/branch(2) kinds and the free list's 0xFF.
const tableDirPageKind = 0xFE

// tableDirEntry is one name -> root mapping in the directory.
type tableDirEntry struct {
	name string
	root PageNumber
}

// encodeTableDir serializes the whole directory as one flat page:
// kind(1B) | reserved(1B) | count(u16) | { nameLen(u16) | root(8B) | name bytes } * count
func encodeTableDir(entries []tableDirEntry) []byte {
	size := 4
	for _, e := range entries {
		size += 2 + PageNumberSize + len(e.name)
	}
	data := make([]byte, size)
	data[0] = tableDirPageKind
	data[1] = 0
	binary.LittleEndian.PutUint16(data[2:4], uint16(len(entries)))
	off := 4
	for _, e := range entries {
		binary.LittleEndian.PutUint16(data[off:], uint16(len(e.name)))
		off += 2
		e.root.PutBytes(data[off:])
		off += PageNumberSize
		copy(data[off:], e.name)
		off += len(e.name)
	}
	return data
}

// decodeTableDir is encodeTableDir's inverse; tolerates a page larger than
// the encoded payload since Allocate may round up to the page size.
func decodeTableDir(data []byte) []tableDirEntry {
	if len(data) < 4 {
		return nil
	}
	n := binary.LittleEndian.Uint16(data[2:4])
	entries := make([]tableDirEntry, 0, n)
	off := 4
	for i := uint16(0); i < n; i++ {
		nameLen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2
		root := PageNumberFromBytes(data[off:])
		off += PageNumberSize
		name := string(data[off : off+nameLen])
		off += nameLen
		entries = append(entries, tableDirEntry{name: name, root: root})
	}
	return entries
}

// TableRoot returns the persisted root page number for a named table, or
// pagestore.InvalidPageNumber if no table by that name has ever been
// written (the caller treats that the same as a brand-new empty table).
func (fs *FileStore) TableRoot(name string) (PageNumber, error) {
	entries, err := fs.loadTableDir()
	if err != nil {
		return InvalidPageNumber, err
	}
	for _, e := range entries {
		if e.name == name {
			return e.root, nil
		}
	}
	return InvalidPageNumber, nil
}

// SetTableRoot creates or replaces name's directory entry, pointing it at
// root. TableRoot returns the new root immediately; the directory page is
// made durable at the next Commit like any other page write. A Table
// handle opened earlier keeps the root it was opened with, the same
// single-writer discipline every other mutation in this store follows.
func (fs *FileStore) SetTableRoot(name string, root PageNumber) error {
	entries, err := fs.loadTableDir()
	if err != nil {
		return err
	}
	found := false
	for i := range entries {
		if entries[i].name == name {
			entries[i].root = root
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, tableDirEntry{name: name, root: root})
	}
	return fs.storeTableDir(entries)
}

func (fs *FileStore) loadTableDir() ([]tableDirEntry, error) {
	if fs.dir == InvalidPageNumber {
		return nil, nil
	}
	page, err := fs.Get(fs.dir)
	if err != nil {
		return nil, err
	}
	return decodeTableDir(page.Bytes), nil
}

func (fs *FileStore) storeTableDir(entries []tableDirEntry) error {
	data := encodeTableDir(entries)
	page, err := fs.Allocate(len(data))
	if err != nil {
		return err
	}
	copy(page.Bytes, data)
	old := fs.dir
	fs.dir = page.Number
	if old != InvalidPageNumber {
		fs.Free(old)
	}
	return nil
}
