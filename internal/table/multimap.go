package table

import (
	"bytes"
	"encoding/binary"

	"github.com/govetachun/redbtree/internal/pagestore"
)

// MultimapTable holds an ordered set of values per key, encoded as one
// Table value per key: a sequence of (uint32 length, bytes) entries in
// insertion order. This trades redb's per-key nested B-tree (see
// original_source's MultimapTable) for a flat encoding — sufficient for
// spec.md §8 scenario 1's ordered-duplicates requirement and scenario
// 3's remove_all, and far simpler than wiring a second tree layer the
// core's stated scope never asks for.
type MultimapTable struct {
	t *Table
}

// OpenMultimap wraps an existing root the same way Open does for Table.
func OpenMultimap(name string, root pagestore.PageNumber, store pagestore.Store, policy pagestore.FreePolicy, freed *[]pagestore.PageNumber) *MultimapTable {
	return &MultimapTable{t: Open(name, root, store, policy, freed)}
}

// Root returns the underlying table's root page number.
func (m *MultimapTable) Root() pagestore.PageNumber { return m.t.Root() }

func encodeValues(values [][]byte) []byte {
	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, v := range values {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return buf.Bytes()
}

func decodeValues(data []byte) [][]byte {
	var values [][]byte
	for len(data) >= 4 {
		n := binary.BigEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < n {
			break
		}
		values = append(values, append([]byte(nil), data[:n]...))
		data = data[n:]
	}
	return values
}

// Insert appends val to key's ordered value set if it is not already
// present; duplicate inserts are a no-op, matching a set's semantics.
func (m *MultimapTable) Insert(key, val []byte) error {
	existing, ok, err := m.t.Get(key)
	var values [][]byte
	if err != nil {
		return err
	}
	if ok {
		values = decodeValues(existing.Bytes())
		existing.Close()
		for _, v := range values {
			if bytes.Equal(v, val) {
				return nil
			}
		}
	}
	values = append(values, append([]byte(nil), val...))
	_, err = m.t.Insert(key, encodeValues(values))
	return err
}

// Get returns key's values in insertion order, or nil if the key is
// absent.
func (m *MultimapTable) Get(key []byte) ([][]byte, error) {
	guard, ok, err := m.t.Get(key)
	if err != nil || !ok {
		return nil, err
	}
	defer guard.Close()
	return decodeValues(guard.Bytes()), nil
}

// Remove removes one occurrence of val from key's value set, deleting the
// key entirely once its value set becomes empty. Reports whether val was
// present.
func (m *MultimapTable) Remove(key, val []byte) (bool, error) {
	guard, ok, err := m.t.Get(key)
	if err != nil || !ok {
		return false, err
	}
	values := decodeValues(guard.Bytes())
	guard.Close()

	removed := false
	kept := make([][]byte, 0, len(values))
	for _, v := range values {
		if !removed && bytes.Equal(v, val) {
			removed = true
			continue
		}
		kept = append(kept, v)
	}
	if !removed {
		return false, nil
	}
	if len(kept) == 0 {
		_, _, err := m.t.Remove(key)
		return true, err
	}
	_, err = m.t.Insert(key, encodeValues(kept))
	return true, err
}

// RemoveAll deletes every value associated with key (spec.md §8 scenario
// 3).
func (m *MultimapTable) RemoveAll(key []byte) (bool, error) {
	_, ok, err := m.t.Remove(key)
	return ok, err
}
