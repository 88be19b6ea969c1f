package btree

import "github.com/govetachun/redbtree/pkg/dbg"

// leafSufficientInsertInplaceSpace implements spec §4.4: returns true iff
// the required delta fits in the page's slack. overwrite=true measures
// new_bytes - old_pair_bytes; overwrite=false measures 8 + new_bytes (a
// fresh pair needs its own key_end/value_end slots).
func leafSufficientInsertInplaceSpace(data []byte, capacity int, position uint16, overwrite bool, key, val []byte) bool {
	acc := NewLeafAccessor(data)
	newBytes := len(key) + len(val)

	var delta int
	if overwrite {
		delta = newBytes - int(acc.pairBytes(position))
	} else {
		delta = 8 + newBytes
	}
	return int(acc.TotalLength())+delta <= capacity
}

// leafInsertInPlace applies a single insert (overwrite=false) or update
// (overwrite=true) directly to an uncommitted page buffer. The pairs are
// decoded into scratch slices before the buffer is rewritten — logically
// equivalent to the spec's reverse-order memmove shuffle (values, then
// key data, then value pointers, then key pointers) without risking an
// overlap bug, since every byte is read before any byte in the same
// buffer is overwritten.
func leafInsertInPlace(data []byte, position uint16, overwrite bool, key, val []byte) {
	acc := NewLeafAccessor(data)
	n := acc.NumPairs()
	pairs := decodeLeafPairs(acc, n)

	newPair := leafPair{key: append([]byte(nil), key...), val: append([]byte(nil), val...)}
	if overwrite {
		dbg.Assert(position < n, "leafInsertInPlace: overwrite position %d out of range (n=%d)", position, n)
		pairs[position] = newPair
	} else {
		dbg.Assert(position <= n, "leafInsertInPlace: insert position %d out of range (n=%d)", position, n)
		merged := make([]leafPair, 0, n+1)
		merged = append(merged, pairs[:position]...)
		merged = append(merged, newPair)
		merged = append(merged, pairs[position:]...)
		pairs = merged
	}
	writeLeafPairs(data, pairs)
}

// leafRemoveInPlace removes the pair at position; forbidden when
// num_pairs <= 1 (spec §4.4).
func leafRemoveInPlace(data []byte, position uint16) {
	acc := NewLeafAccessor(data)
	n := acc.NumPairs()
	dbg.Assert(n > 1, "leafRemoveInPlace: cannot remove the only pair (n=%d)", n)
	dbg.Assert(position < n, "leafRemoveInPlace: position %d out of range (n=%d)", position, n)

	pairs := decodeLeafPairs(acc, n)
	pairs = append(pairs[:position], pairs[position+1:]...)
	writeLeafPairs(data, pairs)
}

func decodeLeafPairs(acc LeafAccessor, n uint16) []leafPair {
	pairs := make([]leafPair, 0, n)
	for i := uint16(0); i < n; i++ {
		k, v, _ := acc.Entry(i)
		pairs = append(pairs, leafPair{
			key: append([]byte(nil), k...),
			val: append([]byte(nil), v...),
		})
	}
	return pairs
}
