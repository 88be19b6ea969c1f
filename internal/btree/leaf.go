package btree

import (
	"encoding/binary"

	"github.com/govetachun/redbtree/pkg/dbg"
)

// Leaf page layout (spec §3, bit-exact, little-endian):
//
//	offset 0  : u8   kind = 1
//	offset 1  : u8   reserved
//	offset 2  : u16  num_pairs
//	offset 4  : u32[num_pairs]  key_end
//	offset ...: u32[num_pairs]  value_end
//	offset ...: bytes  concatenated keys
//	offset ...: bytes  concatenated values
const leafHeaderSize = 4

// LeafAccessor is the read side of a leaf page (spec §4.1). Mirrors the
// teacher's BNode read methods, generalized from the single
// pointer/offset array layout to the spec's separate key_end/value_end
// arrays.
type LeafAccessor struct {
	data []byte
}

func NewLeafAccessor(data []byte) LeafAccessor { return LeafAccessor{data} }

func (a LeafAccessor) NumPairs() uint16 {
	return binary.LittleEndian.Uint16(a.data[2:4])
}

func (a LeafAccessor) keyEndOffsetPos(i uint16) int  { return 4 + 4*int(i) }
func (a LeafAccessor) valueEndOffsetPos(i uint16) int {
	return 4 + 4*int(a.NumPairs()) + 4*int(i)
}

func (a LeafAccessor) keyEnd(i uint16) uint32 {
	return binary.LittleEndian.Uint32(a.data[a.keyEndOffsetPos(i):])
}

func (a LeafAccessor) valueEnd(i uint16) uint32 {
	return binary.LittleEndian.Uint32(a.data[a.valueEndOffsetPos(i):])
}

func (a LeafAccessor) keyStart(i uint16) uint32 {
	if i == 0 {
		return uint32(leafHeaderSize + 8*int(a.NumPairs()))
	}
	return a.keyEnd(i - 1)
}

func (a LeafAccessor) valueStart(i uint16) uint32 {
	if i == 0 {
		n := a.NumPairs()
		if n == 0 {
			return uint32(leafHeaderSize)
		}
		return a.keyEnd(n - 1)
	}
	return a.valueEnd(i - 1)
}

// KeyUnchecked returns key i without bounds checking, for binary search.
func (a LeafAccessor) KeyUnchecked(i uint16) []byte {
	return a.data[a.keyStart(i):a.keyEnd(i)]
}

func (a LeafAccessor) value(i uint16) []byte {
	return a.data[a.valueStart(i):a.valueEnd(i)]
}

// Entry returns the key/value pair at i, or ok=false if out of range.
func (a LeafAccessor) Entry(i uint16) (key, val []byte, ok bool) {
	if i >= a.NumPairs() {
		return nil, nil, false
	}
	return a.KeyUnchecked(i), a.value(i), true
}

// LastEntry is an alias for Entry(NumPairs()-1).
func (a LeafAccessor) LastEntry() (key, val []byte, ok bool) {
	n := a.NumPairs()
	if n == 0 {
		return nil, nil, false
	}
	return a.Entry(n - 1)
}

// Position performs the binary search spec §4.1 requires: 0 <= index <=
// num_pairs; if found, the key at index equals query; otherwise index is
// the insertion point. Equality terminates immediately.
func (a LeafAccessor) Position(query []byte, cmp Comparator) (index uint16, found bool) {
	lo, hi := 0, int(a.NumPairs())
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		c := cmp(a.KeyUnchecked(uint16(mid)), query)
		switch {
		case c == 0:
			return uint16(mid), true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return uint16(lo), false
}

// FindKey returns the index of query, or ok=false if absent.
func (a LeafAccessor) FindKey(query []byte, cmp Comparator) (index uint16, ok bool) {
	idx, found := a.Position(query, cmp)
	return idx, found
}

// ValueRange returns the absolute [start,end) byte offsets of value i.
func (a LeafAccessor) ValueRange(i uint16) (start, end uint32) {
	return a.valueStart(i), a.valueEnd(i)
}

// LengthOfPairs returns the total key+value bytes in the half-open range
// [start,end). Pairs are stored contiguously within their own key/value
// regions, so this is just the span between the region boundaries.
func (a LeafAccessor) LengthOfPairs(start, end uint16) uint32 {
	if start == end {
		return 0
	}
	keyBytes := a.keyEnd(end-1) - a.keyStart(start)
	valBytes := a.valueEnd(end-1) - a.valueStart(start)
	return keyBytes + valBytes
}

// TotalLength returns the end offset of the last value, i.e. the used
// payload size of the page (spec §4.1, and invariant 5's 4+8n+B).
func (a LeafAccessor) TotalLength() uint32 {
	n := a.NumPairs()
	if n == 0 {
		return uint32(leafHeaderSize)
	}
	return a.valueEnd(n - 1)
}

// pairBytes returns the key+value byte length of a single pair.
func (a LeafAccessor) pairBytes(i uint16) uint32 {
	return a.LengthOfPairs(i, i+1)
}

// --- raw leaf writer (spec §4.3) ---

// DebugPoison gates the raw-writer header poisoning described in spec §9;
// off by default, and a plain runtime switch rather than a build tag, the
// way the teacher's debug assertions are plain runtime conditionals.
var DebugPoison = false

// rawLeafWriter is the low-level append-only writer the builder and the
// in-place mutator both funnel through. It receives num_pairs and
// totalKeyBytes up front, poisons the offset tables in debug, and accepts
// exactly num_pairs Append calls.
type rawLeafWriter struct {
	data          []byte
	numPairs      uint16
	totalKeyBytes uint32
	pairsWritten  uint16
	keyWritten    uint32
	valWritten    uint32
}

func newRawLeafWriter(data []byte, numPairs uint16, totalKeyBytes uint32) *rawLeafWriter {
	data[0] = pageKindLeaf
	data[1] = 0
	binary.LittleEndian.PutUint16(data[2:4], numPairs)
	if DebugPoison {
		for i := 4; i < leafHeaderSize+8*int(numPairs); i++ {
			data[i] = 0xFF
		}
	}
	return &rawLeafWriter{data: data, numPairs: numPairs, totalKeyBytes: totalKeyBytes}
}

func (w *rawLeafWriter) Append(key, val []byte) {
	dbg.Assert(w.pairsWritten < w.numPairs, "rawLeafWriter: too many appends (%d >= %d)", w.pairsWritten, w.numPairs)
	idx := w.pairsWritten

	keyAreaStart := uint32(leafHeaderSize + 8*int(w.numPairs))
	keyStart := keyAreaStart + w.keyWritten
	keyEnd := keyStart + uint32(len(key))
	copy(w.data[keyStart:keyEnd], key)

	valAreaStart := keyAreaStart + w.totalKeyBytes
	valStart := valAreaStart + w.valWritten
	valEnd := valStart + uint32(len(val))
	copy(w.data[valStart:valEnd], val)

	binary.LittleEndian.PutUint32(w.data[4+4*int(idx):], keyEnd)
	binary.LittleEndian.PutUint32(w.data[4+4*int(w.numPairs)+4*int(idx):], valEnd)

	w.keyWritten += uint32(len(key))
	w.valWritten += uint32(len(val))
	w.pairsWritten++
}

func (w *rawLeafWriter) Finish() {
	dbg.Assert(w.pairsWritten == w.numPairs, "rawLeafWriter: wrote %d of %d pairs", w.pairsWritten, w.numPairs)
}

// leafPair is a decoded key/value pair, used as scratch when rebuilding a
// leaf's contents (construction, split, and in-place mutation all funnel
// through writeLeafPairs below).
type leafPair struct {
	key, val []byte
}

func writeLeafPairs(data []byte, pairs []leafPair) {
	var totalKeyBytes int
	for _, p := range pairs {
		totalKeyBytes += len(p.key)
	}
	w := newRawLeafWriter(data, uint16(len(pairs)), uint32(totalKeyBytes))
	for _, p := range pairs {
		w.Append(p.key, p.val)
	}
	w.Finish()
}

// requiredLeafSize computes the bit-exact page space required for pairs
// (spec invariant 5: 4 + 8n + B).
func requiredLeafSize(pairs []leafPair) int {
	size := leafHeaderSize
	for _, p := range pairs {
		size += 8 + len(p.key) + len(p.val)
	}
	return size
}
