package btree

import "bytes"

// Comparator is the application-supplied three-way byte comparator spec
// §4.1 requires. Equality terminates binary search outright; there is no
// "lower bound" adjustment, matching spec §4.1's "stable in the face of
// equal keys" requirement.
type Comparator func(a, b []byte) int

// DefaultComparator orders keys by raw byte value, same as every example
// repo's btree/insertKey.go-style bytes.Compare.
func DefaultComparator(a, b []byte) int { return bytes.Compare(a, b) }
