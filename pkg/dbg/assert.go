// Package dbg holds the small assertion helper used throughout the engine
// to validate invariants that must never be violated by a correct caller.
package dbg

import "fmt"

// Assert panics with a formatted message if cond is false. Used at the
// boundaries the spec calls out as programmer errors (out-of-range index,
// wrong number of raw-writer appends, GetMut on a committed page) rather
// than recoverable faults.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf(format, args...))
	}
}
