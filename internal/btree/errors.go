package btree

import "errors"

// MaxKeySize / MaxValueSize bound what a single key or value may occupy,
// grounded on btree/deletekey.go's checkLimit and its
// BTREE_MAX_KEY_SIZE=1000 / BTREE_MAX_VAL_SIZE=3000 constants.
const (
	MaxKeySize   = 1000
	MaxValueSize = 3000
)

// ErrKeyTooLarge / ErrValueTooLarge are returned by checkLimit, the same
// fault btree/deletekey.go's checkLimit reports before ever touching the
// tree.
var (
	ErrKeyTooLarge   = errors.New("btree: key too large")
	ErrValueTooLarge = errors.New("btree: value too large")
)

// ErrCorrupt reports a page whose kind byte (or other decoded header
// field) doesn't match anything this engine writes — a store handed back
// bytes this code never produced.
var ErrCorrupt = errors.New("btree: corrupt page")

// checkLimit mirrors btree/deletekey.go's checkLimit: a nil val (as used
// by Delete, which only ever bounds the key) skips the value check.
func checkLimit(key, val []byte) error {
	if len(key) > MaxKeySize {
		return ErrKeyTooLarge
	}
	if val != nil && len(val) > MaxValueSize {
		return ErrValueTooLarge
	}
	return nil
}
