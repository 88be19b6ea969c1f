package pagestore

// FreePolicy governs whether a freed page is reclaimed immediately or
// deferred to commit. Grounded on kv-store/free_list.go's node-chain free
// list, generalized from "always defer" into the spec's two-variant
// decision (spec §4.6).
type FreePolicy int

const (
	// Never always appends the page to the freed list; used for
	// deletes whose returned guard must keep pointing at readable bytes
	// until the enclosing transaction commits.
	Never FreePolicy = iota
	// Uncommitted calls FreeIfUncommitted first; only a page that turns
	// out to be committed falls back to the freed list. Used for
	// operations whose returned guards point into freshly built pages,
	// where no caller could be holding a reference to the old page.
	Uncommitted
)

// Release applies the policy to page n: either it is freed immediately
// (Uncommitted, when the store agrees n was never committed) or appended
// to freed for the enclosing transaction to reclaim after commit.
func (p FreePolicy) Release(store Store, freed *[]PageNumber, n PageNumber) {
	switch p {
	case Uncommitted:
		if !store.FreeIfUncommitted(n) {
			*freed = append(*freed, n)
		}
	case Never:
		*freed = append(*freed, n)
	default:
		panic("unknown free policy")
	}
}
