// Package tier places cache values in a bounded memory map or a bounded disk
// store and moves them between the two.
//
// The Coordinator is the only component that touches physical storage.
// Eviction engines see entries (key plus current tier) and ask the
// coordinator to place, fetch, update, switch and remove values, so tier
// bookkeeping can never drift from what is actually stored.
package tier

import (
	perrors "github.com/jmgilman/go/errors"
)

// Tier is where an entry's value currently resides.
type Tier uint8

const (
	// Memory is the in-process map.
	Memory Tier = iota
	// Disk is the overflow file store.
	Disk
)

// String returns "M" or "D", the short form used in internals dumps.
func (t Tier) String() string {
	if t == Disk {
		return "D"
	}
	return "M"
}

// ErrStoreExhausted is the panic value raised when a value must be placed and
// neither tier has room. Engines evict before inserting, so reaching it is a
// defect; it is never returned as an error.
var ErrStoreExhausted = perrors.New(perrors.CodeInternal, "tier: no room in memory or disk store")
