package tier

// Store is the contract engines use to reach physical storage.
// Coordinator is the implementation; all calls happen under the cache lock.
type Store[K comparable, V any] interface {
	// Place stores the value of a new entry and sets its tier.
	Place(e *Entry[K, V], v V) (Tier, error)
	// Fetch reads the value from the entry's tier.
	Fetch(e *Entry[K, V]) (V, error)
	// Update overwrites the value in the entry's tier.
	Update(e *Entry[K, V], v V) error
	// SwitchTier moves the value memory→disk or disk→memory.
	// On error the entry keeps its previous tier.
	SwitchTier(e *Entry[K, V]) (Tier, error)
	// Remove deletes the value and returns it; false if it could not be read.
	Remove(e *Entry[K, V]) (V, bool)

	// IsMemoryFull reports whether the memory tier is at capacity.
	IsMemoryFull() bool
	// DiskEnabled reports whether the overflow tier exists.
	DiskEnabled() bool
	// Capacity is the combined entry bound of both tiers.
	Capacity() int
	// Len is the number of stored values across tiers.
	Len() int
	// Clear empties both tiers.
	Clear() error
	// Stats returns occupancy counters.
	Stats() Stats
}
