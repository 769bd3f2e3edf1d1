package tier

// Entry binds a key to the tier currently holding its value.
// All value access goes through the Store that placed it.
type Entry[K comparable, V any] struct {
	key       K
	tier      Tier
	subfolder string
	store     Store[K, V]
}

// NewEntry creates an entry for key and places value through store.
// On a disk write failure no entry is returned and nothing is stored.
func NewEntry[K comparable, V any](store Store[K, V], key K, value V) (*Entry[K, V], error) {
	e := &Entry[K, V]{key: key, store: store}
	if _, err := store.Place(e, value); err != nil {
		return nil, err
	}
	return e, nil
}

// Key returns the entry key.
func (e *Entry[K, V]) Key() K { return e.key }

// Tier returns the tier holding the value.
func (e *Entry[K, V]) Tier() Tier { return e.tier }

// OnDisk reports whether the value is disk-resident.
func (e *Entry[K, V]) OnDisk() bool { return e.tier == Disk }

// Subfolder returns the time bucket sampled at creation ("" if disabled).
func (e *Entry[K, V]) Subfolder() string { return e.subfolder }

// Value loads the value from its tier.
func (e *Entry[K, V]) Value() (V, error) { return e.store.Fetch(e) }

// Update overwrites the value in place.
func (e *Entry[K, V]) Update(v V) error { return e.store.Update(e, v) }

// SwitchTier moves the value to the other tier and returns the new tier.
func (e *Entry[K, V]) SwitchTier() (Tier, error) { return e.store.SwitchTier(e) }

// RemoveFromStore deletes the value and returns it.
func (e *Entry[K, V]) RemoveFromStore() (V, bool) { return e.store.Remove(e) }
