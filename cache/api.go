package cache

import (
	"context"
)

// Cache is a two-tier key/value cache: a bounded memory map with an optional
// bounded disk overflow. All methods are safe for concurrent use; every call
// runs under one per-instance lock, including the disk I/O it triggers.
type Cache[K comparable, V any] interface {
	// Put inserts k→v. For a present key the value is updated unless
	// Options.NoUpdateExisting is set; order is never changed by Put.
	Put(k K, v V)

	// Get returns the value for k and a presence flag.
	// A hit re-ranks k and may move values between tiers.
	Get(k K) (V, bool)

	// ContainsKey reports membership without touching order.
	ContainsKey(k K) bool

	// Remove deletes k and returns its prior value.
	Remove(k K) (V, bool)

	// IsEmpty reports whether the cache holds no entries.
	IsEmpty() bool

	// Len returns the number of live entries across both tiers.
	Len() int

	// Clear removes every entry from both tiers.
	Clear() error

	// GetOrLoad returns the value for k, loading it via Options.Loader on miss.
	// Concurrent loads for the same key are coalesced (singleflight).
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Stats returns counters and tier occupancy.
	Stats() Stats

	// String renders strategy and fill ratio, plus engine internals when
	// Options.PrintInternals is set.
	String() string

	// Close clears both tiers and marks the cache closed. Later calls are
	// no-ops or return ErrClosed.
	Close() error
}

// Stats is a point-in-time snapshot of a cache.
type Stats struct {
	Strategy      string
	Entries       int
	Capacity      int
	MemoryEntries int
	DiskEntries   int
	DiskBytes     int64
	Hits          uint64
	Misses        uint64
}

// HitRatio returns hits/(hits+misses), or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
