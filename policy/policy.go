// Package policy defines the contract between the cache facade and its
// eviction engines.
//
// An engine owns the ordering structure of one cache instance (recency list,
// frequency buckets) and drives a tier.Store to place, relocate and fetch
// values. Engines are not safe for concurrent use: the facade serializes every
// call under its lock, including the disk I/O the call triggers.
package policy

import (
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/tier"
)

// EvictReason explains why an engine dropped an entry.
type EvictReason int

const (
	// EvictCapacity: removed to make room for a new key.
	EvictCapacity EvictReason = iota
	// EvictDiskFailure: dropped because its value could not be moved to,
	// read from or written to the disk tier.
	EvictDiskFailure
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictDiskFailure:
		return "disk_failure"
	default:
		return "unknown"
	}
}

// Listener receives engine events. Calls happen under the cache lock;
// keep them lightweight.
type Listener[K comparable, V any] interface {
	// Evicted reports an entry dropped by the engine. ok is false when the
	// value could not be recovered (disk read failure).
	Evicted(k K, v V, ok bool, reason EvictReason)
	// Promoted reports a disk→memory move.
	Promoted(k K)
	// Demoted reports a memory→disk move.
	Demoted(k K)
}

// NopListener ignores all events.
type NopListener[K comparable, V any] struct{}

func (NopListener[K, V]) Evicted(K, V, bool, EvictReason) {}
func (NopListener[K, V]) Promoted(K)                      {}
func (NopListener[K, V]) Demoted(K)                       {}

// Config is passed to a Policy when the cache builds its engine.
type Config[K comparable, V any] struct {
	// UpdateExisting overwrites the value on Put of a present key.
	// Put never changes order either way.
	UpdateExisting bool
	// Listener is notified of evictions and tier moves; nil => NopListener.
	Listener Listener[K, V]
	// Logger; nil => logrus standard logger.
	Logger logrus.FieldLogger
}

// WithDefaults fills nil fields.
func (c Config[K, V]) WithDefaults() Config[K, V] {
	if c.Listener == nil {
		c.Listener = NopListener[K, V]{}
	}
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	return c
}

// Engine is one eviction strategy bound to a tier.Store.
//
// Semantics shared by all engines:
//   - Put of a new key evicts first when the cache is at capacity, so
//     Store.Place always finds room. A disk write failure while placing
//     makes Put a logged no-op.
//   - Get re-ranks the key and may swap tiers with another entry. A value
//     that cannot be read back is dropped and reported as a miss.
//   - Remove returns the prior value; false when absent or unreadable.
type Engine[K comparable, V any] interface {
	Put(k K, v V)
	Get(k K) (V, bool)
	Remove(k K) (V, bool)
	// Clear drops every entry and empties the store.
	Clear() error

	// Contains and Len never change order.
	Contains(k K) bool
	Len() int
	// Tier reports where k's value lives.
	Tier(k K) (tier.Tier, bool)
	// Keys lists keys in eviction order, next victim first.
	Keys() []K
	// Internals renders the ordering structure for debug logs.
	Internals() string
}

// Policy is a factory that binds a strategy to a store.
type Policy[K comparable, V any] interface {
	Name() string
	New(store tier.Store[K, V], cfg Config[K, V]) Engine[K, V]
}
