// Package lru implements the tiered LRU eviction engine.
//
// Entries form one recency order, least recent at head and most recent at
// tail, stored as an arena of nodes linked by int32 indices. A boundary marker
// points at the oldest memory-resident node; with the disk tier enabled every
// node before it is disk-resident, so the order is always a disk prefix
// followed by a memory suffix.
package lru

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/tier"
)

const none int32 = -1

type node[K comparable, V any] struct {
	entry      *tier.Entry[K, V]
	prev, next int32
}

type lru[K comparable, V any] struct {
	store tier.Store[K, V]
	cfg   policy.Config[K, V]
	log   logrus.FieldLogger

	index map[K]int32
	nodes []node[K, V]
	free  []int32

	head     int32 // least recent
	tail     int32 // most recent
	boundary int32 // oldest memory-resident node
}

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory for LRU engines.
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

func (lruPolicy[K, V]) Name() string { return "lru" }

// New implements policy.Policy.
func (lruPolicy[K, V]) New(store tier.Store[K, V], cfg policy.Config[K, V]) policy.Engine[K, V] {
	cfg = cfg.WithDefaults()
	return &lru[K, V]{
		store:    store,
		cfg:      cfg,
		log:      cfg.Logger.WithField("strategy", "lru"),
		index:    make(map[K]int32),
		head:     none,
		tail:     none,
		boundary: none,
	}
}

// Put inserts k at the most recent end. Existing keys are never re-ranked.
func (l *lru[K, V]) Put(k K, v V) {
	if i, ok := l.index[k]; ok {
		if !l.cfg.UpdateExisting {
			return
		}
		if err := l.nodes[i].entry.Update(v); err != nil {
			l.log.WithError(err).WithField("key", k).Warn("lru: update failed, dropping entry")
			l.drop(i, policy.EvictDiskFailure)
		}
		return
	}

	if len(l.index) >= l.store.Capacity() && l.head != none {
		l.drop(l.head, policy.EvictCapacity)
	}
	if l.store.Len() >= l.store.Capacity() {
		l.log.WithField("key", k).Warn("lru: store has no free slot, skipping put")
		return
	}
	// New entries land in memory: make room there.
	if l.store.DiskEnabled() && l.store.IsMemoryFull() {
		l.demoteBoundary()
	}

	e, err := tier.NewEntry(l.store, k, v)
	if err != nil {
		l.log.WithError(err).WithField("key", k).Warn("lru: place failed, skipping put")
		return
	}
	i := l.alloc(e)
	l.pushBack(i)
	l.index[k] = i
	if l.boundary == none && !e.OnDisk() {
		l.boundary = i
	}
}

// Get moves k to the most recent end. A disk-resident hit is promoted to
// memory, demoting the oldest memory node first when memory is full.
func (l *lru[K, V]) Get(k K) (V, bool) {
	var zero V
	i, ok := l.index[k]
	if !ok {
		return zero, false
	}

	if l.nodes[i].entry.OnDisk() {
		if l.store.IsMemoryFull() {
			l.demoteBoundary()
		}
		l.unlink(i)
		l.pushBack(i)
		if _, err := l.nodes[i].entry.SwitchTier(); err != nil {
			l.log.WithError(err).WithField("key", k).Warn("lru: promotion failed, dropping entry")
			l.drop(i, policy.EvictDiskFailure)
			return zero, false
		}
		l.cfg.Listener.Promoted(k)
		if l.boundary == none {
			l.boundary = i
		}
	} else if i != l.tail {
		if i == l.boundary {
			l.boundary = l.nodes[i].next
		}
		l.unlink(i)
		l.pushBack(i)
	}

	v, err := l.nodes[i].entry.Value()
	if err != nil {
		l.log.WithError(err).WithField("key", k).Warn("lru: read failed, dropping entry")
		l.drop(i, policy.EvictDiskFailure)
		return zero, false
	}
	return v, true
}

// Remove deletes k. When a memory slot is freed, the most recent disk node
// is promoted to keep memory full.
func (l *lru[K, V]) Remove(k K) (V, bool) {
	i, ok := l.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	wasMemory := !l.nodes[i].entry.OnDisk()
	v, ok := l.detach(i)

	if wasMemory && l.store.DiskEnabled() {
		l.promoteBeforeBoundary()
	}
	return v, ok
}

// Clear resets the arena and empties the store.
func (l *lru[K, V]) Clear() error {
	l.index = make(map[K]int32)
	l.nodes = nil
	l.free = nil
	l.head, l.tail, l.boundary = none, none, none
	return l.store.Clear()
}

func (l *lru[K, V]) Contains(k K) bool {
	_, ok := l.index[k]
	return ok
}

func (l *lru[K, V]) Len() int { return len(l.index) }

func (l *lru[K, V]) Tier(k K) (tier.Tier, bool) {
	i, ok := l.index[k]
	if !ok {
		return tier.Memory, false
	}
	return l.nodes[i].entry.Tier(), true
}

// Keys lists keys from least to most recent.
func (l *lru[K, V]) Keys() []K {
	out := make([]K, 0, len(l.index))
	for i := l.head; i != none; i = l.nodes[i].next {
		out = append(out, l.nodes[i].entry.Key())
	}
	return out
}

// Internals renders the order as "Old | A[D]-B[M] | New".
func (l *lru[K, V]) Internals() string {
	var sb strings.Builder
	sb.WriteString("Old | ")
	for i := l.head; i != none; i = l.nodes[i].next {
		if i != l.head {
			sb.WriteByte('-')
		}
		e := l.nodes[i].entry
		fmt.Fprintf(&sb, "%v[%s]", e.Key(), e.Tier())
	}
	sb.WriteString(" | New")
	return sb.String()
}

// -------------------- internals --------------------

// demoteBoundary moves the oldest memory node to disk and advances the marker.
func (l *lru[K, V]) demoteBoundary() {
	b := l.boundary
	if b == none {
		return
	}
	e := l.nodes[b].entry
	if _, err := e.SwitchTier(); err != nil {
		l.log.WithError(err).WithField("key", e.Key()).Warn("lru: demotion failed, dropping entry")
		l.drop(b, policy.EvictDiskFailure)
		return
	}
	l.cfg.Listener.Demoted(e.Key())
	l.boundary = l.nodes[b].next
}

// promoteBeforeBoundary moves the most recent disk node into memory.
func (l *lru[K, V]) promoteBeforeBoundary() {
	c := l.tail
	if l.boundary != none {
		c = l.nodes[l.boundary].prev
	}
	if c == none || !l.nodes[c].entry.OnDisk() {
		return
	}
	e := l.nodes[c].entry
	if _, err := e.SwitchTier(); err != nil {
		l.log.WithError(err).WithField("key", e.Key()).Warn("lru: promotion failed, dropping entry")
		l.drop(c, policy.EvictDiskFailure)
		return
	}
	l.cfg.Listener.Promoted(e.Key())
	l.boundary = c
}

// drop evicts node i and reports it.
func (l *lru[K, V]) drop(i int32, reason policy.EvictReason) {
	k := l.nodes[i].entry.Key()
	v, ok := l.detach(i)
	l.log.WithFields(logrus.Fields{"key": k, "reason": reason}).Debug("lru: evicted")
	l.cfg.Listener.Evicted(k, v, ok, reason)
}

// detach unlinks node i, removes its value from the store and frees the slot.
func (l *lru[K, V]) detach(i int32) (V, bool) {
	e := l.nodes[i].entry
	if i == l.boundary {
		l.boundary = l.nodes[i].next
	}
	l.unlink(i)
	delete(l.index, e.Key())
	v, ok := e.RemoveFromStore()
	l.release(i)
	return v, ok
}

func (l *lru[K, V]) alloc(e *tier.Entry[K, V]) int32 {
	n := node[K, V]{entry: e, prev: none, next: none}
	if last := len(l.free) - 1; last >= 0 {
		i := l.free[last]
		l.free = l.free[:last]
		l.nodes[i] = n
		return i
	}
	l.nodes = append(l.nodes, n)
	return int32(len(l.nodes) - 1)
}

func (l *lru[K, V]) release(i int32) {
	l.nodes[i] = node[K, V]{prev: none, next: none}
	l.free = append(l.free, i)
}

func (l *lru[K, V]) unlink(i int32) {
	n := &l.nodes[i]
	if n.prev != none {
		l.nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != none {
		l.nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = none, none
}

func (l *lru[K, V]) pushBack(i int32) {
	n := &l.nodes[i]
	n.prev, n.next = l.tail, none
	if l.tail != none {
		l.nodes[l.tail].next = i
	} else {
		l.head = i
	}
	l.tail = i
}
