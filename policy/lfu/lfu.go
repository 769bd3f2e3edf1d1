// Package lfu implements the tiered LFU eviction engine.
//
// Keys live in frequency buckets kept in ascending order; each bucket is an
// insertion-ordered list. Entries promoted from disk are appended after the
// memory entries already sharing their bucket, so evicting the last-inserted
// key of the lowest bucket prefers disk entries.
package lfu

import (
	"container/list"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/tier"
)

type bucket struct {
	freq  int
	items *list.List // element.Value is *node[K,V]
}

type node[K comparable, V any] struct {
	entry  *tier.Entry[K, V]
	freq   int
	bucket *list.Element // element in lfu.buckets
	elem   *list.Element // element in bucket.items
}

type lfu[K comparable, V any] struct {
	store tier.Store[K, V]
	cfg   policy.Config[K, V]
	log   logrus.FieldLogger

	index   map[K]*node[K, V]
	buckets *list.List // element.Value is *bucket, ascending freq, never empty
}

type lfuPolicy[K comparable, V any] struct{}

// New returns a Policy factory for LFU engines.
func New[K comparable, V any]() policy.Policy[K, V] { return lfuPolicy[K, V]{} }

func (lfuPolicy[K, V]) Name() string { return "lfu" }

// New implements policy.Policy.
func (lfuPolicy[K, V]) New(store tier.Store[K, V], cfg policy.Config[K, V]) policy.Engine[K, V] {
	cfg = cfg.WithDefaults()
	return &lfu[K, V]{
		store:   store,
		cfg:     cfg,
		log:     cfg.Logger.WithField("strategy", "lfu"),
		index:   make(map[K]*node[K, V]),
		buckets: list.New(),
	}
}

// Put inserts k at frequency 0. Existing keys keep their frequency.
func (c *lfu[K, V]) Put(k K, v V) {
	if n, ok := c.index[k]; ok {
		if !c.cfg.UpdateExisting {
			return
		}
		if err := n.entry.Update(v); err != nil {
			c.log.WithError(err).WithField("key", k).Warn("lfu: update failed, dropping entry")
			c.drop(n, policy.EvictDiskFailure)
		}
		return
	}

	if len(c.index) >= c.store.Capacity() {
		c.evict()
	}
	if c.store.Len() >= c.store.Capacity() {
		c.log.WithField("key", k).Warn("lfu: store has no free slot, skipping put")
		return
	}

	e, err := tier.NewEntry(c.store, k, v)
	if err != nil {
		c.log.WithError(err).WithField("key", k).Warn("lfu: place failed, skipping put")
		return
	}
	n := &node[K, V]{entry: e}
	front := c.buckets.Front()
	if front == nil || front.Value.(*bucket).freq != 0 {
		front = c.buckets.PushFront(&bucket{freq: 0, items: list.New()})
	}
	c.attach(n, front)
	c.index[k] = n
}

// Get bumps k's frequency by one. A disk-resident hit swaps tiers with the
// nearest lower-frequency memory entry; with memory not full it is promoted
// outright.
func (c *lfu[K, V]) Get(k K) (V, bool) {
	var zero V
	n, ok := c.index[k]
	if !ok {
		return zero, false
	}

	below := c.bump(n)

	if n.entry.OnDisk() {
		if c.store.IsMemoryFull() {
			if partner := c.demotionPartner(below); partner != nil {
				c.demote(partner)
			}
		}
		// No partner: read from disk without relocation.
		if !c.store.IsMemoryFull() && !c.promote(n) {
			return zero, false
		}
	}

	v, err := n.entry.Value()
	if err != nil {
		c.log.WithError(err).WithField("key", k).Warn("lfu: read failed, dropping entry")
		c.drop(n, policy.EvictDiskFailure)
		return zero, false
	}
	return v, true
}

// Remove deletes k. When a memory slot is freed, the next disk entry at the
// same or a lower frequency is promoted.
func (c *lfu[K, V]) Remove(k K) (V, bool) {
	n, ok := c.index[k]
	if !ok {
		var zero V
		return zero, false
	}

	var successor *node[K, V]
	if !n.entry.OnDisk() && c.store.DiskEnabled() {
		successor = c.nextOnDisk(n)
	}
	v, ok := c.detach(n)
	if successor != nil {
		c.promote(successor)
	}
	return v, ok
}

// Clear drops all buckets and empties the store.
func (c *lfu[K, V]) Clear() error {
	c.index = make(map[K]*node[K, V])
	c.buckets.Init()
	return c.store.Clear()
}

func (c *lfu[K, V]) Contains(k K) bool {
	_, ok := c.index[k]
	return ok
}

func (c *lfu[K, V]) Len() int { return len(c.index) }

func (c *lfu[K, V]) Tier(k K) (tier.Tier, bool) {
	n, ok := c.index[k]
	if !ok {
		return tier.Memory, false
	}
	return n.entry.Tier(), true
}

// Frequency returns the number of Gets of k since it was inserted.
func (c *lfu[K, V]) Frequency(k K) (int, bool) {
	n, ok := c.index[k]
	if !ok {
		return 0, false
	}
	return n.freq, true
}

// Keys lists keys in eviction order: lowest bucket first, and within a
// bucket the last-inserted key first.
func (c *lfu[K, V]) Keys() []K {
	out := make([]K, 0, len(c.index))
	for b := c.buckets.Front(); b != nil; b = b.Next() {
		for it := b.Value.(*bucket).items.Back(); it != nil; it = it.Prev() {
			out = append(out, it.Value.(*node[K, V]).entry.Key())
		}
	}
	return out
}

// Internals renders buckets as "0: A[M] B[D] | 2: C[M]" in insertion order.
func (c *lfu[K, V]) Internals() string {
	var sb strings.Builder
	for b := c.buckets.Front(); b != nil; b = b.Next() {
		bk := b.Value.(*bucket)
		if b != c.buckets.Front() {
			sb.WriteString(" | ")
		}
		fmt.Fprintf(&sb, "%d:", bk.freq)
		for it := bk.items.Front(); it != nil; it = it.Next() {
			e := it.Value.(*node[K, V]).entry
			fmt.Fprintf(&sb, " %v[%s]", e.Key(), e.Tier())
		}
	}
	return sb.String()
}

// -------------------- internals --------------------

// evict drops the last-inserted key of the lowest bucket.
func (c *lfu[K, V]) evict() {
	front := c.buckets.Front()
	if front == nil {
		return
	}
	last := front.Value.(*bucket).items.Back()
	c.drop(last.Value.(*node[K, V]), policy.EvictCapacity)
}

// bump moves n to the next frequency bucket and returns the bucket where a
// demotion partner search should start (n's previous frequency or lower).
func (c *lfu[K, V]) bump(n *node[K, V]) *list.Element {
	cur := n.bucket
	curB := cur.Value.(*bucket)

	if n.freq == math.MaxInt32 {
		curB.items.MoveToBack(n.elem)
		return cur
	}
	n.freq++

	target := cur.Next()
	if target == nil || target.Value.(*bucket).freq != n.freq {
		target = c.buckets.InsertAfter(&bucket{freq: n.freq, items: list.New()}, cur)
	}
	curB.items.Remove(n.elem)
	n.elem = target.Value.(*bucket).items.PushBack(n)
	n.bucket = target

	if curB.items.Len() > 0 {
		return cur
	}
	below := cur.Prev()
	c.buckets.Remove(cur)
	return below
}

// demotionPartner scans from b downward for the nearest bucket holding a
// memory entry and returns the last entry of its first memory run.
func (c *lfu[K, V]) demotionPartner(b *list.Element) *node[K, V] {
	for ; b != nil; b = b.Prev() {
		var last *node[K, V]
		for it := b.Value.(*bucket).items.Front(); it != nil; it = it.Next() {
			n := it.Value.(*node[K, V])
			if !n.entry.OnDisk() {
				last = n
			} else if last != nil {
				break
			}
		}
		if last != nil {
			return last
		}
	}
	return nil
}

// nextOnDisk finds the first disk entry after n in its bucket, then in the
// lower buckets from the front.
func (c *lfu[K, V]) nextOnDisk(n *node[K, V]) *node[K, V] {
	for it := n.elem.Next(); it != nil; it = it.Next() {
		if m := it.Value.(*node[K, V]); m.entry.OnDisk() {
			return m
		}
	}
	for b := n.bucket.Prev(); b != nil; b = b.Prev() {
		for it := b.Value.(*bucket).items.Front(); it != nil; it = it.Next() {
			if m := it.Value.(*node[K, V]); m.entry.OnDisk() {
				return m
			}
		}
	}
	return nil
}

// promote moves n to memory. On failure n is dropped and false returned.
func (c *lfu[K, V]) promote(n *node[K, V]) bool {
	if _, err := n.entry.SwitchTier(); err != nil {
		c.log.WithError(err).WithField("key", n.entry.Key()).Warn("lfu: promotion failed, dropping entry")
		c.drop(n, policy.EvictDiskFailure)
		return false
	}
	c.cfg.Listener.Promoted(n.entry.Key())
	return true
}

// demote moves n to disk. On failure n is dropped, which frees its slot too.
func (c *lfu[K, V]) demote(n *node[K, V]) {
	if _, err := n.entry.SwitchTier(); err != nil {
		c.log.WithError(err).WithField("key", n.entry.Key()).Warn("lfu: demotion failed, dropping entry")
		c.drop(n, policy.EvictDiskFailure)
		return
	}
	c.cfg.Listener.Demoted(n.entry.Key())
}

func (c *lfu[K, V]) drop(n *node[K, V], reason policy.EvictReason) {
	k := n.entry.Key()
	v, ok := c.detach(n)
	c.log.WithFields(logrus.Fields{"key": k, "reason": reason}).Debug("lfu: evicted")
	c.cfg.Listener.Evicted(k, v, ok, reason)
}

// detach removes n from its bucket, the index and the store.
func (c *lfu[K, V]) detach(n *node[K, V]) (V, bool) {
	b := n.bucket.Value.(*bucket)
	b.items.Remove(n.elem)
	if b.items.Len() == 0 {
		c.buckets.Remove(n.bucket)
	}
	n.bucket, n.elem = nil, nil
	delete(c.index, n.entry.Key())
	return n.entry.RemoveFromStore()
}

func (c *lfu[K, V]) attach(n *node[K, V], b *list.Element) {
	n.bucket = b
	n.elem = b.Value.(*bucket).items.PushBack(n)
}
