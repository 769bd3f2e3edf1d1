package lru

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"

	"github.com/IvanBrykalov/tiercache/internal/testutil"
	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/tier"
)

// --- test doubles ---

type recorder[K comparable, V any] struct {
	evicted  []K
	reasons  []policy.EvictReason
	promoted []K
	demoted  []K
}

func (r *recorder[K, V]) Evicted(k K, _ V, _ bool, reason policy.EvictReason) {
	r.evicted = append(r.evicted, k)
	r.reasons = append(r.reasons, reason)
}
func (r *recorder[K, V]) Promoted(k K) { r.promoted = append(r.promoted, k) }
func (r *recorder[K, V]) Demoted(k K)  { r.demoted = append(r.demoted, k) }

func newEngine(mem, disk int, fs billy.Filesystem) (*lru[string, string], *tier.Coordinator[string, string], *recorder[string, string]) {
	st := tier.NewCoordinator[string, string](tier.Options{
		MemorySize:  mem,
		DiskSize:    disk,
		DiskEnabled: fs != nil,
		DiskFS:      fs,
		Logger:      testutil.QuietLogger(),
	})
	rec := &recorder[string, string]{}
	e := New[string, string]().New(st, policy.Config[string, string]{
		UpdateExisting: true,
		Listener:       rec,
		Logger:         testutil.QuietLogger(),
	})
	return e.(*lru[string, string]), st, rec
}

func putAll(e policy.Engine[string, string], keys ...string) {
	for _, k := range keys {
		e.Put(k, "v"+k)
	}
}

func tiers(e policy.Engine[string, string]) string {
	var s string
	for _, k := range e.Keys() {
		t, _ := e.Tier(k)
		s += t.String()
	}
	return s
}

// checkInvariants verifies counts, bounds and the disk-prefix/memory-suffix order.
func checkInvariants(t *testing.T, l *lru[string, string], st *tier.Coordinator[string, string]) {
	t.Helper()

	stats := st.Stats()
	if l.Len() != st.Len() {
		t.Fatalf("engine len %d != store len %d", l.Len(), st.Len())
	}
	if l.Len() > st.Capacity() {
		t.Fatalf("len %d exceeds capacity %d", l.Len(), st.Capacity())
	}
	if stats.MemoryEntries > stats.MaxMemory {
		t.Fatalf("memory %d exceeds %d", stats.MemoryEntries, stats.MaxMemory)
	}
	if stats.DiskEnabled && stats.DiskEntries > stats.MaxDisk {
		t.Fatalf("disk %d exceeds %d", stats.DiskEntries, stats.MaxDisk)
	}

	keys := l.Keys()
	if len(keys) != l.Len() {
		t.Fatalf("order has %d nodes, index has %d", len(keys), l.Len())
	}
	seenMemory := false
	firstMemory := none
	for i := l.head; i != none; i = l.nodes[i].next {
		if l.nodes[i].entry.OnDisk() {
			if seenMemory {
				t.Fatalf("disk node after memory node: %s", l.Internals())
			}
			continue
		}
		if !seenMemory {
			firstMemory = i
		}
		seenMemory = true
	}
	if firstMemory != l.boundary {
		t.Fatalf("boundary %d, first memory node %d: %s", l.boundary, firstMemory, l.Internals())
	}
}

// --- tests ---

func TestLRU_TwoOldestOnDisk(t *testing.T) {
	t.Parallel()

	l, st, _ := newEngine(3, 2, memfs.New())
	putAll(l, "A", "B", "C", "D", "E")

	if l.Len() != 5 {
		t.Fatalf("len = %d, want 5", l.Len())
	}
	if got := tiers(l); got != "DDMMM" {
		t.Fatalf("tiers = %s, want DDMMM (%s)", got, l.Internals())
	}
	checkInvariants(t, l, st)

	// Full: F evicts the least recent key.
	l.Put("F", "vF")
	if l.Contains("A") {
		t.Fatalf("A must be evicted: %s", l.Internals())
	}
	if got := l.Internals(); got != "Old | B[D]-C[D]-D[M]-E[M]-F[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	checkInvariants(t, l, st)
}

func TestLRU_GetPromotesDiskEntry(t *testing.T) {
	t.Parallel()

	l, st, rec := newEngine(3, 2, memfs.New())
	putAll(l, "A", "B", "C", "D", "E")

	v, ok := l.Get("A")
	if !ok || v != "vA" {
		t.Fatalf("Get(A) = %q,%v", v, ok)
	}
	if got := l.Internals(); got != "Old | B[D]-C[D]-D[M]-E[M]-A[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	if len(rec.promoted) != 1 || rec.promoted[0] != "A" {
		t.Fatalf("promoted = %v", rec.promoted)
	}
	if rec.demoted[len(rec.demoted)-1] != "C" {
		t.Fatalf("last demoted = %v, want C", rec.demoted)
	}
	if st.Stats().MemoryEntries != 3 {
		t.Fatalf("memory tier must stay full, got %d", st.Stats().MemoryEntries)
	}
	checkInvariants(t, l, st)
}

func TestLRU_GetMemoryEntryReRanks(t *testing.T) {
	t.Parallel()

	l, st, _ := newEngine(3, 2, memfs.New())
	putAll(l, "A", "B", "C", "D", "E")

	// C is the boundary.
	if _, ok := l.Get("C"); !ok {
		t.Fatal("C must hit")
	}
	if got := l.Internals(); got != "Old | A[D]-B[D]-D[M]-E[M]-C[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	checkInvariants(t, l, st)

	// Tail hit is a no-op on order.
	if _, ok := l.Get("C"); !ok {
		t.Fatal("C must hit")
	}
	checkInvariants(t, l, st)
}

func TestLRU_RecentlyReadSurvivesEviction(t *testing.T) {
	t.Parallel()

	l, st, _ := newEngine(2, 1, memfs.New())
	putAll(l, "A", "B")
	l.Get("A")
	putAll(l, "C", "D")

	if !l.Contains("A") {
		t.Fatalf("A was read after B and must outlive it: %s", l.Internals())
	}
	if l.Contains("B") {
		t.Fatalf("B must be evicted first: %s", l.Internals())
	}
	checkInvariants(t, l, st)
}

func TestLRU_PutDoesNotReRank(t *testing.T) {
	t.Parallel()

	l, _, _ := newEngine(2, 0, nil)
	putAll(l, "A", "B")
	l.Put("A", "new")
	l.Put("C", "vC")

	if l.Contains("A") {
		t.Fatalf("Put of existing key must not re-rank: %v", l.Keys())
	}
}

func TestLRU_UpdateExistingDisabled(t *testing.T) {
	t.Parallel()

	st := tier.NewCoordinator[string, string](tier.Options{MemorySize: 2, Logger: testutil.QuietLogger()})
	l := New[string, string]().New(st, policy.Config[string, string]{Logger: testutil.QuietLogger()})

	l.Put("A", "old")
	l.Put("A", "new")
	if v, _ := l.Get("A"); v != "old" {
		t.Fatalf("value = %q, want old", v)
	}
}

func TestLRU_UpdateOnDisk(t *testing.T) {
	t.Parallel()

	l, _, _ := newEngine(1, 1, memfs.New())
	putAll(l, "A", "B")
	l.Put("A", "fresh")

	if tr, _ := l.Tier("A"); tr != tier.Disk {
		t.Fatalf("A must still be on disk, got %s", tr)
	}
	if v, _ := l.Get("A"); v != "fresh" {
		t.Fatalf("value = %q, want fresh", v)
	}
}

func TestLRU_RemoveMemoryPromotesNewestDisk(t *testing.T) {
	t.Parallel()

	l, st, rec := newEngine(3, 2, memfs.New())
	putAll(l, "A", "B", "C", "D", "E")

	v, ok := l.Remove("D")
	if !ok || v != "vD" {
		t.Fatalf("Remove(D) = %q,%v", v, ok)
	}
	if got := l.Internals(); got != "Old | A[D]-B[M]-C[M]-E[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	if len(rec.promoted) != 1 || rec.promoted[0] != "B" {
		t.Fatalf("promoted = %v, want [B]", rec.promoted)
	}
	checkInvariants(t, l, st)

	// Remove a disk entry: nothing moves.
	v, ok = l.Remove("A")
	if !ok || v != "vA" {
		t.Fatalf("Remove(A) = %q,%v", v, ok)
	}
	if got := tiers(l); got != "MMM" {
		t.Fatalf("tiers = %s", got)
	}
	checkInvariants(t, l, st)

	if _, ok := l.Remove("missing"); ok {
		t.Fatal("Remove of absent key must report false")
	}
}

func TestLRU_RemoveLastMemoryNode(t *testing.T) {
	t.Parallel()

	l, st, _ := newEngine(1, 2, memfs.New())
	putAll(l, "A", "B", "C")
	if got := tiers(l); got != "DDM" {
		t.Fatalf("tiers = %s", got)
	}

	l.Remove("C")
	if got := l.Internals(); got != "Old | A[D]-B[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	checkInvariants(t, l, st)
}

func TestLRU_MemoryOnlySizeOne(t *testing.T) {
	t.Parallel()

	l, st, rec := newEngine(1, 1, nil)
	putAll(l, "One", "Second")

	if l.Len() != 1 || !l.Contains("Second") {
		t.Fatalf("keys = %v", l.Keys())
	}
	if len(rec.evicted) != 1 || rec.evicted[0] != "One" || rec.reasons[0] != policy.EvictCapacity {
		t.Fatalf("evicted = %v %v", rec.evicted, rec.reasons)
	}
	checkInvariants(t, l, st)
}

func TestLRU_DemotionFailureDropsEntry(t *testing.T) {
	t.Parallel()

	fs := testutil.NewFaultyFS(memfs.New())
	l, st, rec := newEngine(2, 2, fs)
	putAll(l, "A", "B")

	fs.FailWrites.Store(true)
	l.Put("C", "vC")

	if l.Contains("A") {
		t.Fatalf("A could not be demoted and must be dropped: %s", l.Internals())
	}
	if !l.Contains("C") {
		t.Fatalf("C must be stored in the freed memory slot")
	}
	if len(rec.reasons) != 1 || rec.reasons[0] != policy.EvictDiskFailure {
		t.Fatalf("reasons = %v", rec.reasons)
	}
	checkInvariants(t, l, st)
}

func TestLRU_PutRecoversAfterFailedDiskRemove(t *testing.T) {
	t.Parallel()

	fs := testutil.NewFaultyFS(memfs.New())
	l, st, _ := newEngine(1, 1, fs)
	putAll(l, "A", "B")

	fs.FailRemoves.Store(true)
	l.Put("C", "vC")
	if got := l.Internals(); got != "Old | B[D]-C[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	checkInvariants(t, l, st)
	fs.FailRemoves.Store(false)

	putAll(l, "D", "E", "F", "G", "H")
	if got := l.Internals(); got != "Old | G[D]-H[M] | New" {
		t.Fatalf("internals = %q", got)
	}
	if p := st.Stats().DiskPending; p != 0 {
		t.Fatalf("pending deletes = %d, want 0", p)
	}
	checkInvariants(t, l, st)
}

func TestLRU_SkippedPutDoesNotDemote(t *testing.T) {
	t.Parallel()

	st := &fullStore{Coordinator: tier.NewCoordinator[string, string](tier.Options{
		MemorySize:  1,
		DiskSize:    1,
		DiskEnabled: true,
		DiskFS:      memfs.New(),
		Logger:      testutil.QuietLogger(),
	})}
	l := New[string, string]().New(st, policy.Config[string, string]{Logger: testutil.QuietLogger()})
	l.Put("A", "vA")

	st.full = true
	l.Put("B", "vB")
	if l.Contains("B") {
		t.Fatal("B must be skipped when the store has no free slot")
	}
	if tr, _ := l.Tier("A"); tr != tier.Memory {
		t.Fatalf("A must stay in memory, got %s", tr)
	}
}

// fullStore reports no free slot while full is set.
type fullStore struct {
	*tier.Coordinator[string, string]
	full bool
}

func (s *fullStore) Len() int {
	if s.full {
		return s.Capacity()
	}
	return s.Coordinator.Len()
}

func TestLRU_ClearIsIdempotent(t *testing.T) {
	t.Parallel()

	l, st, _ := newEngine(2, 2, memfs.New())
	putAll(l, "A", "B", "C")

	for i := 0; i < 2; i++ {
		if err := l.Clear(); err != nil {
			t.Fatalf("clear: %v", err)
		}
		if l.Len() != 0 || st.Len() != 0 {
			t.Fatalf("len after clear = %d/%d", l.Len(), st.Len())
		}
	}
	putAll(l, "X")
	checkInvariants(t, l, st)
}

func TestLRU_RandomOpsKeepInvariants(t *testing.T) {
	t.Parallel()

	for _, sizes := range [][2]int{{1, 1}, {3, 2}, {4, 8}} {
		l, st, _ := newEngine(sizes[0], sizes[1], memfs.New())
		r := rand.New(rand.NewSource(int64(sizes[0]*100 + sizes[1])))

		for step := 0; step < 2000; step++ {
			k := strconv.Itoa(r.Intn(16))
			switch r.Intn(4) {
			case 0, 1:
				l.Put(k, "v"+k)
			case 2:
				if v, ok := l.Get(k); ok && v != "v"+k {
					t.Fatalf("Get(%s) = %q", k, v)
				}
			case 3:
				l.Remove(k)
			}
			checkInvariants(t, l, st)
		}
	}
}
