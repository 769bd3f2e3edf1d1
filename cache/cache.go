package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	perrors "github.com/jmgilman/go/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/internal/util"
	"github.com/IvanBrykalov/tiercache/policy"
	"github.com/IvanBrykalov/tiercache/policy/lfu"
	"github.com/IvanBrykalov/tiercache/policy/lru"
	"github.com/IvanBrykalov/tiercache/tier"
)

const dirPerm = 0o755

// cache is a two-tier KV store driven by one eviction engine.
// All methods are safe for concurrent use by multiple goroutines.
type cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu     sync.Mutex
	engine policy.Engine[K, V]
	store  *tier.Coordinator[K, V]

	name   string
	opt    Options[K, V]
	log    logrus.FieldLogger
	closed atomic.Bool

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group

	// ---- hot counters, read by Stats without the lock ----
	_      util.CacheLinePad
	hits   util.PaddedAtomicUint64
	misses util.PaddedAtomicUint64
}

// New validates opt and constructs a cache. Nothing is built when
// validation fails.
// Defaults:
//   - "" Strategy     -> LRU
//   - nil Codec       -> gob
//   - nil Metrics     -> NoopMetrics
//   - nil Logger      -> logrus standard logger
//   - "" DiskLocation -> $HOME/.tiercache
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	opt.Strategy, _ = ParseStrategy(string(opt.Strategy))
	if opt.Codec == nil {
		opt.Codec = codec.Default
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}
	if opt.Clock == nil {
		opt.Clock = wallClock{}
	}
	if opt.DiskLocation == "" {
		opt.DiskLocation = DefaultDiskLocation()
	}

	pol := opt.Policy
	if pol == nil {
		if opt.Strategy == StrategyLFU {
			pol = lfu.New[K, V]()
		} else {
			pol = lru.New[K, V]()
		}
	}
	log := opt.Logger.WithField("cache", pol.Name())

	fs, err := diskFS(opt)
	if err != nil {
		return nil, err
	}

	clock := opt.Clock
	store := tier.NewCoordinator[K, V](tier.Options{
		MemorySize:        opt.MemorySize,
		DiskSize:          opt.DiskSize,
		DiskEnabled:       fs != nil,
		DiskFS:            fs,
		Codec:             opt.Codec,
		Compression:       opt.Compression,
		SubfoldersPattern: opt.SubfoldersPattern,
		Now:               func() time.Time { return time.Unix(0, clock.NowUnixNano()) },
		Logger:            log,
	})

	c := &cache[K, V]{
		store: store,
		name:  pol.Name(),
		opt:   opt,
		log:   log,
	}
	c.engine = pol.New(store, policy.Config[K, V]{
		UpdateExisting: !opt.NoUpdateExisting,
		Listener:       &events[K, V]{metrics: opt.Metrics, onEvict: opt.OnEvict, log: log},
		Logger:         log,
	})

	log.WithFields(logrus.Fields{
		"memory_size": opt.MemorySize,
		"disk_size":   opt.DiskSize,
		"disk":        fs != nil,
	}).Debug("cache: initialized")
	return c, nil
}

// diskFS returns the disk tier filesystem, creating DiskLocation if needed.
// It returns nil when the disk tier is disabled.
func diskFS[K comparable, V any](opt Options[K, V]) (billy.Filesystem, error) {
	if !opt.diskOn() {
		return nil, nil
	}
	if opt.DiskFS != nil {
		return opt.DiskFS, nil
	}
	if err := osfs.Default.MkdirAll(opt.DiskLocation, dirPerm); err != nil {
		return nil, perrors.WithContext(
			perrors.Wrap(err, perrors.CodeExecutionFailed, "cache: cannot create disk location"),
			"location", opt.DiskLocation,
		)
	}
	return osfs.New(opt.DiskLocation), nil
}

// ---- Cache[K,V] implementation ----

// Put inserts or updates k→v. It is a no-op on a closed cache.
func (c *cache[K, V]) Put(k K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return
	}
	c.log.WithField("key", k).Debug("cache: put")
	c.engine.Put(k, v)
	c.afterMutationLocked()
}

// Get returns the value for k and a presence flag.
func (c *cache[K, V]) Get(k K) (V, bool) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		var zero V
		return zero, false
	}
	v, ok := c.engine.Get(k)
	c.afterMutationLocked()
	c.mu.Unlock()

	if ok {
		c.hits.Add(1)
		c.opt.Metrics.Hit()
	} else {
		c.misses.Add(1)
		c.opt.Metrics.Miss()
	}
	return v, ok
}

func (c *cache[K, V]) ContainsKey(k K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed.Load() && c.engine.Contains(k)
}

// Remove deletes k and returns its prior value.
func (c *cache[K, V]) Remove(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	c.log.WithField("key", k).Debug("cache: remove")
	v, ok := c.engine.Remove(k)
	c.afterMutationLocked()
	return v, ok
}

func (c *cache[K, V]) IsEmpty() bool { return c.Len() == 0 }

// Len returns the number of live entries across both tiers.
func (c *cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.Len()
}

// Clear removes every entry from both tiers.
func (c *cache[K, V]) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrClosed
	}
	err := c.engine.Clear()
	c.afterMutationLocked()
	return err
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// If no Loader is configured, returns ErrNoLoader.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	// singleflight: exactly one real load for the key. The load is shared,
	// so it must not be canceled by whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(flightKey(k), func() (any, error) {
		// double-check after flight join
		if v, ok := c.Get(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(loadCtx, k)
		if err == nil {
			c.Put(k, v)
		}
		return v, err
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return zero, r.Err
		}
		v, _ := r.Val.(V)
		return v, nil
	}
}

// Stats returns counters and tier occupancy.
func (c *cache[K, V]) Stats() Stats {
	c.mu.Lock()
	st := c.store.Stats()
	s := Stats{
		Strategy:      c.name,
		Entries:       c.engine.Len(),
		Capacity:      c.store.Capacity(),
		MemoryEntries: st.MemoryEntries,
		DiskEntries:   st.DiskEntries,
		DiskBytes:     st.DiskBytes,
	}
	c.mu.Unlock()

	s.Hits = c.hits.Load()
	s.Misses = c.misses.Load()
	return s
}

// String renders e.g. "Cache lru fill ratio: [ 40%] [Memory: 100%]".
func (c *cache[K, V]) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	fill := c.engine.Len() * 100 / c.store.Capacity()
	s := fmt.Sprintf("Cache %s fill ratio: [%3d%%] %s", c.name, fill, c.store)
	if c.opt.PrintInternals {
		s += " | " + c.engine.Internals()
	}
	return s
}

// Close clears both tiers and marks the cache closed. It is idempotent.
func (c *cache[K, V]) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Swap(true) {
		return nil
	}
	c.log.Debug("cache: closing")
	return c.engine.Clear()
}

// ---- helpers ----

// afterMutationLocked publishes tier sizes and, if enabled, engine internals.
func (c *cache[K, V]) afterMutationLocked() {
	st := c.store.Stats()
	c.opt.Metrics.Size(st.MemoryEntries, st.DiskEntries, st.DiskBytes)
	if c.opt.PrintInternals {
		c.log.WithField("internals", c.engine.Internals()).Debug("cache: strategy info")
	}
}

// flightKey maps a key to a singleflight group key.
func flightKey[K comparable](k K) string {
	if s, ok := any(k).(string); ok {
		return s
	}
	return fmt.Sprintf("%T:%#v", k, k)
}
