// Package cache provides a generic two-tier key/value cache: a bounded
// in-memory map with an optional bounded on-disk overflow, driven by an LRU
// or LFU eviction engine.
//
// Design
//
//   - Concurrency: one mutex per cache instance guards every operation for
//     its full duration, including the disk I/O it triggers. Independent
//     instances share nothing.
//
//   - Tiers: the tier.Coordinator owns the memory map and the disk store and
//     is the only component touching either. Engines see entries tagged with
//     their current tier and ask the coordinator to place, move and fetch.
//
//   - LRU: one recency order; the memory tier is always its most recent
//     suffix. Reading a disk entry promotes it and demotes the oldest memory
//     entry, so the memory tier stays full.
//
//   - LFU: insertion-ordered frequency buckets. Eviction takes the
//     last-inserted key of the lowest bucket. Reading a disk entry swaps it
//     with the nearest lower-frequency memory entry.
//
//   - Disk: one file per entry named by the FNV-1a hash of the key, optionally
//     under a time-bucketed subfolder. The disk tier is overflow storage only:
//     there is no index and nothing is read back after a restart.
//
//   - Failures: invalid Options are rejected by New. A disk write or read
//     failure drops the affected entry (EvictDiskFailure) and is logged; the
//     cache keeps serving.
//
//   - GetOrLoad: coalesces concurrent loads for the same key using singleflight.
//     If Loader is nil, GetOrLoad returns ErrNoLoader.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Promote/Demote/Size
//     signals. By default NoopMetrics is used; see metrics/prom.
//
// Basic usage
//
//	opt := cache.DefaultOptions[string, []byte]()
//	opt.MemorySize = 10_000
//	c, err := cache.New(opt)
//	if err != nil {
//	    return err
//	}
//	c.Put("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v // use value
//	}
//	c.Remove("a")
//
// With a disk tier
//
//	opt := cache.DefaultOptions[string, string]()
//	opt.Strategy = cache.StrategyLFU
//	opt.MemorySize, opt.DiskSize = 1_000, 100_000
//	opt.DiskEnabled = true
//	opt.DiskLocation = "/var/cache/myapp"
//	opt.SubfoldersPattern = "20060102|15" // one folder per day, one per hour
//	opt.Compression = codec.CompressionZSTD
//	c, err := cache.New(opt)
//
// With GetOrLoad (singleflight)
//
//	opt.Loader = func(ctx context.Context, k string) (string, error) {
//	    // e.g. fetch from DB
//	    return "v:" + k, nil
//	}
//	v, err := c.GetOrLoad(context.Background(), "key")
package cache
