package cache

import (
	"math/rand"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"

	"github.com/IvanBrykalov/tiercache/internal/testutil"
)

// benchmarkMix exercises a read/write mix against a warm memory-only cache.
// It uses parallel workers (RunParallel spawns GOMAXPROCS goroutines); every
// call contends on the single cache lock.
func benchmarkMix(b *testing.B, strategy Strategy, readsPct int) {
	opt := DefaultOptions[string, string]()
	opt.Strategy = strategy
	opt.MemorySize = 100_000
	opt.Logger = testutil.QuietLogger()
	c, err := New(opt)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	// Preload half the capacity to get a realistic hit-rate.
	for i := 0; i < 50_000; i++ {
		c.Put("k:"+strconv.Itoa(i), "v")
	}

	b.ReportAllocs()
	b.ResetTimer()

	var seed int64 = 1
	keyMask := (1 << 16) - 1

	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(atomic.AddInt64(&seed, 1)))
		i := 0
		for pb.Next() {
			k := "k:" + strconv.Itoa(i&keyMask)
			if r.Intn(100) < readsPct {
				c.Get(k)
			} else {
				c.Put(k, "v")
			}
			i++
		}
	})
}

func BenchmarkCache_LRU_90r10w(b *testing.B) { benchmarkMix(b, StrategyLRU, 90) }
func BenchmarkCache_LRU_50r50w(b *testing.B) { benchmarkMix(b, StrategyLRU, 50) }
func BenchmarkCache_LFU_90r10w(b *testing.B) { benchmarkMix(b, StrategyLFU, 90) }
func BenchmarkCache_LFU_50r50w(b *testing.B) { benchmarkMix(b, StrategyLFU, 50) }

// benchmarkDisk keeps most of the working set on an in-memory filesystem so
// every other read is a promotion with a matching demotion.
func benchmarkDisk(b *testing.B, strategy Strategy) {
	opt := DefaultOptions[int, []byte]()
	opt.Strategy = strategy
	opt.MemorySize = 1_000
	opt.DiskSize = 9_000
	opt.DiskFS = memfs.New()
	opt.Logger = testutil.QuietLogger()
	c, err := New(opt)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })

	val := make([]byte, 256)
	for i := 0; i < 10_000; i++ {
		c.Put(i, val)
	}

	b.ReportAllocs()
	b.ResetTimer()

	r := rand.New(rand.NewSource(1))
	for i := 0; i < b.N; i++ {
		c.Get(r.Intn(10_000))
	}
}

func BenchmarkCache_LRU_DiskReads(b *testing.B) { benchmarkDisk(b, StrategyLRU) }
func BenchmarkCache_LFU_DiskReads(b *testing.B) { benchmarkDisk(b, StrategyLFU) }
