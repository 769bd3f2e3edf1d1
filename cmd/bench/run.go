package main

import (
	"context"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	perrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/cache"
	"github.com/IvanBrykalov/tiercache/codec"
	pmet "github.com/IvanBrykalov/tiercache/metrics/prom"
)

// options builds cache options from the optional YAML file plus flag overrides.
func options(cfg *benchConfig) (cache.Options[string, string], error) {
	opt := cache.DefaultOptions[string, string]()
	if cfg.ConfigFile != "" {
		var err error
		if opt, err = cache.LoadOptions(cfg.ConfigFile, opt); err != nil {
			return opt, err
		}
	}
	if cfg.Strategy != "" {
		opt.Strategy = cache.Strategy(cfg.Strategy)
	}
	if cfg.MemorySize > 0 {
		opt.MemorySize = cfg.MemorySize
	}
	if cfg.DiskSize > 0 {
		opt.DiskSize = cfg.DiskSize
		opt.DiskEnabled = true
	}
	if cfg.Dir != "" {
		opt.DiskLocation = cfg.Dir
	}
	if cfg.Subfolders != "" {
		opt.SubfoldersPattern = cfg.Subfolders
	}
	if cfg.Compression != "" {
		cmp, err := codec.ParseCompression(cfg.Compression)
		if err != nil {
			return opt, perrors.Wrap(err, perrors.CodeInvalidInput, "bench: bad --compression")
		}
		opt.Compression = cmp
	}
	opt.PrintInternals = cfg.Verbose
	return opt, nil
}

func run(cfg *benchConfig) error {
	log := logrus.WithField("cmd", "bench")

	opt, err := options(cfg)
	if err != nil {
		return err
	}
	if cfg.Keys < 1 {
		return perrors.Newf(perrors.CodeInvalidInput, "bench: --keys must be >= 1, got %d", cfg.Keys)
	}

	// ---- pprof server (on DefaultServeMux) ----
	if cfg.PprofAddr != "" {
		go func() {
			log.Infof("pprof: serving at %s", cfg.PprofAddr)
			log.Warn(http.ListenAndServe(cfg.PprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	opt.Metrics = pmet.New(nil, "tiercache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Infof("metrics: serving at %s", cfg.MetricsAddr)
		log.Warn(http.ListenAndServe(cfg.MetricsAddr, nil))
	}()

	// ---- Build cache ----
	opt.Logger = logrus.StandardLogger()
	c, err := cache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	// ---- Preload the memory tier to get a realistic hit-rate ----
	pl := cfg.Preload
	if pl == 0 {
		pl = opt.MemorySize
	}
	for i := 0; i < pl; i++ {
		k := "k:" + strconv.Itoa(i)
		c.Put(k, "v"+strconv.Itoa(i))
	}

	workersN := cfg.Workers
	if workersN <= 0 {
		workersN = 1
	}
	keysMax := uint64(cfg.Keys - 1)

	// ---- Load generation ----
	var reads, writes, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(cfg.Seed + int64(id)*9973))
			localZipf := rand.NewZipf(localR, cfg.ZipfS, cfg.ZipfV, keysMax)

			keyByZipf := func() string {
				return "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				if int(localR.Int31n(100)) < cfg.ReadPct {
					atomic.AddUint64(&reads, 1)
					c.Get(keyByZipf())
				} else {
					atomic.AddUint64(&writes, 1)
					c.Put(keyByZipf(), "v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	st := c.Stats()

	log.WithFields(logrus.Fields{
		"strategy": st.Strategy,
		"mem":      opt.MemorySize,
		"disk":     opt.DiskSize,
		"workers":  workersN,
		"keys":     cfg.Keys,
		"dur":      elapsed,
		"seed":     cfg.Seed,
	}).Info("bench: done")
	log.WithFields(logrus.Fields{
		"ops":       ops,
		"ops_per_s": int64(float64(ops) / elapsed.Seconds()),
		"reads":     atomic.LoadUint64(&reads),
		"writes":    atomic.LoadUint64(&writes),
	}).Info("bench: throughput")
	log.WithFields(logrus.Fields{
		"hits":       st.Hits,
		"misses":     st.Misses,
		"hit_rate":   strconv.FormatFloat(st.HitRatio()*100, 'f', 2, 64) + "%",
		"memory":     st.MemoryEntries,
		"disk":       st.DiskEntries,
		"disk_bytes": st.DiskBytes,
	}).Info("bench: " + c.String())
	return nil
}
