// Command bench runs a synthetic workload against the cache and exposes optional pprof/Prometheus endpoints.
package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// benchConfig holds everything the command line can set.
type benchConfig struct {
	ConfigFile  string
	Strategy    string
	MemorySize  int
	DiskSize    int
	Dir         string
	Subfolders  string
	Compression string

	Workers  int
	Duration time.Duration
	ReadPct  int

	Keys    int
	ZipfS   float64
	ZipfV   float64
	Seed    int64
	Preload int

	PprofAddr   string
	MetricsAddr string
	Verbose     bool
}

func newRootCmd() *cobra.Command {
	cfg := &benchConfig{}
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Synthetic Zipf workload against a two-tier cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			logrus.SetLevel(logrus.InfoLevel)
			if cfg.Verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return run(cfg)
		},
		SilenceUsage: true,
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.ConfigFile, "config", "c", "", "YAML options file; flags below override it when set")
	f.StringVar(&cfg.Strategy, "strategy", "", "eviction strategy: lru | lfu")
	f.IntVar(&cfg.MemorySize, "mem", 0, "memory tier size (entries)")
	f.IntVar(&cfg.DiskSize, "disk", 0, "disk tier size (entries); >0 enables the disk tier")
	f.StringVar(&cfg.Dir, "dir", "", "disk tier location (default $HOME/.tiercache)")
	f.StringVar(&cfg.Subfolders, "subfolders", "", "subfolder time pattern, e.g. 20060102|15")
	f.StringVar(&cfg.Compression, "compression", "", "disk compression: none | lz4 | zstd")

	f.IntVarP(&cfg.Workers, "workers", "w", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	f.DurationVarP(&cfg.Duration, "duration", "d", 10*time.Second, "benchmark duration")
	f.IntVar(&cfg.ReadPct, "reads", 80, "read percentage [0..100]")

	f.IntVar(&cfg.Keys, "keys", 100_000, "keyspace size")
	f.Float64Var(&cfg.ZipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	f.Float64Var(&cfg.ZipfV, "zipf_v", 1.0, "Zipf v")
	f.Int64Var(&cfg.Seed, "seed", time.Now().UnixNano(), "random seed")
	f.IntVar(&cfg.Preload, "preload", 0, "preload entries (0 = memory size)")

	f.StringVar(&cfg.PprofAddr, "pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
	f.StringVar(&cfg.MetricsAddr, "http", ":8080", "serve Prometheus metrics at addr")
	f.BoolVarP(&cfg.Verbose, "verbose", "v", false, "debug logging, including engine internals")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
