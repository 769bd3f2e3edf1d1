package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	"github.com/IvanBrykalov/tiercache/codec"
	"github.com/IvanBrykalov/tiercache/internal/disk"
	"github.com/IvanBrykalov/tiercache/policy"
)

// Strategy names a built-in eviction engine.
type Strategy string

const (
	// StrategyLRU evicts the least recently read key.
	StrategyLRU Strategy = "lru"
	// StrategyLFU evicts the least frequently read key.
	StrategyLFU Strategy = "lfu"
)

// ParseStrategy accepts "lru" or "lfu" in any case.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyLRU, StrategyLFU:
		return st, nil
	case "":
		return StrategyLRU, nil
	default:
		return "", invalid("Strategy", "cache: unknown strategy %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler (used by YAML configs).
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// EvictReason explains why an entry was dropped.
type EvictReason = policy.EvictReason

const (
	// EvictCapacity: removed to make room for a new key.
	EvictCapacity = policy.EvictCapacity
	// EvictDiskFailure: dropped after its value could not be moved to or
	// read from the disk tier.
	EvictDiskFailure = policy.EvictDiskFailure
)

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	// Promote counts a disk→memory move, Demote a memory→disk move.
	Promote()
	Demote()
	// Size reports tier occupancy after each mutation.
	Size(memory, disk int, diskBytes int64)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Defaults used by DefaultOptions.
const (
	DefaultMemorySize = 100
	DefaultDiskSize   = 1000
	defaultDirName    = ".tiercache"
)

// Options configures a cache. Sizes are not defaulted: start from
// DefaultOptions and override what you need.
//
// The disk tier is enabled by DiskEnabled or by a non-nil DiskFS.
type Options[K comparable, V any] struct {
	// Strategy picks a built-in engine; "" => LRU. Ignored when Policy is set.
	Strategy Strategy `yaml:"strategy"`
	// Policy plugs in a custom engine factory.
	Policy policy.Policy[K, V] `yaml:"-"`

	// MemorySize and DiskSize bound each tier; both must be >= 1.
	MemorySize int `yaml:"memory_size"`
	DiskSize   int `yaml:"disk_size"`

	DiskEnabled bool `yaml:"disk_enabled"`
	// DiskLocation is the root directory of the disk tier; "" => $HOME/.tiercache.
	DiskLocation string `yaml:"disk_location"`
	// DiskFS overrides the filesystem (e.g. memfs in tests). DiskLocation is
	// then ignored.
	DiskFS billy.Filesystem `yaml:"-"`
	// SubfoldersPattern is a Go time layout with "|" between directory levels,
	// e.g. "20060102|15" buckets files per day and hour. Empty => flat layout.
	SubfoldersPattern string `yaml:"subfolders_pattern"`

	// NoUpdateExisting makes Put of a present key a no-op.
	NoUpdateExisting bool `yaml:"no_update_existing"`

	// Codec encodes disk values; nil => gob.
	Codec codec.Codec `yaml:"-"`
	// Compression is applied to disk files.
	Compression codec.Compression `yaml:"compression"`

	// PrintInternals debug-logs engine internals after each mutation.
	PrintInternals bool `yaml:"print_internals"`

	// Loader fetches a value on cache miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error) `yaml:"-"`

	// Observability
	// OnEvict is called on eviction under the cache lock; keep callbacks
	// lightweight. v is the zero value when it could not be read back.
	OnEvict func(k K, v V, reason EvictReason) `yaml:"-"`
	Metrics Metrics                            `yaml:"-"`
	Logger  logrus.FieldLogger                 `yaml:"-"`

	// Clock supplies the creation time used for subfolders. Nil => time.Now().
	Clock Clock `yaml:"-"`
}

// DefaultOptions returns an LRU, memory-only configuration with the default
// tier sizes and disk location.
func DefaultOptions[K comparable, V any]() Options[K, V] {
	return Options[K, V]{
		Strategy:     StrategyLRU,
		MemorySize:   DefaultMemorySize,
		DiskSize:     DefaultDiskSize,
		DiskLocation: DefaultDiskLocation(),
	}
}

// DefaultDiskLocation is $HOME/.tiercache, or a temp-dir fallback when the
// home directory is unknown.
func DefaultDiskLocation() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = os.TempDir()
	}
	return filepath.Join(home, defaultDirName)
}

// Validate reports the first configuration error, wrapping ErrInvalidConfig.
func (o Options[K, V]) Validate() error {
	if o.MemorySize < 1 {
		return invalid("MemorySize", "cache: memory size must be >= 1, got %d", o.MemorySize)
	}
	if o.DiskSize < 1 {
		return invalid("DiskSize", "cache: disk size must be >= 1, got %d", o.DiskSize)
	}
	if o.Policy == nil {
		if _, err := ParseStrategy(string(o.Strategy)); err != nil {
			return err
		}
	}
	if p := o.SubfoldersPattern; p != "" {
		switch {
		case strings.HasPrefix(p, "/") || filepath.IsAbs(p):
			return invalid("SubfoldersPattern", "cache: subfolder pattern %q must be relative", p)
		case strings.Contains(p, ".."):
			return invalid("SubfoldersPattern", "cache: subfolder pattern %q must not contain ..", p)
		case disk.FormatSubfolder(p, time.Now()) == "":
			return invalid("SubfoldersPattern", "cache: subfolder pattern %q yields an empty path", p)
		}
	}
	if o.Compression > codec.CompressionZSTD {
		return invalid("Compression", "cache: unknown compression %d", o.Compression)
	}
	return nil
}

func (o Options[K, V]) diskOn() bool { return o.DiskEnabled || o.DiskFS != nil }

// wallClock is the default Clock.
type wallClock struct{}

func (wallClock) NowUnixNano() int64 { return time.Now().UnixNano() }
